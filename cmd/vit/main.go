// Package main provides the vit command: train and evaluate a Vision
// Transformer on MNIST.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/tensor"
	"github.com/born-ml/vit/internal/dataset"
	"github.com/born-ml/vit/internal/train"
	"github.com/born-ml/vit/internal/vit"
)

const version = "v0.1.0"

// evalBatchSize is the batch size used for validation and test passes.
const evalBatchSize = 256

// job holds the parsed command line of a train or eval run.
type job struct {
	command    string
	dataDir    string
	csvFile    string
	synthetic  bool
	samples    int
	testLimit  int
	checkpoint string
	out        string
	device     string
	model      vit.Config
	opts       train.Options
}

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("vit %s\n", version)
	case "train", "eval":
		j, err := parseFlags(os.Args[1], os.Args[2:])
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		if err != nil {
			log.Fatalf("%s: %v", os.Args[1], err)
		}
		if err := dispatch(j); err != nil {
			log.Fatalf("%s: %v", j.command, err)
		}
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("vit - Vision Transformer for MNIST on Born")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  train      Train a model and report test loss and accuracy")
	fmt.Println("  eval       Evaluate a saved checkpoint")
	fmt.Println("  version    Show version")
	fmt.Println("")
	fmt.Println("Run 'vit <command> -h' for command flags.")
}

func parseFlags(command string, args []string) (job, error) {
	j := job{command: command, model: vit.DefaultConfig(), opts: train.DefaultOptions()}

	flags := flag.NewFlagSet(command, flag.ContinueOnError)
	flags.StringVar(&j.dataDir, "data", "./data", "Directory containing MNIST IDX files (optionally .gz)")
	flags.StringVar(&j.csvFile, "csv", "", "Kaggle-style MNIST CSV file, split 80/20 into train/test")
	flags.BoolVar(&j.synthetic, "synthetic", false, "Use synthetic digits instead of MNIST files")
	flags.IntVar(&j.samples, "samples", 0, "Max training samples to load (0 = all)")
	flags.IntVar(&j.testLimit, "test-samples", 0, "Max test samples to load (0 = all)")
	flags.StringVar(&j.device, "device", "cpu", "Compute device: cpu or webgpu")
	flags.Int64Var(&j.opts.Seed, "seed", j.opts.Seed, "Seed for shuffling and synthetic data")
	flags.BoolFunc("no-progress", "Disable progress bars", func(string) error {
		j.opts.ShowProgress = false
		return nil
	})

	if command == "train" {
		lr := float64(j.opts.LR)
		flags.IntVar(&j.opts.Epochs, "epochs", j.opts.Epochs, "Number of training epochs")
		flags.IntVar(&j.opts.BatchSize, "batch", j.opts.BatchSize, "Training batch size")
		flags.Float64Var(&lr, "lr", lr, "Adam learning rate")
		flags.IntVar(&j.model.NPatches, "patches", j.model.NPatches, "Patches per image side")
		flags.IntVar(&j.model.NBlocks, "blocks", j.model.NBlocks, "Transformer blocks")
		flags.IntVar(&j.model.HiddenD, "hidden", j.model.HiddenD, "Hidden dimension")
		flags.IntVar(&j.model.NHeads, "heads", j.model.NHeads, "Attention heads")
		flags.StringVar(&j.out, "out", "", "Write a .born checkpoint to this file after training")

		if err := flags.Parse(args); err != nil {
			return job{}, err
		}
		if err := checkDevice(j.device); err != nil {
			return job{}, err
		}
		j.opts.LR = float32(lr)
		if err := j.model.Validate(); err != nil {
			return job{}, err
		}
		return j, j.opts.Validate()
	}

	flags.StringVar(&j.checkpoint, "checkpoint", "", "Checkpoint (.born) to evaluate")
	if err := flags.Parse(args); err != nil {
		return job{}, err
	}
	if j.checkpoint == "" {
		return job{}, fmt.Errorf("-checkpoint is required")
	}
	return j, checkDevice(j.device)
}

func checkDevice(device string) error {
	switch device {
	case "cpu", "webgpu":
		return nil
	default:
		return fmt.Errorf("unknown device %q, want cpu or webgpu", device)
	}
}

// execute runs j on the given compute backend wrapped with autodiff.
func execute[B tensor.Backend](base B, j job) error {
	backend := autodiff.New(base)

	trainData, testData, err := loadData(j)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var model *vit.ViT[*autodiff.Backend[B]]
	if j.command == "eval" {
		var meta map[string]string
		model, meta, err = train.OpenCheckpoint(j.checkpoint, backend)
		if err != nil {
			return err
		}
		log.Printf("Loaded %s (%d parameters, trained %s epochs)", j.checkpoint, model.NumParameters(), meta["epochs"])
	} else {
		model, err = fit(ctx, backend, trainData, j)
		if err != nil {
			return err
		}
	}

	testBatches, err := dataset.Batches(testData, evalBatchSize, false, nil, backend)
	if err != nil {
		return fmt.Errorf("failed to create test batches: %w", err)
	}
	metrics, err := train.Evaluate(model, backend, testBatches, j.opts)
	if err != nil {
		return err
	}
	fmt.Printf("Test loss: %.2f\n", metrics.Loss)
	fmt.Printf("Test accuracy: %.2f%%\n", metrics.Accuracy*100)
	return nil
}

func fit[B tensor.Backend](
	ctx context.Context,
	backend *autodiff.Backend[B],
	data *dataset.MNIST,
	j job,
) (*vit.ViT[*autodiff.Backend[B]], error) {
	model, err := vit.New(j.model, backend)
	if err != nil {
		return nil, err
	}
	log.Printf("Model: %d patches/side, %d blocks, hidden %d, %d heads, %d parameters",
		j.model.NPatches, j.model.NBlocks, j.model.HiddenD, j.model.NHeads, model.NumParameters())

	rng := rand.New(rand.NewSource(j.opts.Seed))
	batches, err := dataset.Batches(data, j.opts.BatchSize, true, rng, backend)
	if err != nil {
		return nil, fmt.Errorf("failed to create train batches: %w", err)
	}
	log.Printf("Training on %d samples (%d batches), lr %g, %d epochs",
		data.NumSamples(), len(batches), j.opts.LR, j.opts.Epochs)

	trainer, err := train.NewTrainer(model, backend, j.opts)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	stats, err := trainer.Fit(ctx, batches, nil)
	if err != nil {
		return nil, err
	}
	log.Printf("Training finished in %s", time.Since(start).Round(time.Millisecond))

	if j.out != "" {
		meta := map[string]string{
			"epochs":     strconv.Itoa(len(stats)),
			"train_loss": strconv.FormatFloat(float64(stats[len(stats)-1].Train.Loss), 'f', 4, 32),
			"lr":         strconv.FormatFloat(float64(j.opts.LR), 'g', -1, 32),
		}
		if err := train.SaveCheckpoint(j.out, model, meta); err != nil {
			return nil, err
		}
		log.Printf("Saved checkpoint to %s", j.out)
	}
	return model, nil
}

// loadData returns the training and test sets selected by j. The training
// set is nil for eval runs.
func loadData(j job) (trainData, testData *dataset.MNIST, err error) {
	switch {
	case j.synthetic:
		n := j.samples
		if n == 0 {
			n = 2000
		}
		trainData, testData = dataset.Synthetic(n, j.opts.Seed).Split(0.2)
		log.Printf("Using %d synthetic samples", n)

	case j.csvFile != "":
		all, err := dataset.LoadMNISTCSV(j.csvFile, j.samples)
		if err != nil {
			return nil, nil, err
		}
		trainData, testData = all.Split(0.2)
		log.Printf("Loaded %d samples from %s", all.NumSamples(), j.csvFile)

	default:
		if j.command == "train" {
			trainData, err = dataset.LoadMNIST(j.dataDir, true, j.samples)
			if err != nil {
				return nil, nil, missingDataHint(err)
			}
		}
		testData, err = dataset.LoadMNIST(j.dataDir, false, j.testLimit)
		if err != nil {
			return nil, nil, missingDataHint(err)
		}
		log.Printf("Loaded MNIST from %s", j.dataDir)
	}

	if j.command == "eval" {
		trainData = nil
	} else if trainData.NumSamples() == 0 {
		return nil, nil, fmt.Errorf("training set is empty")
	}
	return trainData, testData, nil
}

func missingDataHint(err error) error {
	if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return fmt.Errorf("%w\n\nDownload train-images-idx3-ubyte.gz, train-labels-idx1-ubyte.gz,\n"+
		"t10k-images-idx3-ubyte.gz and t10k-labels-idx1-ubyte.gz into -data,\n"+
		"or run with -synthetic", err)
}
