package train

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/optim"
	"github.com/born-ml/born/tensor"
	"github.com/born-ml/vit/internal/dataset"
	"github.com/born-ml/vit/internal/vit"
)

// Metrics summarizes a pass over a set of batches.
type Metrics struct {
	Loss     float32 // Mean batch loss
	Accuracy float32 // Fraction of samples whose argmax matches the label
	Samples  int
}

// EpochStats reports one training epoch.
type EpochStats struct {
	Epoch    int // 1-based
	Train    Metrics
	Val      *Metrics // nil when no validation batches were given
	Duration time.Duration
}

// Trainer optimizes a ViT with Adam and cross-entropy on an autodiff backend.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	model, _ := vit.New(vit.DefaultConfig(), backend)
//	trainer, _ := train.NewTrainer(model, backend, train.DefaultOptions())
//	stats, err := trainer.Fit(ctx, trainBatches, valBatches)
type Trainer[B tensor.Backend] struct {
	model     *vit.ViT[*autodiff.Backend[B]]
	backend   *autodiff.Backend[B]
	optimizer *optim.Adam[*autodiff.Backend[B]]
	opts      Options
}

// NewTrainer creates a trainer with an Adam optimizer over the model's
// parameters (betas 0.9/0.999, eps 1e-8).
func NewTrainer[B tensor.Backend](
	model *vit.ViT[*autodiff.Backend[B]],
	backend *autodiff.Backend[B],
	opts Options,
) (*Trainer[B], error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	optimizer := optim.NewAdam(
		model.Parameters(),
		optim.AdamConfig{
			LR:    opts.LR,
			Betas: [2]float32{0.9, 0.999},
			Eps:   1e-8,
		},
		backend,
	)

	return &Trainer[B]{
		model:     model,
		backend:   backend,
		optimizer: optimizer,
		opts:      opts,
	}, nil
}

// Model returns the model being trained.
func (t *Trainer[B]) Model() *vit.ViT[*autodiff.Backend[B]] {
	return t.model
}

// Fit trains for opts.Epochs epochs and returns per-epoch statistics.
// The context is checked between batches; on cancellation the statistics of
// completed epochs are returned with the context error.
func (t *Trainer[B]) Fit(
	ctx context.Context,
	train, val []*dataset.Batch[*autodiff.Backend[B]],
) ([]EpochStats, error) {
	if len(train) == 0 {
		return nil, fmt.Errorf("%w: empty training set", ErrNoBatches)
	}

	tape := t.backend.Tape()
	tape.StartRecording()
	defer tape.StopRecording()

	stats := make([]EpochStats, 0, t.opts.Epochs)
	for epoch := 1; epoch <= t.opts.Epochs; epoch++ {
		start := time.Now()

		trainMetrics, err := t.trainEpoch(ctx, epoch, train)
		if err != nil {
			return stats, err
		}

		s := EpochStats{Epoch: epoch, Train: trainMetrics}
		if len(val) > 0 {
			valMetrics, err := t.Evaluate(val)
			if err != nil {
				return stats, err
			}
			s.Val = &valMetrics
		}
		s.Duration = time.Since(start)
		stats = append(stats, s)

		t.logEpoch(s)
	}
	return stats, nil
}

func (t *Trainer[B]) trainEpoch(
	ctx context.Context,
	epoch int,
	batches []*dataset.Batch[*autodiff.Backend[B]],
) (Metrics, error) {
	bar := newProgress(t.opts.ShowProgress, t.opts.out(), len(batches),
		fmt.Sprintf("Epoch %d/%d", epoch, t.opts.Epochs))
	defer bar.finish()

	var acc accumulator
	for _, batch := range batches {
		if err := ctx.Err(); err != nil {
			return Metrics{}, err
		}

		loss, err := t.step(batch)
		if err != nil {
			return Metrics{}, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		acc.add(loss.value, loss.accuracy, batch.Size)

		bar.describe(fmt.Sprintf("Epoch %d/%d loss %.4f", epoch, t.opts.Epochs, loss.value))
		bar.add(1)
	}
	return acc.metrics(), nil
}

type stepResult struct {
	value    float32
	accuracy float32
}

// step runs one optimization step on a batch.
func (t *Trainer[B]) step(batch *dataset.Batch[*autodiff.Backend[B]]) (stepResult, error) {
	tape := t.backend.Tape()
	defer tape.Clear()

	t.optimizer.ZeroGrad()

	probs, err := t.model.Predict(batch.Images)
	if err != nil {
		return stepResult{}, err
	}

	lossRaw := t.backend.CrossEntropy(probs.Raw(), batch.Labels.Raw())
	value := lossRaw.AsFloat32()[0]
	if math.IsNaN(float64(value)) || math.IsInf(float64(value), 0) {
		return stepResult{}, fmt.Errorf("loss diverged: %v", value)
	}

	seed, err := tensor.NewRaw(lossRaw.Shape(), tensor.Float32, t.backend.Device())
	if err != nil {
		return stepResult{}, fmt.Errorf("failed to create loss gradient: %w", err)
	}
	seed.AsFloat32()[0] = 1.0

	grads := tape.Backward(seed, t.backend)
	t.optimizer.Step(grads)

	return stepResult{
		value:    value,
		accuracy: nn.Accuracy(probs, batch.Labels),
	}, nil
}

// Evaluate computes the loss and accuracy over batches without recording
// gradients. The tape's recording state is restored afterwards.
func (t *Trainer[B]) Evaluate(batches []*dataset.Batch[*autodiff.Backend[B]]) (Metrics, error) {
	return Evaluate(t.model, t.backend, batches, t.opts)
}

// Evaluate computes the loss and accuracy of model over batches with tape
// recording disabled.
func Evaluate[B tensor.Backend](
	model *vit.ViT[*autodiff.Backend[B]],
	backend *autodiff.Backend[B],
	batches []*dataset.Batch[*autodiff.Backend[B]],
	opts Options,
) (Metrics, error) {
	if len(batches) == 0 {
		return Metrics{}, fmt.Errorf("%w: empty evaluation set", ErrNoBatches)
	}

	tape := backend.Tape()
	wasRecording := tape.IsRecording()
	tape.StopRecording()
	defer func() {
		if wasRecording {
			tape.StartRecording()
		}
	}()

	bar := newProgress(opts.ShowProgress, opts.out(), len(batches), "Evaluating")
	defer bar.finish()

	var acc accumulator
	for _, batch := range batches {
		probs, err := model.Predict(batch.Images)
		if err != nil {
			return Metrics{}, err
		}
		loss := backend.CrossEntropy(probs.Raw(), batch.Labels.Raw()).AsFloat32()[0]
		acc.add(loss, nn.Accuracy(probs, batch.Labels), batch.Size)
		bar.add(1)
	}
	return acc.metrics(), nil
}

func (t *Trainer[B]) logEpoch(s EpochStats) {
	line := fmt.Sprintf("Epoch %2d/%d: Loss=%.4f, Train Acc=%.2f%%",
		s.Epoch, t.opts.Epochs, s.Train.Loss, s.Train.Accuracy*100)
	if s.Val != nil {
		line += fmt.Sprintf(", Val Loss=%.4f, Val Acc=%.2f%%", s.Val.Loss, s.Val.Accuracy*100)
	}
	fmt.Fprintf(t.opts.out(), "%s (%s)\n", line, s.Duration.Round(time.Millisecond))
}

type accumulator struct {
	lossSum float32
	correct float32
	batches int
	samples int
}

func (a *accumulator) add(loss, accuracy float32, size int) {
	a.lossSum += loss
	a.correct += accuracy * float32(size)
	a.batches++
	a.samples += size
}

func (a *accumulator) metrics() Metrics {
	if a.batches == 0 {
		return Metrics{}
	}
	return Metrics{
		Loss:     a.lossSum / float32(a.batches),
		Accuracy: a.correct / float32(a.samples),
		Samples:  a.samples,
	}
}
