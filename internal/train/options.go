package train

import (
	"fmt"
	"io"
	"os"
)

// Options configures a training run.
type Options struct {
	Epochs       int       // Passes over the training batches
	BatchSize    int       // Samples per mini-batch
	LR           float32   // Adam learning rate
	Seed         int64     // Seed for batch shuffling
	ShowProgress bool      // Draw progress bars
	Out          io.Writer // Destination for per-epoch logs and progress bars
}

// DefaultOptions returns the reference training settings:
// 5 epochs, batch size 128, learning rate 0.005, seed 0.
func DefaultOptions() Options {
	return Options{
		Epochs:       5,
		BatchSize:    128,
		LR:           0.005,
		Seed:         0,
		ShowProgress: true,
		Out:          os.Stdout,
	}
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.Epochs <= 0 {
		return fmt.Errorf("%w: epochs must be positive, got %d", ErrInvalidOptions, o.Epochs)
	}
	if o.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidOptions, o.BatchSize)
	}
	if o.LR <= 0 {
		return fmt.Errorf("%w: learning rate must be positive, got %g", ErrInvalidOptions, o.LR)
	}
	return nil
}

func (o Options) out() io.Writer {
	if o.Out == nil {
		return io.Discard
	}
	return o.Out
}
