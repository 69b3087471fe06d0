package train

import "errors"

var (
	// ErrInvalidOptions is returned for non-positive epochs, batch size or learning rate.
	ErrInvalidOptions = errors.New("invalid training options")

	// ErrNoBatches is returned when there is nothing to train or evaluate on.
	ErrNoBatches = errors.New("no batches")

	// ErrConfigMismatch is returned when a checkpoint was written for a
	// different model configuration.
	ErrConfigMismatch = errors.New("checkpoint config mismatch")

	// ErrNotViTCheckpoint is returned for .born files without ViT metadata.
	ErrNotViTCheckpoint = errors.New("not a ViT checkpoint")
)
