package vit

import "errors"

// Common errors.
var (
	ErrInvalidConfig  = errors.New("invalid vit config")
	ErrPatchGrid      = errors.New("image size not divisible by patch count")
	ErrHeadSplit      = errors.New("hidden dimension not divisible by head count")
	ErrNonSquareImage = errors.New("patchify requires square images")
	ErrInvalidInput   = errors.New("invalid input shape")
)
