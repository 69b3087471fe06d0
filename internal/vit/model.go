package vit

import (
	"fmt"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// ViT is a Vision Transformer classifier.
//
// Forward pass:
//
//	images [N, C, H, W]
//	  → Patchify            [N, P², C·s·s]
//	  → Mapper (Linear)     [N, P², D]
//	  → prepend ClassToken  [N, P²+1, D]
//	  → + positional table  [N, P²+1, D]
//	  → Blocks × NBlocks    [N, P²+1, D]
//	  → take position 0     [N, D]
//	  → Head (Linear)       [N, OutD]
//	  → softmax             [N, OutD]
//
// The positional table is fixed at construction and is not a parameter.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	model, err := vit.New(vit.DefaultConfig(), backend)
//	probs, err := model.Predict(images)  // [N, 10], rows sum to 1
type ViT[B tensor.Backend] struct {
	Config     Config
	Mapper     *nn.Linear[B]    // [C·s·s → D]
	ClassToken *nn.Parameter[B] // [1, D]
	Blocks     []*Block[B]
	Head       *nn.Linear[B] // [D → OutD]

	posEmbed *tensor.Tensor[float32, B] // [P²+1, D], frozen
	backend  B
}

// New builds a ViT for the given configuration.
//
// Returns an error wrapping ErrInvalidConfig when the configuration is
// rejected by Config.Validate.
func New[B tensor.Backend](cfg Config, backend B) (*ViT[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	blocks := make([]*Block[B], cfg.NBlocks)
	for i := range blocks {
		block, err := NewBlock(cfg.HiddenD, cfg.NHeads, cfg.MLPRatio, cfg.NormEps, backend)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		blocks[i] = block
	}

	return &ViT[B]{
		Config:     cfg,
		Mapper:     nn.NewLinear(cfg.PatchDim(), cfg.HiddenD, backend),
		ClassToken: nn.NewParameter("class_token", tensor.Rand[float32](tensor.Shape{1, cfg.HiddenD}, backend)),
		Blocks:     blocks,
		Head:       nn.NewLinear(cfg.HiddenD, cfg.OutD, backend),
		posEmbed:   NewPositionalTable(cfg.SeqLen(), cfg.HiddenD, backend),
		backend:    backend,
	}, nil
}

// Predict runs the forward pass and returns per-class probabilities.
//
// Shapes:
//   - images: [N, C, H, W] matching the configured channels and size
//   - output: [N, OutD]
func (m *ViT[B]) Predict(images *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	tokens, err := m.Encode(images)
	if err != nil {
		return nil, err
	}

	n, seq, d := tokens.Shape()[0], tokens.Shape()[1], tokens.Shape()[2]

	// Class token sits at position 0: [N, 1, D] -> [N, D]
	cls := tokens.Chunk(seq, 1)[0].Reshape(n, d)

	return m.Head.Forward(cls).Softmax(-1), nil
}

// Encode runs the model up to the last block and returns the full token
// sequence [N, P²+1, D], class token first.
func (m *ViT[B]) Encode(images *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	if err := m.checkInput(images.Shape()); err != nil {
		return nil, err
	}

	patches, err := Patchify(images, m.Config.NPatches)
	if err != nil {
		return nil, err
	}

	n, numPatches, patchDim := patches.Shape()[0], patches.Shape()[1], patches.Shape()[2]
	d := m.Config.HiddenD

	// Linear expects 2D: [N*P², patch_dim] -> [N, P², D]
	tokens := m.Mapper.Forward(patches.Reshape(n*numPatches, patchDim)).Reshape(n, numPatches, d)

	// ones[N, 1] @ cls[1, D] repeats the class token per image while keeping
	// the product on the tape, so every copy routes gradient to the parameter.
	ones := tensor.Ones[float32](tensor.Shape{n, 1}, m.backend)
	cls := ones.MatMul(m.ClassToken.Tensor()).Reshape(n, 1, d)

	out := tensor.Cat([]*tensor.Tensor[float32, B]{cls, tokens}, 1)

	// [P²+1, D] broadcasts over the batch as [1, P²+1, D].
	out = out.Add(m.posEmbed.Reshape(1, numPatches+1, d))

	for _, block := range m.Blocks {
		out = block.Forward(out)
	}
	return out, nil
}

// Forward implements nn.Module. It panics where Predict would return an error,
// like the framework's layers do on shape violations.
func (m *ViT[B]) Forward(images *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	probs, err := m.Predict(images)
	if err != nil {
		panic(fmt.Sprintf("ViT.Forward: %v", err))
	}
	return probs
}

// Parameters returns every trainable parameter. The positional table is not
// among them.
func (m *ViT[B]) Parameters() []*nn.Parameter[B] {
	named := m.NamedParameters()
	params := make([]*nn.Parameter[B], len(named))
	for i, np := range named {
		params[i] = np.Param
	}
	return params
}

// NumParameters returns the number of trainable scalars.
func (m *ViT[B]) NumParameters() int {
	total := 0
	for _, p := range m.Parameters() {
		total += p.Tensor().Shape().NumElements()
	}
	return total
}

// PositionalTable returns the fixed [P²+1, D] positional embedding table.
func (m *ViT[B]) PositionalTable() *tensor.Tensor[float32, B] {
	return m.posEmbed
}

func (m *ViT[B]) checkInput(shape tensor.Shape) error {
	if len(shape) != 4 {
		return fmt.Errorf("%w: expected [N, C, H, W], got %v", ErrInvalidInput, shape)
	}
	c, h, w := shape[1], shape[2], shape[3]
	if h != w {
		return fmt.Errorf("%w: got %dx%d", ErrNonSquareImage, h, w)
	}
	if c != m.Config.Channels || h != m.Config.Height || w != m.Config.Width {
		return fmt.Errorf("%w: expected [N, %d, %d, %d], got %v",
			ErrInvalidInput, m.Config.Channels, m.Config.Height, m.Config.Width, shape)
	}
	return nil
}
