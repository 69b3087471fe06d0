package train

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"strconv"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
	"github.com/born-ml/vit/internal/vit"
	"github.com/cespare/xxhash/v2"
)

// Checkpoint model type and metadata keys.
const (
	ModelType = "ViT"

	MetaConfig      = "vit.config"
	MetaFingerprint = "vit.config_xxhash"
)

// Fingerprint hashes every field of cfg that affects parameter layout or
// numerics.
func Fingerprint(cfg vit.Config) uint64 {
	h := xxhash.New()

	buf := make([]byte, 4)
	for _, v := range []int{
		cfg.Channels, cfg.Height, cfg.Width,
		cfg.NPatches, cfg.NBlocks, cfg.HiddenD,
		cfg.NHeads, cfg.OutD, cfg.MLPRatio,
	} {
		binary.LittleEndian.PutUint32(buf, uint32(v))
		h.Write(buf)
	}
	binary.LittleEndian.PutUint32(buf, math.Float32bits(cfg.NormEps))
	h.Write(buf)

	return h.Sum64()
}

// SaveCheckpoint writes model to path in Born's .born format. The model
// config and its fingerprint are stored in the header metadata next to meta.
func SaveCheckpoint[B tensor.Backend](path string, model *vit.ViT[B], meta map[string]string) error {
	cfg, err := json.Marshal(model.Config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	metadata := make(map[string]string, len(meta)+2)
	maps.Copy(metadata, meta)
	metadata[MetaConfig] = string(cfg)
	metadata[MetaFingerprint] = formatFingerprint(Fingerprint(model.Config))

	if err := nn.Save[B](model, path, ModelType, metadata); err != nil {
		return fmt.Errorf("failed to save checkpoint %s: %w", path, err)
	}
	return nil
}

// LoadCheckpoint restores the parameters of model from path and returns the
// checkpoint metadata. Checkpoints written for a different configuration are
// rejected with ErrConfigMismatch before any parameter is touched.
func LoadCheckpoint[B tensor.Backend](path string, backend B, model *vit.ViT[B]) (map[string]string, error) {
	ckpt, err := readCheckpoint(path, backend)
	if err != nil {
		return nil, err
	}
	if ckpt.fingerprint != Fingerprint(model.Config) {
		return nil, fmt.Errorf("%w: %s was written for %+v, model is %+v", ErrConfigMismatch, path, ckpt.config, model.Config)
	}
	if err := model.LoadStateDict(ckpt.state); err != nil {
		return nil, fmt.Errorf("failed to load checkpoint %s: %w", path, err)
	}
	return ckpt.metadata, nil
}

// OpenCheckpoint builds a model from the configuration stored in path and
// loads its parameters.
func OpenCheckpoint[B tensor.Backend](path string, backend B) (*vit.ViT[B], map[string]string, error) {
	ckpt, err := readCheckpoint(path, backend)
	if err != nil {
		return nil, nil, err
	}

	model, err := vit.New(ckpt.config, backend)
	if err != nil {
		return nil, nil, fmt.Errorf("checkpoint %s: %w", path, err)
	}
	if err := model.LoadStateDict(ckpt.state); err != nil {
		return nil, nil, fmt.Errorf("failed to load checkpoint %s: %w", path, err)
	}
	return model, ckpt.metadata, nil
}

type checkpoint struct {
	config      vit.Config
	fingerprint uint64
	metadata    map[string]string
	state       map[string]*tensor.RawTensor
}

func readCheckpoint[B tensor.Backend](path string, backend B) (*checkpoint, error) {
	capture := &stateCapture[B]{}
	header, err := nn.Load[B](path, backend, capture)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint %s: %w", path, err)
	}
	if header.ModelType != ModelType {
		return nil, fmt.Errorf("%w: %s has model type %q", ErrNotViTCheckpoint, path, header.ModelType)
	}

	rawConfig, ok := header.Metadata[MetaConfig]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no %s metadata", ErrNotViTCheckpoint, path, MetaConfig)
	}
	var cfg vit.Config
	if err := json.Unmarshal([]byte(rawConfig), &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotViTCheckpoint, path, err)
	}

	stored, err := strconv.ParseUint(header.Metadata[MetaFingerprint], 16, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: bad fingerprint: %w", ErrNotViTCheckpoint, path, err)
	}
	if stored != Fingerprint(cfg) {
		return nil, fmt.Errorf("%w: %s fingerprint %016x does not match its stored config", ErrConfigMismatch, path, stored)
	}

	return &checkpoint{
		config:      cfg,
		fingerprint: stored,
		metadata:    header.Metadata,
		state:       capture.state,
	}, nil
}

func formatFingerprint(f uint64) string {
	return fmt.Sprintf("%016x", f)
}

// stateCapture is a Module that only records the state dict it is given.
// It lets a checkpoint be read before the model it belongs to exists.
type stateCapture[B tensor.Backend] struct {
	state map[string]*tensor.RawTensor
}

func (c *stateCapture[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return x
}

func (c *stateCapture[B]) Parameters() []*nn.Parameter[B] {
	return nil
}

func (c *stateCapture[B]) StateDict() map[string]*tensor.RawTensor {
	return c.state
}

func (c *stateCapture[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	c.state = stateDict
	return nil
}
