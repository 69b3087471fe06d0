package vit

import (
	"fmt"
	"sort"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// NamedParameter pairs a parameter with its dotted state-dict key.
type NamedParameter[B tensor.Backend] struct {
	Name  string
	Param *nn.Parameter[B]
}

// NamedParameters returns every trainable parameter with a stable key, e.g.
// "mapper.weight", "class_token", "blocks.0.msa.q.1.bias", "head.weight".
func (m *ViT[B]) NamedParameters() []NamedParameter[B] {
	var out []NamedParameter[B]
	out = appendLinear(out, "mapper", m.Mapper)
	out = append(out, NamedParameter[B]{Name: "class_token", Param: m.ClassToken})
	for i, block := range m.Blocks {
		out = block.namedParameters(fmt.Sprintf("blocks.%d.", i), out)
	}
	return appendLinear(out, "head", m.Head)
}

// StateDict implements nn.Module.
func (m *ViT[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for _, np := range m.NamedParameters() {
		stateDict[np.Name] = np.Param.Tensor().Raw()
	}
	return stateDict
}

// LoadStateDict implements nn.Module. Every key must be present with the
// exact shape and float32 dtype; unknown keys are rejected. Nothing is
// copied unless the whole dict is valid.
func (m *ViT[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	named := m.NamedParameters()

	known := make(map[string]struct{}, len(named))
	for _, np := range named {
		known[np.Name] = struct{}{}
	}
	var unexpected []string
	for key := range stateDict {
		if _, ok := known[key]; !ok {
			unexpected = append(unexpected, key)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return fmt.Errorf("unexpected keys in state dict: %v", unexpected)
	}

	for _, np := range named {
		raw, ok := stateDict[np.Name]
		if !ok {
			return fmt.Errorf("missing %s in state dict", np.Name)
		}
		t := np.Param.Tensor()
		if !raw.Shape().Equal(t.Shape()) {
			return fmt.Errorf("%s shape mismatch: expected %v, got %v", np.Name, t.Shape(), raw.Shape())
		}
		if raw.DType() != tensor.Float32 {
			return fmt.Errorf("%s dtype mismatch: expected float32, got %v", np.Name, raw.DType())
		}
	}

	for _, np := range named {
		copy(np.Param.Tensor().Data(), stateDict[np.Name].AsFloat32())
	}
	return nil
}

// appendLinear names a Linear's weight and bias under prefix.
func appendLinear[B tensor.Backend](out []NamedParameter[B], prefix string, l *nn.Linear[B]) []NamedParameter[B] {
	return appendParams(out, prefix, l.Parameters())
}

// appendNorm names a LayerNorm's gamma and beta under prefix.
func appendNorm[B tensor.Backend](out []NamedParameter[B], prefix string, n *nn.LayerNorm[B]) []NamedParameter[B] {
	return appendParams(out, prefix, n.Parameters())
}

func appendParams[B tensor.Backend](out []NamedParameter[B], prefix string, params []*nn.Parameter[B]) []NamedParameter[B] {
	for _, p := range params {
		out = append(out, NamedParameter[B]{Name: prefix + "." + p.Name(), Param: p})
	}
	return out
}
