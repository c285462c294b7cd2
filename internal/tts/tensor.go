package tts

import "fmt"

// Tensor is a minimal named n-dimensional array passed to and from the
// ONNX session — just enough to describe the three input tensors and one
// output tensor this engine's graph uses.
type Tensor struct {
	shape []int64
	data  any // []int64 or []float32
}

// NewInt64Tensor builds a tensor backed by int64 data, validating that the
// shape's element count matches len(data).
func NewInt64Tensor(data []int64, shape []int64) (*Tensor, error) {
	if err := checkShape(shape, len(data)); err != nil {
		return nil, err
	}
	return &Tensor{shape: shape, data: data}, nil
}

// NewFloat32Tensor builds a tensor backed by float32 data, validating that
// the shape's element count matches len(data).
func NewFloat32Tensor(data []float32, shape []int64) (*Tensor, error) {
	if err := checkShape(shape, len(data)); err != nil {
		return nil, err
	}
	return &Tensor{shape: shape, data: data}, nil
}

// Shape returns the tensor's dimensions.
func (t *Tensor) Shape() []int64 { return t.shape }

// Data returns the tensor's backing slice ([]int64 or []float32).
func (t *Tensor) Data() any { return t.data }

// Float32 returns the backing data as []float32, erroring if the tensor
// holds a different element type.
func (t *Tensor) Float32() ([]float32, error) {
	v, ok := t.data.([]float32)
	if !ok {
		return nil, fmt.Errorf("tts: expected float32 tensor, got %T", t.data)
	}
	return v, nil
}

func checkShape(shape []int64, n int) error {
	count := int64(1)
	for _, d := range shape {
		if d < 1 {
			return fmt.Errorf("tts: shape %v has non-positive dimension", shape)
		}
		count *= d
	}
	if int(count) != n {
		return fmt.Errorf("tts: shape %v expects %d elements, got %d", shape, count, n)
	}
	return nil
}
