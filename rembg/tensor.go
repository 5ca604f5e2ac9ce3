package rembg

import "fmt"

// Tensor 行优先存储的 float32 张量
//
// 预处理输出的形状固定为 (1, 3, H, W)；推理引擎返回的 logits
// 可以是 (1,1,H,W)、(1,C,H,W)、(C,H,W) 或 (H,W)
type Tensor struct {
	Shape []int
	Data  []float32
}

// NewTensor 按形状分配一个全零张量
func NewTensor(shape ...int) *Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	if n < 0 {
		n = 0
	}
	return &Tensor{
		Shape: append([]int(nil), shape...),
		Data:  make([]float32, n),
	}
}

func (t *Tensor) Rank() int {
	return len(t.Shape)
}

// Len 形状各维度的乘积
func (t *Tensor) Len() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Plane 把 2~4 维张量归约为单个 (H, W) 平面，前导维度一律取下标 0
func (t *Tensor) Plane() (h, w int, plane []float32, err error) {
	if t == nil {
		return 0, 0, nil, fmt.Errorf("%w: nil tensor", ErrShape)
	}
	r := t.Rank()
	if r < 2 || r > 4 {
		return 0, 0, nil, fmt.Errorf("%w: unexpected rank %d, shape %v", ErrShape, r, t.Shape)
	}
	for _, d := range t.Shape {
		if d < 0 {
			return 0, 0, nil, fmt.Errorf("%w: negative dimension in shape %v", ErrShape, t.Shape)
		}
	}
	if t.Len() != len(t.Data) {
		return 0, 0, nil, fmt.Errorf("%w: shape %v needs %d values, got %d", ErrShape, t.Shape, t.Len(), len(t.Data))
	}

	h, w = t.Shape[r-2], t.Shape[r-1]
	if h*w == 0 || len(t.Data) == 0 {
		return 0, 0, nil, fmt.Errorf("%w: empty plane, shape %v", ErrShape, t.Shape)
	}

	// 前导维度都取 0，第一个 H*W 块就是目标平面
	return h, w, t.Data[:h*w], nil
}
