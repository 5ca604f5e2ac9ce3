package rembg

import (
	"fmt"
	"image"
	"math"

	"github.com/nfnt/resize"
)

// ReconstructMask logits -> sigmoid -> 8 位概率图 -> 缩放回原图尺寸
//
// 先量化再缩放：Lanczos3 作用在 8 位灰度平面上而不是浮点概率上，
// 输出与这一顺序绑定，不能调换
func ReconstructMask(logits *Tensor, width, height int) (*image.Gray, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: target size %dx%d", ErrInvalidInput, width, height)
	}
	h, w, plane, err := logits.Plane()
	if err != nil {
		return nil, err
	}

	gray := image.NewGray(image.Rect(0, 0, w, h))
	parallelLines(h, func(lo, hi int) {
		for i := lo * w; i < hi*w; i++ {
			gray.Pix[i] = quantize(sigmoid(plane[i]))
		}
	})

	if w == width && h == height {
		return gray, nil
	}

	return copyGray(asGray(resize.Resize(uint(width), uint(height), gray, resize.Lanczos3))), nil
}

func sigmoid(v float32) float64 {
	return 1 / (1 + math.Exp(-float64(v)))
}

// quantize round(p*255)，截断到 [0, 255]，NaN 记为 0
func quantize(p float64) uint8 {
	v := math.Round(p * 255)
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v)
}

// copyGray 保证返回的 mask 不和缩放库内部缓冲区共享内存
func copyGray(src *image.Gray) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, src.Bounds().Dx(), src.Bounds().Dy()))
	for y := 0; y < dst.Rect.Dy(); y++ {
		si := src.PixOffset(src.Rect.Min.X, src.Rect.Min.Y+y)
		copy(dst.Pix[y*dst.Stride:(y+1)*dst.Stride], src.Pix[si:si+dst.Rect.Dx()])
	}
	return dst
}
