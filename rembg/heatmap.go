package rembg

import (
	"fmt"
	"image"
	"math"

	"github.com/nfnt/resize"
)

// HeatmapGamma >1 更"硬"，<1 更"软"，建议 0.8~1.2
const HeatmapGamma = 1.2

// Heatmap 把概率图渲染成热力图（无 alpha），用于诊断模型输出
// 与 ReconstructMask 共用 sigmoid 和缩放，只是把单通道换成调色板
func Heatmap(logits *Tensor, width, height int) (*image.RGBA, error) {
	return heatmap(logits, width, height, HeatmapGamma)
}

func heatmap(logits *Tensor, width, height int, gamma float64) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: target size %dx%d", ErrInvalidInput, width, height)
	}
	h, w, plane, err := logits.Plane()
	if err != nil {
		return nil, err
	}

	lut := heatLUT(gamma)

	heat := image.NewRGBA(image.Rect(0, 0, w, h))
	parallelLines(h, func(lo, hi int) {
		for i := lo * w; i < hi*w; i++ {
			c := lut[quantize(sigmoid(plane[i]))]
			heat.Pix[i*4] = c[0]
			heat.Pix[i*4+1] = c[1]
			heat.Pix[i*4+2] = c[2]
			heat.Pix[i*4+3] = 0xff
		}
	})

	if w == width && h == height {
		return heat, nil
	}
	return toOpaqueRGBA(resize.Resize(uint(width), uint(height), heat, resize.Lanczos3)), nil
}

// heatLUT 256 级查找表，gamma 截断到 [0.2, 5]
func heatLUT(gamma float64) [256][3]uint8 {
	g := math.Min(math.Max(gamma, 0.2), 5)
	var lut [256][3]uint8
	for i := range lut {
		r, gg, b := colormap(math.Pow(float64(i)/255, g))
		lut[i] = [3]uint8{r, gg, b}
	}
	return lut
}
