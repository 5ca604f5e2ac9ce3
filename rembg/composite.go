package rembg

import (
	"fmt"
	"image"
	"math"
)

// Alpha 由 mask 值 m 和阈值 t 计算单个像素的 alpha
//
//	二值模式: m >= t 为 255，否则 0
//	平滑模式: (m-t)*255/(255-t) 线性拉伸，m <= t 全透明，m = 255 全不透明
//	t == 255: 只有 m == 255 保留（避免除零）
func Alpha(m, t uint8, binary bool) uint8 {
	if binary {
		if m >= t {
			return 255
		}
		return 0
	}
	if t == 255 {
		if m == 255 {
			return 255
		}
		return 0
	}
	if m <= t {
		return 0
	}
	a := math.Round(float64(int(m)-int(t)) * 255 / float64(255-int(t)))
	if a > 255 {
		return 255
	}
	return uint8(a)
}

// alphaLUT 同一组参数下 256 个 mask 值对应的 alpha
func alphaLUT(t uint8, binary bool) [256]uint8 {
	var lut [256]uint8
	for m := range lut {
		lut[m] = Alpha(uint8(m), t, binary)
	}
	return lut
}

// ApplyMask 用 mask 给原图合成 alpha 通道，RGB 原样保留
// mask 必须已经缩放到原图尺寸
func ApplyMask(img image.Image, mask *image.Gray, opts RemovalOptions) (*image.NRGBA, error) {
	if img == nil || mask == nil {
		return nil, fmt.Errorf("%w: nil image or mask", ErrInvalidInput)
	}
	b, mb := img.Bounds(), mask.Bounds()
	if b.Dx() != mb.Dx() || b.Dy() != mb.Dy() {
		return nil, fmt.Errorf("%w: mask %dx%d doesn't match image %dx%d",
			ErrPreprocessing, mb.Dx(), mb.Dy(), b.Dx(), b.Dy())
	}

	out := toNRGBA(img)
	lut := alphaLUT(opts.Threshold, opts.Binary)
	w := b.Dx()

	parallelLines(b.Dy(), func(lo, hi int) {
		for y := lo; y < hi; y++ {
			mrow := mask.Pix[mask.PixOffset(mb.Min.X, mb.Min.Y+y):]
			orow := out.Pix[y*out.Stride:]
			for x := 0; x < w; x++ {
				orow[x*4+3] = lut[mrow[x]]
			}
		}
	})

	return out, nil
}
