package rembg

import (
	"image"
	"math"
)

const (
	// insideAlpha alpha >= 16 视为贴纸主体，低于它的是合成噪声
	insideAlpha = 16
	// outlineStroke 描边全强度宽度（像素）
	outlineStroke = 6.0
	// outlineFeather 描边外缘的羽化宽度（像素）
	outlineFeather = 1.5
	// outlineTail 低于 3/255 的描边 alpha 直接置 0，外缘不留孤立的半透明点
	outlineTail = 3
)

// CleanBorder 只在贴纸外侧加一圈柔和的黑色描边（约 6px，羽化约 1.5px）
// 主体像素（alpha >= 16）原样保留
func CleanBorder(img *image.NRGBA) *image.NRGBA {
	return cleanBorder(img, outlineStroke, outlineFeather)
}

func cleanBorder(img *image.NRGBA, stroke, feather float64) *image.NRGBA {
	src := toNRGBA(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()

	// 1. 主体二值掩码
	inside := make([]bool, w*h)
	for i := range inside {
		inside[i] = src.Pix[i*4+3] >= insideAlpha
	}

	// 2. 外部像素到主体的欧氏距离，圆角弧线不会出现棋盘格锯齿
	dist := distanceTransform(inside, w, h)

	// 3. 黑色描边垫在贴纸下面，标准 over 合成
	out := image.NewNRGBA(src.Rect)
	parallelLines(h, func(lo, hi int) {
		for i := lo * w; i < hi*w; i++ {
			p := src.Pix[i*4 : i*4+4]
			q := out.Pix[i*4 : i*4+4]
			if inside[i] {
				copy(q, p)
				continue
			}
			compositeOver(q, p, float64(outlineAlpha(dist[i], stroke, feather))/255)
		}
	})

	return out
}

// outlineAlpha 距离 d 处的描边 alpha
// [0, stroke] 全强度，(stroke, stroke+feather) smoothstep 衰减，之后为 0
func outlineAlpha(d, stroke, feather float64) uint8 {
	a01 := 1.0
	if d > stroke {
		a01 = 1 - smoothstep(stroke, stroke+feather, d)
	}
	a := math.Round(a01 * 255)
	switch {
	case a < outlineTail:
		return 0
	case a > 255:
		return 255
	}
	return uint8(a)
}

// compositeOver top over 黑色描边（RGB 全 0，alpha 为 ba）
func compositeOver(dst, top []uint8, ba float64) {
	ta := float64(top[3]) / 255
	oa := ta + ba*(1-ta)
	if oa <= 0 {
		dst[0], dst[1], dst[2], dst[3] = 0, 0, 0, 0
		return
	}
	// 描边是黑色，预乘后只剩 top 的贡献
	dst[0] = roundByte(float64(top[0]) * ta / oa)
	dst[1] = roundByte(float64(top[1]) * ta / oa)
	dst[2] = roundByte(float64(top[2]) * ta / oa)
	dst[3] = roundByte(oa * 255)
}

func smoothstep(e0, e1, x float64) float64 {
	t := clamp01((x - e0) / (e1 - e0))
	return t * t * (3 - 2*t)
}

func roundByte(v float64) uint8 {
	v = math.Round(v)
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v)
}
