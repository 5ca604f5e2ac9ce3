//go:build gocv
// +build gocv

package rembg

import (
	"gocv.io/x/gocv"
)

// distanceTransform 由 OpenCV 计算精确欧氏距离（DIST_L2 + 精确掩模）
// OpenCV 计算的是到最近 0 像素的距离，所以 inside 写 0，outside 写 255
func distanceTransform(inside []bool, w, h int) []float64 {
	out := make([]float64, w*h)
	if w == 0 || h == 0 {
		return out
	}

	src := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8U)
	defer src.Close()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var v uint8
			if !inside[y*w+x] {
				v = 255
			}
			src.SetUCharAt(y, x, v)
		}
	}

	dst := gocv.NewMat()
	defer dst.Close()
	labels := gocv.NewMat()
	defer labels.Close()

	gocv.DistanceTransform(src, &dst, &labels, gocv.DistL2, gocv.DistanceMaskPrecise, gocv.DistanceLabelCComp)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out[y*w+x] = float64(dst.GetFloatAt(y, x))
		}
	}
	return out
}
