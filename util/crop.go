package util

import (
	"image"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// SubjectBounds 返回 alpha >= minAlpha 的像素的外接矩形，坐标以 (0,0) 为原点
// 没有任何主体像素时 ok 为 false
func SubjectBounds(img *image.NRGBA, minAlpha uint8) (bbox image.Rectangle, ok bool) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	minX, minY := w, h
	maxX, maxY := 0, 0

	for y := 0; y < h; y++ {
		row := img.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < w; x++ {
			if img.Pix[row+x*4+3] < minAlpha {
				continue
			}
			ok = true
			minX = min(minX, x)
			minY = min(minY, y)
			maxX = max(maxX, x)
			maxY = max(maxY, y)
		}
	}

	if !ok {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

// TrimBounds 主体外接矩形四周留 padding 像素（不超出原图），没有主体时为整张图
func TrimBounds(img *image.NRGBA, minAlpha uint8, padding int) image.Rectangle {
	b := img.Bounds()
	full := image.Rect(0, 0, b.Dx(), b.Dy())
	bbox, ok := SubjectBounds(img, minAlpha)
	if !ok {
		return full
	}
	return bbox.Inset(-max(padding, 0)).Intersect(full)
}

// Trim 按 TrimBounds 裁剪，返回新图
func Trim(img *image.NRGBA, minAlpha uint8, padding int) *image.NRGBA {
	bbox := TrimBounds(img, minAlpha, padding)
	dst := image.NewNRGBA(image.Rect(0, 0, bbox.Dx(), bbox.Dy()))
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min.Add(bbox.Min), draw.Src)
	return dst
}

// FitWithin 最长边超过 maxSize 时等比缩小，maxSize <= 0 表示不限制
func FitWithin(img image.Image, maxSize int) image.Image {
	if maxSize <= 0 {
		return img
	}
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	longest := max(w, h)

	if longest <= maxSize {
		return img
	}

	scale := float64(maxSize) / float64(longest)
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	return resize.Resize(uint(newW), uint(newH), img, resize.Lanczos3)
}

// TrimResult 结果图和 mask 裁成同一块区域
func TrimResult(img *image.NRGBA, mask *image.Gray) (*image.NRGBA, *image.Gray) {
	bbox := TrimBounds(img, 1, 0)
	trimmed := Trim(img, 1, 0)
	if mask == nil {
		return trimmed, nil
	}
	m := image.NewGray(image.Rect(0, 0, bbox.Dx(), bbox.Dy()))
	draw.Draw(m, m.Bounds(), mask, mask.Bounds().Min.Add(bbox.Min), draw.Src)
	return trimmed, m
}
