package util

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func subjectImage(w, h int, subject image.Rectangle) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := subject.Min.Y; y < subject.Max.Y; y++ {
		for x := subject.Min.X; x < subject.Max.X; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}
	return img
}

func TestSubjectBounds(t *testing.T) {
	t.Parallel()

	img := subjectImage(20, 10, image.Rect(3, 2, 7, 9))
	// 低于阈值的噪点不算主体
	img.SetNRGBA(18, 0, color.NRGBA{A: 5})

	bbox, ok := SubjectBounds(img, 16)
	assert.True(t, ok)
	assert.Equal(t, image.Rect(3, 2, 7, 9), bbox)

	bbox, ok = SubjectBounds(img, 1)
	assert.True(t, ok)
	assert.Equal(t, image.Rect(3, 0, 19, 9), bbox)

	_, ok = SubjectBounds(image.NewNRGBA(image.Rect(0, 0, 4, 4)), 1)
	assert.False(t, ok)
}

func TestTrim(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		img     *image.NRGBA
		padding int
		want    image.Rectangle
	}{
		{"紧贴主体", subjectImage(20, 10, image.Rect(3, 2, 7, 9)), 0, image.Rect(0, 0, 4, 7)},
		{"留白", subjectImage(20, 10, image.Rect(3, 2, 7, 9)), 2, image.Rect(0, 0, 8, 10)},
		{"留白超出边界", subjectImage(20, 10, image.Rect(0, 0, 2, 2)), 5, image.Rect(0, 0, 7, 7)},
		{"没有主体", image.NewNRGBA(image.Rect(0, 0, 5, 3)), 0, image.Rect(0, 0, 5, 3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Trim(tt.img, 1, tt.padding)
			assert.Equal(t, tt.want, got.Bounds())
		})
	}

	got := Trim(subjectImage(20, 10, image.Rect(3, 2, 7, 9)), 1, 0)
	assert.Equal(t, color.NRGBA{R: 200, G: 10, B: 10, A: 255}, got.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 200, G: 10, B: 10, A: 255}, got.NRGBAAt(3, 6))
}

func TestTrim_SubImage(t *testing.T) {
	t.Parallel()

	img := subjectImage(20, 10, image.Rect(3, 2, 7, 9))
	sub := img.SubImage(image.Rect(2, 1, 20, 10)).(*image.NRGBA)

	got := Trim(sub, 1, 0)
	assert.Equal(t, image.Rect(0, 0, 4, 7), got.Bounds())
	assert.Equal(t, uint8(255), got.NRGBAAt(0, 0).A)
}

func TestFitWithin(t *testing.T) {
	t.Parallel()

	img := image.NewNRGBA(image.Rect(0, 0, 200, 100))

	assert.Same(t, img, FitWithin(img, 0))
	assert.Same(t, img, FitWithin(img, 200))
	assert.Equal(t, image.Rect(0, 0, 50, 25), FitWithin(img, 50).Bounds())
	assert.Equal(t, image.Rect(0, 0, 10, 5), FitWithin(img, 10).Bounds())
}

func TestTrimBounds(t *testing.T) {
	t.Parallel()

	img := subjectImage(20, 10, image.Rect(3, 2, 7, 9))
	assert.Equal(t, image.Rect(3, 2, 7, 9), TrimBounds(img, 1, 0))
	assert.Equal(t, image.Rect(2, 1, 8, 10), TrimBounds(img, 1, 1))
	// 负的 padding 当 0 处理
	assert.Equal(t, image.Rect(3, 2, 7, 9), TrimBounds(img, 1, -3))
	assert.Equal(t, image.Rect(0, 0, 20, 10), TrimBounds(image.NewNRGBA(image.Rect(0, 0, 20, 10)), 1, 0))
}

func TestTrimResult(t *testing.T) {
	t.Parallel()

	img := subjectImage(20, 10, image.Rect(3, 2, 7, 9))
	mask := image.NewGray(image.Rect(0, 0, 20, 10))
	mask.SetGray(3, 2, color.Gray{Y: 200})

	out, m := TrimResult(img, mask)
	assert.Equal(t, image.Rect(0, 0, 4, 7), out.Bounds())
	assert.Equal(t, image.Rect(0, 0, 4, 7), m.Bounds())
	assert.Equal(t, uint8(200), m.GrayAt(0, 0).Y)

	out, m = TrimResult(img, nil)
	assert.Equal(t, image.Rect(0, 0, 4, 7), out.Bounds())
	assert.Nil(t, m)
}
