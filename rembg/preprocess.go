package rembg

import (
	"fmt"
	"image"

	"github.com/nfnt/resize"
)

// ModelInputSize U2-Net 类模型的输入边长
const ModelInputSize = 320

// ImageNet 统计量，预训练骨干网络按这个分布训练
var (
	channelMean = [3]float32{0.485, 0.456, 0.406}
	channelStd  = [3]float32{0.229, 0.224, 0.225}
)

// Preprocess 把任意输入图片变成模型输入张量
//
//	丢弃 alpha，只保留 RGB
//	Lanczos3 缩放到 width x height（模型训练时用的是平滑下采样）
//	按通道做 (v/255 - mean) / std
//	输出布局 (1, 3, height, width)
func Preprocess(img image.Image, width, height int) (*Tensor, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: target size %dx%d", ErrInvalidInput, width, height)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty source image", ErrInvalidInput)
	}

	rgb := toOpaqueRGBA(img)
	resized := asRGBA(resize.Resize(uint(width), uint(height), rgb, resize.Lanczos3))

	t := NewTensor(1, 3, height, width)
	planeSize := width * height
	parallelLines(height, func(lo, hi int) {
		for y := lo; y < hi; y++ {
			row := resized.Pix[y*resized.Stride:]
			for x := 0; x < width; x++ {
				p := row[x*4 : x*4+3]
				i := y*width + x
				for c := 0; c < 3; c++ {
					t.Data[c*planeSize+i] = (float32(p[c])/255 - channelMean[c]) / channelStd[c]
				}
			}
		}
	})

	return t, nil
}
