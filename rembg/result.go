package rembg

import "image"

// RemovalResult 抠图结果，持有最终 RGBA 图和生成它的 mask
type RemovalResult struct {
	image *image.NRGBA
	mask  *image.Gray
}

func (r *RemovalResult) Image() *image.NRGBA {
	return r.image
}

func (r *RemovalResult) Mask() *image.Gray {
	return r.mask
}

// Parts 同时取出图片和 mask
func (r *RemovalResult) Parts() (*image.NRGBA, *image.Gray) {
	return r.image, r.mask
}
