//go:build !gocv
// +build !gocv

package rembg

import "math"

// edtInf 足够大的"无穷远"，避免 Inf-Inf 产生 NaN
const edtInf = 1e20

// distanceTransform 精确欧氏距离变换（Felzenszwalb & Huttenlocher）
// 返回每个像素到最近 inside 像素的距离，inside 像素为 0
// 没有任何 inside 像素时所有距离都是一个极大值
func distanceTransform(inside []bool, w, h int) []float64 {
	f := make([]float64, w*h)
	if w == 0 || h == 0 {
		return f
	}
	for i, in := range inside {
		if !in {
			f[i] = edtInf
		}
	}

	// 先按列
	parallelLines(w, func(lo, hi int) {
		s := newEDTScratch(h)
		for x := lo; x < hi; x++ {
			for y := 0; y < h; y++ {
				s.f[y] = f[y*w+x]
			}
			s.transform(h)
			for y := 0; y < h; y++ {
				f[y*w+x] = s.d[y]
			}
		}
	})

	// 再按行，最后开方
	parallelLines(h, func(lo, hi int) {
		s := newEDTScratch(w)
		for y := lo; y < hi; y++ {
			row := f[y*w : (y+1)*w]
			copy(s.f, row)
			s.transform(w)
			for x := 0; x < w; x++ {
				row[x] = math.Sqrt(s.d[x])
			}
		}
	})

	return f
}

type edtScratch struct {
	f, d, z []float64
	v       []int
}

func newEDTScratch(n int) *edtScratch {
	return &edtScratch{
		f: make([]float64, n),
		d: make([]float64, n),
		z: make([]float64, n+1),
		v: make([]int, n),
	}
}

// transform 一维平方距离变换：下包络抛物线
func (s *edtScratch) transform(n int) {
	f, d, z, v := s.f, s.d, s.z, s.v
	k := 0
	v[0] = 0
	z[0] = math.Inf(-1)
	z[1] = math.Inf(1)
	for q := 1; q < n; q++ {
		fq := f[q] + float64(q*q)
		sv := (fq - (f[v[k]] + float64(v[k]*v[k]))) / float64(2*q-2*v[k])
		// z[0] 是 -Inf，k 不会小于 0
		for sv <= z[k] {
			k--
			sv = (fq - (f[v[k]] + float64(v[k]*v[k]))) / float64(2*q-2*v[k])
		}
		k++
		v[k] = q
		z[k] = sv
		z[k+1] = math.Inf(1)
	}

	k = 0
	for q := 0; q < n; q++ {
		for z[k+1] < float64(q) {
			k++
		}
		dq := float64(q - v[k])
		d[q] = dq*dq + f[v[k]]
	}
}
