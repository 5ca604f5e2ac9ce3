package rembg

import (
	colorful "github.com/lucasb-eyer/go-colorful"
)

type colorStop struct {
	at float64
	c  colorful.Color
}

func rgb(r, g, b uint8) colorful.Color {
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
}

// 0.0 = 黑，1.0 = 白
// black → navy → blue → purple → red → orange → yellow → white
var heatStops = []colorStop{
	{0.00, rgb(0, 0, 0)},
	{0.15, rgb(0, 0, 64)},
	{0.30, rgb(0, 0, 255)},
	{0.45, rgb(128, 0, 192)},
	{0.60, rgb(255, 0, 0)},
	{0.75, rgb(255, 128, 0)},
	{0.90, rgb(255, 255, 0)},
	{1.00, rgb(255, 255, 255)},
}

// colormap 在相邻两个色标之间做 RGB 线性插值
func colormap(t float64) (r, g, b uint8) {
	t = clamp01(t)
	for i := 1; i < len(heatStops); i++ {
		s0, s1 := heatStops[i-1], heatStops[i]
		if t <= s1.at {
			local := 0.0
			if s1.at > s0.at {
				local = (t - s0.at) / (s1.at - s0.at)
			}
			return s0.c.BlendRgb(s1.c, local).RGB255()
		}
	}
	return heatStops[len(heatStops)-1].c.RGB255()
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
