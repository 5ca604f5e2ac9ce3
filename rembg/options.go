package rembg

// DefaultThreshold 平滑模式下的默认阈值
const DefaultThreshold uint8 = 160

// RemovalOptions 抠图参数，值类型，构造后不再修改
type RemovalOptions struct {
	// Threshold 0~255，越大去除背景越激进
	//   - 76~102: 边缘柔和，保留半透明
	//   - 128: 折中
	//   - 153~179: 边缘干净
	Threshold uint8

	// Binary 为 true 时只输出全透明或全不透明
	Binary bool

	// StickerOutline 合成后在主体外侧描一圈黑边
	StickerOutline bool
}

func DefaultOptions() RemovalOptions {
	return RemovalOptions{Threshold: DefaultThreshold}
}

func (o RemovalOptions) WithThreshold(threshold uint8) RemovalOptions {
	o.Threshold = threshold
	return o
}

func (o RemovalOptions) WithBinary(binary bool) RemovalOptions {
	o.Binary = binary
	return o
}

func (o RemovalOptions) WithStickerOutline(outline bool) RemovalOptions {
	o.StickerOutline = outline
	return o
}
