package rembg

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedEngine 不管输入，总是返回同一组 logits
func fixedEngine(t *testing.T, logits *Tensor) Engine {
	return EngineFunc(func(ctx context.Context, input *Tensor) (*Tensor, error) {
		assert.Equal(t, []int{1, 3, ModelInputSize, ModelInputSize}, input.Shape)
		return logits, nil
	})
}

type stageRecorder struct {
	mu     sync.Mutex
	stages []Stage
	errs   []error
}

func (r *stageRecorder) observe(s Stage, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, s)
	r.errs = append(r.errs, err)
}

func TestRemover_Remove(t *testing.T) {
	t.Parallel()

	logits := &Tensor{Shape: []int{1, 1, 2, 2}, Data: []float32{10, 10, -10, -10}}
	rec := &stageRecorder{}
	r := NewRemover(fixedEngine(t, logits), WithObserver(rec.observe))

	img := uniformNRGBA(4, 4, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
	res, err := r.Remove(context.Background(), img, DefaultOptions().WithThreshold(128).WithBinary(true))
	require.NoError(t, err)

	out, mask := res.Parts()
	require.Equal(t, image.Rect(0, 0, 4, 4), out.Bounds())
	require.Equal(t, image.Rect(0, 0, 4, 4), mask.Bounds())
	for x := 0; x < 4; x++ {
		assert.Equal(t, color.NRGBA{R: 200, G: 100, B: 50, A: 255}, out.NRGBAAt(x, 0))
		assert.Equal(t, color.NRGBA{R: 200, G: 100, B: 50, A: 0}, out.NRGBAAt(x, 3))
		assert.Equal(t, uint8(255), mask.GrayAt(x, 0).Y)
		assert.Equal(t, uint8(0), mask.GrayAt(x, 3).Y)
	}

	assert.Equal(t, []Stage{StagePreprocess, StageInference, StageReconstruct, StageComposite}, rec.stages)
	assert.Same(t, res.Image(), out)
	assert.Same(t, res.Mask(), mask)
}

func TestRemover_StickerOutline(t *testing.T) {
	t.Parallel()

	// 40x40 图，logits 只有中间一块是前景
	logits := NewTensor(40, 40)
	for i := range logits.Data {
		logits.Data[i] = -20
	}
	for y := 16; y < 24; y++ {
		for x := 16; x < 24; x++ {
			logits.Data[y*40+x] = 20
		}
	}
	engine := EngineFunc(func(ctx context.Context, input *Tensor) (*Tensor, error) {
		return logits, nil
	})

	rec := &stageRecorder{}
	r := NewRemover(engine, WithInputSize(40, 40), WithObserver(rec.observe))
	img := uniformNRGBA(40, 40, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	res, err := r.Remove(context.Background(), img, DefaultOptions().WithStickerOutline(true))
	require.NoError(t, err)

	assert.Equal(t, StageBorder, rec.stages[len(rec.stages)-1])
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, res.Image().NRGBAAt(20, 20))
	assert.Equal(t, color.NRGBA{A: 255}, res.Image().NRGBAAt(12, 20))
	assert.Equal(t, uint8(0), res.Image().NRGBAAt(0, 0).A)
}

func TestRemover_EngineError(t *testing.T) {
	t.Parallel()

	cause := errors.New("session crashed")
	rec := &stageRecorder{}
	r := NewRemover(EngineFunc(func(ctx context.Context, input *Tensor) (*Tensor, error) {
		return nil, cause
	}), WithObserver(rec.observe))

	res, err := r.Remove(context.Background(), uniformNRGBA(4, 4, color.NRGBA{A: 255}), DefaultOptions())
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrInference)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, []Stage{StagePreprocess, StageInference}, rec.stages)
	assert.Error(t, rec.errs[1])
}

func TestRemover_Errors(t *testing.T) {
	t.Parallel()

	img := uniformNRGBA(4, 4, color.NRGBA{A: 255})
	tests := []struct {
		name    string
		remover *Remover
		img     image.Image
		wantErr error
	}{
		{
			name:    "未配置引擎",
			remover: NewRemover(nil),
			img:     img,
			wantErr: ErrInference,
		},
		{
			name: "引擎返回空结果",
			remover: NewRemover(EngineFunc(func(ctx context.Context, input *Tensor) (*Tensor, error) {
				return nil, nil
			})),
			img:     img,
			wantErr: ErrInference,
		},
		{
			name: "引擎返回非法形状",
			remover: NewRemover(EngineFunc(func(ctx context.Context, input *Tensor) (*Tensor, error) {
				return NewTensor(16), nil
			})),
			img:     img,
			wantErr: ErrShape,
		},
		{
			name:    "输入尺寸为 0",
			remover: NewRemover(fixedEngine(t, NewTensor(2, 2)), WithInputSize(0, 320)),
			img:     img,
			wantErr: ErrInvalidInput,
		},
		{
			name:    "空图片",
			remover: NewRemover(fixedEngine(t, NewTensor(2, 2))),
			img:     image.NewNRGBA(image.Rect(0, 0, 0, 0)),
			wantErr: ErrInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.remover.Remove(context.Background(), tt.img, DefaultOptions())
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRemover_Heatmap(t *testing.T) {
	t.Parallel()

	r := NewRemover(fixedEngine(t, NewTensor(1, 1, 8, 8)))
	heat, err := r.Heatmap(context.Background(), uniformNRGBA(12, 6, color.NRGBA{A: 255}))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 12, 6), heat.Bounds())
}

func TestRemover_Mask(t *testing.T) {
	t.Parallel()

	logits := &Tensor{Shape: []int{2, 2}, Data: []float32{10, -10, 10, -10}}
	rec := &stageRecorder{}
	r := NewRemover(fixedEngine(t, logits), WithObserver(rec.observe))

	mask, err := r.Mask(context.Background(), uniformNRGBA(2, 2, color.NRGBA{A: 255}))
	require.NoError(t, err)
	assert.Equal(t, []uint8{255, 0, 255, 0}, mask.Pix)
	// 不经过合成和描边
	assert.Equal(t, []Stage{StagePreprocess, StageInference, StageReconstruct}, rec.stages)

	_, err = r.Mask(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
