package rembg

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"
)

// Engine 外部推理引擎：输入 (1,3,H,W) 张量，返回原始 logits
type Engine interface {
	Infer(ctx context.Context, input *Tensor) (*Tensor, error)
}

// EngineFunc 把普通函数适配成 Engine
type EngineFunc func(ctx context.Context, input *Tensor) (*Tensor, error)

func (f EngineFunc) Infer(ctx context.Context, input *Tensor) (*Tensor, error) {
	return f(ctx, input)
}

// Stage 流水线阶段
type Stage string

const (
	StagePreprocess  Stage = "preprocess"
	StageInference   Stage = "inference"
	StageReconstruct Stage = "reconstruct"
	StageHeatmap     Stage = "heatmap"
	StageComposite   Stage = "composite"
	StageBorder      Stage = "border"
)

// Observer 每个阶段结束时回调一次，不会在像素循环里调用
type Observer func(stage Stage, elapsed time.Duration, err error)

type Remover struct {
	engine      Engine
	inputWidth  int
	inputHeight int
	observer    Observer
}

type Option func(*Remover)

// WithInputSize 模型声明的输入分辨率，默认 320x320
func WithInputSize(width, height int) Option {
	return func(r *Remover) {
		r.inputWidth = width
		r.inputHeight = height
	}
}

func WithObserver(o Observer) Option {
	return func(r *Remover) {
		r.observer = o
	}
}

func NewRemover(engine Engine, opts ...Option) *Remover {
	r := &Remover{
		engine:      engine,
		inputWidth:  ModelInputSize,
		inputHeight: ModelInputSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Remove 预处理 -> 推理 -> 重建 mask -> 合成 alpha -> (可选) 贴纸描边
// 任一阶段失败都不会返回部分结果
func (r *Remover) Remove(ctx context.Context, img image.Image, opts RemovalOptions) (*RemovalResult, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty source image", ErrInvalidInput)
	}
	b := img.Bounds()

	logits, err := r.infer(ctx, img)
	if err != nil {
		return nil, err
	}

	var mask *image.Gray
	err = r.stage(StageReconstruct, func() (err error) {
		mask, err = ReconstructMask(logits, b.Dx(), b.Dy())
		return err
	})
	if err != nil {
		return nil, err
	}

	var out *image.NRGBA
	err = r.stage(StageComposite, func() (err error) {
		out, err = ApplyMask(img, mask, opts)
		return err
	})
	if err != nil {
		return nil, err
	}

	if opts.StickerOutline {
		_ = r.stage(StageBorder, func() error {
			out = CleanBorder(out)
			return nil
		})
	}

	return &RemovalResult{image: out, mask: mask}, nil
}

// Mask 只重建 mask，不做合成和描边
func (r *Remover) Mask(ctx context.Context, img image.Image) (*image.Gray, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty source image", ErrInvalidInput)
	}
	b := img.Bounds()

	logits, err := r.infer(ctx, img)
	if err != nil {
		return nil, err
	}

	var mask *image.Gray
	err = r.stage(StageReconstruct, func() (err error) {
		mask, err = ReconstructMask(logits, b.Dx(), b.Dy())
		return err
	})
	if err != nil {
		return nil, err
	}
	return mask, nil
}

// Heatmap 诊断用：把模型输出渲染成原图尺寸的热力图
func (r *Remover) Heatmap(ctx context.Context, img image.Image) (*image.RGBA, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty source image", ErrInvalidInput)
	}
	b := img.Bounds()

	logits, err := r.infer(ctx, img)
	if err != nil {
		return nil, err
	}

	var heat *image.RGBA
	err = r.stage(StageHeatmap, func() (err error) {
		heat, err = Heatmap(logits, b.Dx(), b.Dy())
		return err
	})
	if err != nil {
		return nil, err
	}
	return heat, nil
}

func (r *Remover) infer(ctx context.Context, img image.Image) (*Tensor, error) {
	if r.engine == nil {
		return nil, fmt.Errorf("%w: engine is not configured", ErrInference)
	}

	var input *Tensor
	err := r.stage(StagePreprocess, func() (err error) {
		input, err = Preprocess(img, r.inputWidth, r.inputHeight)
		return err
	})
	if err != nil {
		return nil, err
	}

	var logits *Tensor
	err = r.stage(StageInference, func() (err error) {
		logits, err = r.engine.Infer(ctx, input)
		switch {
		case err == nil && logits == nil:
			return fmt.Errorf("%w: engine returned no output", ErrInference)
		case err != nil && !errors.Is(err, ErrInference):
			return fmt.Errorf("%w: %w", ErrInference, err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return logits, nil
}

func (r *Remover) stage(s Stage, fn func() error) error {
	start := time.Now()
	err := fn()
	if r.observer != nil {
		r.observer(s, time.Since(start), err)
	}
	return err
}
