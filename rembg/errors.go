package rembg

import "errors"

var (
	// ErrInvalidInput 调用方传入的尺寸或路径不合法
	ErrInvalidInput = errors.New("invalid input")
	// ErrShape 张量维度不满足 2~4 维或与数据长度不一致
	ErrShape = errors.New("shape error")
	// ErrPreprocessing mask 与原图尺寸不一致
	ErrPreprocessing = errors.New("image preprocessing failed")
	// ErrUnsupportedFormat 输出格式不支持
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrInference 推理引擎返回的错误，原样透传
	ErrInference = errors.New("inference failed")
	// ErrModelNotFound 推理服务上不存在该模型
	ErrModelNotFound = errors.New("model not found")
)
