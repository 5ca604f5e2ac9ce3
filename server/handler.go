package server

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/chaos-io/rembg/rembg"
	"github.com/chaos-io/rembg/util"
)

const resultIDHeader = "X-Result-ID"

// Prober 探测推理服务是否可用
type Prober interface {
	Ready(ctx context.Context) error
}

type Handler struct {
	remover  *rembg.Remover
	store    *ResultStore
	cache    ResultCache
	prober   Prober
	defaults rembg.RemovalOptions
	quality  int
	trim     bool
	maxSize  int
}

type HandlerOption func(*Handler)

func WithDefaults(opts rembg.RemovalOptions) HandlerOption {
	return func(h *Handler) { h.defaults = opts }
}

func WithQuality(q int) HandlerOption {
	return func(h *Handler) { h.quality = q }
}

// WithTrim 表单没传 trim 时的默认值
func WithTrim(trim bool) HandlerOption {
	return func(h *Handler) { h.trim = trim }
}

// WithMaxSize 上传图片最长边上限，超过先缩小
func WithMaxSize(n int) HandlerOption {
	return func(h *Handler) { h.maxSize = n }
}

func WithProber(p Prober) HandlerOption {
	return func(h *Handler) { h.prober = p }
}

func NewHandler(remover *rembg.Remover, store *ResultStore, cache ResultCache, opts ...HandlerOption) *Handler {
	if cache == nil {
		cache = NopCache{}
	}
	h := &Handler{
		remover:  remover,
		store:    store,
		cache:    cache,
		defaults: rembg.DefaultOptions(),
		quality:  util.DefaultQuality,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Health(c *gin.Context) {
	if h.prober != nil {
		if err := h.prober.Ready(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Remove 抠图，返回编码后的图片，X-Result-ID 可用于之后再次下载
func (h *Handler) Remove(c *gin.Context) {
	data, err := readUpload(c)
	if err != nil {
		abortWithError(c, "请上传图片文件", err)
		return
	}

	opts, err := h.parseOptions(c)
	if err != nil {
		abortWithError(c, "参数错误", err)
		return
	}
	trim, err := formBool(c, "trim", h.trim)
	if err != nil {
		abortWithError(c, "参数错误", err)
		return
	}

	format, err := util.ParseFormat(c.DefaultPostForm("format", "png"))
	if err != nil {
		abortWithError(c, "不支持的输出格式，仅支持 png/jpeg/webp", err)
		return
	}
	ext := format.Ext()

	ctx := c.Request.Context()
	key := CacheKey(data, opts, trim, ext)
	if id := h.lookup(ctx, key); id != "" {
		if p, err := h.store.Path(id); err == nil {
			util.Logger.Info("cache hit", zap.String("cache_key", key), zap.String("id", id))
			c.Header(resultIDHeader, id)
			c.File(p)
			return
		}
	}

	img, err := h.decodeUpload(data)
	if err != nil {
		abortWithError(c, "无法解码图片", err)
		return
	}

	result, err := h.remover.Remove(ctx, img, opts)
	if err != nil {
		util.Logger.Error("failed to remove background", zap.Error(err))
		abortWithError(c, "图片处理失败", err)
		return
	}
	cutout, m := result.Parts()
	if trim {
		cutout, m = util.TrimResult(cutout, m)
	}

	var out bytes.Buffer
	if err := util.EncodeImage(&out, cutout, format, h.quality); err != nil {
		abortWithError(c, "编码失败", err)
		return
	}
	var mask bytes.Buffer
	if err := util.EncodeImage(&mask, m, util.PNG, 0); err != nil {
		abortWithError(c, "编码失败", err)
		return
	}

	id := ksuid.New().String()
	if err := h.store.Save(id, ext, out.Bytes(), mask.Bytes()); err != nil {
		util.Logger.Warn("failed to save result", zap.String("id", id), zap.Error(err))
	} else {
		if err := h.cache.Set(ctx, key, id); err != nil {
			util.Logger.Warn("failed to set cache", zap.Error(err))
		}
		c.Header(resultIDHeader, id)
	}

	c.Data(http.StatusOK, format.ContentType(), out.Bytes())
}

// Mask 只返回灰度 mask
func (h *Handler) Mask(c *gin.Context) {
	data, err := readUpload(c)
	if err != nil {
		abortWithError(c, "请上传图片文件", err)
		return
	}
	img, err := h.decodeUpload(data)
	if err != nil {
		abortWithError(c, "无法解码图片", err)
		return
	}

	mask, err := h.remover.Mask(c.Request.Context(), img)
	if err != nil {
		util.Logger.Error("failed to build mask", zap.Error(err))
		abortWithError(c, "图片处理失败", err)
		return
	}

	var out bytes.Buffer
	if err := util.EncodeImage(&out, mask, util.PNG, 0); err != nil {
		abortWithError(c, "编码失败", err)
		return
	}
	c.Data(http.StatusOK, "image/png", out.Bytes())
}

// Heatmap 返回前景概率的伪彩色图
func (h *Handler) Heatmap(c *gin.Context) {
	data, err := readUpload(c)
	if err != nil {
		abortWithError(c, "请上传图片文件", err)
		return
	}
	img, err := h.decodeUpload(data)
	if err != nil {
		abortWithError(c, "无法解码图片", err)
		return
	}

	heat, err := h.remover.Heatmap(c.Request.Context(), img)
	if err != nil {
		util.Logger.Error("failed to build heatmap", zap.Error(err))
		abortWithError(c, "图片处理失败", err)
		return
	}

	var out bytes.Buffer
	if err := util.EncodeImage(&out, heat, util.PNG, 0); err != nil {
		abortWithError(c, "编码失败", err)
		return
	}
	c.Data(http.StatusOK, "image/png", out.Bytes())
}

func (h *Handler) GetResult(c *gin.Context) {
	p, err := h.store.Path(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Success: false, Message: "未找到该结果"})
		return
	}
	c.File(p)
}

func (h *Handler) GetResultMask(c *gin.Context) {
	p, err := h.store.MaskPath(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Success: false, Message: "未找到该结果"})
		return
	}
	c.File(p)
}

func (h *Handler) lookup(ctx context.Context, key string) string {
	id, err := h.cache.Get(ctx, key)
	if err != nil {
		util.Logger.Warn("failed to get cache", zap.Error(err))
		return ""
	}
	return id
}

// parseOptions 表单里没给的参数用默认值
func (h *Handler) parseOptions(c *gin.Context) (rembg.RemovalOptions, error) {
	opts := h.defaults

	if v, ok := c.GetPostForm("threshold"); ok {
		t, err := strconv.Atoi(v)
		if err != nil || t < 0 || t > 255 {
			return opts, fmt.Errorf("%w: threshold must be an integer within 0..255, got %q", rembg.ErrInvalidInput, v)
		}
		opts = opts.WithThreshold(uint8(t))
	}
	binary, err := formBool(c, "binary", opts.Binary)
	if err != nil {
		return opts, err
	}
	sticker, err := formBool(c, "sticker", opts.StickerOutline)
	if err != nil {
		return opts, err
	}
	return opts.WithBinary(binary).WithStickerOutline(sticker), nil
}

func formBool(c *gin.Context, name string, def bool) (bool, error) {
	v, ok := c.GetPostForm(name)
	if !ok {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%w: %s: %q", rembg.ErrInvalidInput, name, v)
	}
	return b, nil
}

func readUpload(c *gin.Context) ([]byte, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", rembg.ErrInvalidInput, err)
	}
	f, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", rembg.ErrInvalidInput, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", rembg.ErrInvalidInput, err)
	}
	return data, nil
}

func (h *Handler) decodeUpload(data []byte) (image.Image, error) {
	img, err := util.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", rembg.ErrInvalidInput, err)
	}
	return util.FitWithin(img, h.maxSize), nil
}
