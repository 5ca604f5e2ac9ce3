package util

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/chaos-io/rembg/rembg"
)

// DefaultQuality JPEG 默认质量
const DefaultQuality = 95

// DownloadImage 下载图片
func DownloadImage(url string) (image.Image, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}

	imgData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return DecodeImage(imgData)
}

// OpenImage 打开本地图片，按 EXIF 自动旋转
func OpenImage(path string) (image.Image, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: input file does not exist: %s", rembg.ErrInvalidInput, path)
		}
		return nil, err
	}
	return imaging.Open(path, imaging.AutoOrientation(true))
}

// DecodeImage 支持 png / jpeg / gif / bmp / tiff / webp
func DecodeImage(data []byte) (image.Image, error) {
	return imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
}

// Format 支持的输出格式
type Format int

const (
	PNG Format = iota
	JPEG
	WebP
)

func (f Format) String() string {
	switch f {
	case PNG:
		return "PNG"
	case JPEG:
		return "JPEG"
	case WebP:
		return "WEBP"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Ext 保存文件时使用的扩展名
func (f Format) Ext() string {
	switch f {
	case JPEG:
		return ".jpg"
	case WebP:
		return ".webp"
	}
	return ".png"
}

func (f Format) ContentType() string {
	switch f {
	case JPEG:
		return "image/jpeg"
	case WebP:
		return "image/webp"
	}
	return "image/png"
}

// FormatFromPath 按扩展名确定输出格式，支持 png / jpg / jpeg / webp
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return ParseFormat(ext)
}

func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	case "webp":
		return WebP, nil
	case "":
		return 0, fmt.Errorf("%w: unknown", rembg.ErrUnsupportedFormat)
	}
	return 0, fmt.Errorf("%w: %s", rembg.ErrUnsupportedFormat, name)
}

// EncodeImage png 和 webp（无损）保留透明度；jpeg 没有透明度，先铺白底再编码
func EncodeImage(w io.Writer, img image.Image, format Format, quality int) error {
	switch format {
	case PNG:
		return imaging.Encode(w, img, imaging.PNG)
	case JPEG:
		return imaging.Encode(w, FlattenOnWhite(img), imaging.JPEG, imaging.JPEGQuality(clampQuality(quality)))
	case WebP:
		return nativewebp.Encode(w, img, nil)
	}
	return fmt.Errorf("%w: %s", rembg.ErrUnsupportedFormat, format)
}

// SaveImage 按扩展名选择编码器保存
func SaveImage(img image.Image, path string, quality int) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := EncodeImage(f, img, format, quality); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// FlattenOnWhite 按 alpha 混合到白色背景
func FlattenOnWhite(img image.Image) *image.NRGBA {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

// MaskToRGBA mask 值作为 alpha，颜色全白
// mask 白色处完全不透明，黑色处完全透明
func MaskToRGBA(mask *image.Gray) *image.NRGBA {
	b := mask.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: mask.GrayAt(b.Min.X+x, b.Min.Y+y).Y})
		}
	}
	return out
}

// MaskPath out/result.png -> out/result_mask.png
func MaskPath(output string) string {
	ext := filepath.Ext(output)
	stem := strings.TrimSuffix(filepath.Base(output), ext)
	if stem == "" {
		stem = "output"
	}
	if ext == "" {
		ext = ".png"
	}
	return filepath.Join(filepath.Dir(output), stem+"_mask"+ext)
}

func clampQuality(q int) int {
	switch {
	case q <= 0:
		return DefaultQuality
	case q > 100:
		return 100
	}
	return q
}
