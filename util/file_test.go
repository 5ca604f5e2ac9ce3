package util

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaos-io/rembg/rembg"
)

func TestMaskPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		output string
		want   string
	}{
		{"out/result.png", filepath.Join("out", "result_mask.png")},
		{"out/result.jpg", filepath.Join("out", "result_mask.jpg")},
		{"result", "result_mask.png"},
		{"/tmp/a.b.png", "/tmp/a.b_mask.png"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskPath(tt.output), tt.output)
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		want    Format
		wantErr bool
	}{
		{"png", PNG, false},
		{"PNG", PNG, false},
		{"jpg", JPEG, false},
		{"jpeg", JPEG, false},
		{"webp", WebP, false},
		{"WebP", WebP, false},
		{"gif", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.name)
		if tt.wantErr {
			assert.ErrorIs(t, err, rembg.ErrUnsupportedFormat, tt.name)
			continue
		}
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}

	_, err := FormatFromPath("out/result.tiff")
	assert.ErrorIs(t, err, rembg.ErrUnsupportedFormat)
	f, err := FormatFromPath("out/result.JPG")
	require.NoError(t, err)
	assert.Equal(t, JPEG, f)
}

func TestFormat_ExtAndContentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format      Format
		ext         string
		contentType string
	}{
		{PNG, ".png", "image/png"},
		{JPEG, ".jpg", "image/jpeg"},
		{WebP, ".webp", "image/webp"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ext, tt.format.Ext(), tt.format.String())
		assert.Equal(t, tt.contentType, tt.format.ContentType(), tt.format.String())
	}
}

func TestFlattenOnWhite(t *testing.T) {
	t.Parallel()

	img := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 0})
	img.SetNRGBA(2, 0, color.NRGBA{R: 0, G: 0, B: 0, A: 128})

	out := FlattenOnWhite(img)
	assert.Equal(t, color.NRGBA{R: 10, G: 20, B: 30, A: 255}, out.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, out.NRGBAAt(1, 0))

	half := out.NRGBAAt(2, 0)
	assert.Equal(t, uint8(255), half.A)
	assert.InDelta(t, 127, int(half.R), 1)
}

func TestEncodeImage(t *testing.T) {
	t.Parallel()

	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))

	var buf bytes.Buffer
	require.NoError(t, EncodeImage(&buf, img, JPEG, 90))
	decoded, err := jpeg.Decode(&buf)
	require.NoError(t, err)
	// 全透明的图铺白底后是白色
	r, g, b, _ := decoded.At(4, 4).RGBA()
	assert.Greater(t, r>>8, uint32(250))
	assert.Greater(t, g>>8, uint32(250))
	assert.Greater(t, b>>8, uint32(250))

	buf.Reset()
	err = EncodeImage(&buf, img, Format(99), 0)
	assert.ErrorIs(t, err, rembg.ErrUnsupportedFormat)
}

func TestSaveAndOpenImage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img.SetNRGBA(1, 1, color.NRGBA{R: 200, G: 100, B: 50, A: 77})

	p := filepath.Join(dir, "out.png")
	require.NoError(t, SaveImage(img, p, 0))

	got, err := OpenImage(p)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), got.Bounds())
	assert.Equal(t, color.NRGBA{R: 200, G: 100, B: 50, A: 77}, color.NRGBAModel.Convert(got.At(1, 1)))

	err = SaveImage(img, filepath.Join(dir, "out.bmp"), 0)
	assert.ErrorIs(t, err, rembg.ErrUnsupportedFormat)
	_, statErr := os.Stat(filepath.Join(dir, "out.bmp"))
	assert.True(t, os.IsNotExist(statErr))

	_, err = OpenImage(filepath.Join(dir, "missing.png"))
	assert.ErrorIs(t, err, rembg.ErrInvalidInput)
}

func TestEncodeImage_WebPKeepsAlpha(t *testing.T) {
	t.Parallel()

	img := image.NewNRGBA(image.Rect(0, 0, 6, 5))
	img.SetNRGBA(1, 1, color.NRGBA{R: 200, G: 100, B: 50, A: 77})
	img.SetNRGBA(4, 3, color.NRGBA{R: 1, G: 2, B: 3, A: 255})

	var buf bytes.Buffer
	require.NoError(t, EncodeImage(&buf, img, WebP, 0))

	decoded, err := DecodeImage(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 6, 5), decoded.Bounds())
	// 无损编码，透明度和颜色都原样保留
	assert.Equal(t, color.NRGBA{R: 200, G: 100, B: 50, A: 77}, color.NRGBAModel.Convert(decoded.At(1, 1)))
	assert.Equal(t, color.NRGBA{R: 1, G: 2, B: 3, A: 255}, color.NRGBAModel.Convert(decoded.At(4, 3)))
	assert.Equal(t, uint8(0), color.NRGBAModel.Convert(decoded.At(0, 0)).(color.NRGBA).A)
}

func TestSaveImage_WebP(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := filepath.Join(dir, "out.webp")
	require.NoError(t, SaveImage(MaskToRGBA(image.NewGray(image.Rect(0, 0, 3, 3))), p, 0))

	got, err := OpenImage(p)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 3), got.Bounds())
}

func TestDownloadImage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 5, 4)), imaging.PNG))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/img.png" {
			_, _ = w.Write(buf.Bytes())
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	img, err := DownloadImage(srv.URL + "/img.png")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 5, 4), img.Bounds())

	_, err = DownloadImage(srv.URL + "/missing.png")
	assert.Error(t, err)
}

func TestMaskToRGBA(t *testing.T) {
	t.Parallel()

	mask := image.NewGray(image.Rect(2, 3, 4, 4))
	mask.SetGray(2, 3, color.Gray{Y: 0})
	mask.SetGray(3, 3, color.Gray{Y: 200})

	out := MaskToRGBA(mask)
	assert.Equal(t, image.Rect(0, 0, 2, 1), out.Bounds())
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 0}, out.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 200}, out.NRGBAAt(1, 0))
}
