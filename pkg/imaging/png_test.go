package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "rolesync/pkg/errors"
)

// 1x1 lossless WebP
const tinyWebP = "UklGRhoAAABXRUJQVlA4TA0AAAAvAAAAEAcQERGIiP4HAA=="

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestToPNGDropsAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 128})
	src.SetNRGBA(1, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 0})

	var in bytes.Buffer
	require.NoError(t, png.Encode(&in, src))

	out, format, err := ToPNG(in.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "png", format)

	img := decodePNG(t, out)
	_, isRGBA := img.(*image.RGBA)
	assert.True(t, isRGBA, "opaque PNGs decode as RGB, got %T", img)

	r, g, b, a := img.At(0, 0).RGBA()
	assert.Equal(t, []uint32{200, 100, 50, 255}, []uint32{r >> 8, g >> 8, b >> 8, a >> 8})
	r, g, b, a = img.At(1, 0).RGBA()
	assert.Equal(t, []uint32{10, 20, 30, 255}, []uint32{r >> 8, g >> 8, b >> 8, a >> 8})
}

func TestToPNGFromJPEG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for i := range src.Pix {
		src.Pix[i] = 0x80
	}
	var in bytes.Buffer
	require.NoError(t, jpeg.Encode(&in, src, nil))

	out, format, err := ToPNG(in.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, image.Rect(0, 0, 8, 4), decodePNG(t, out).Bounds())
}

func TestToPNGFromWebP(t *testing.T) {
	data, err := base64.StdEncoding.DecodeString(tinyWebP)
	require.NoError(t, err)

	out, format, err := ToPNG(data)
	require.NoError(t, err)
	assert.Equal(t, "webp", format)

	img := decodePNG(t, out)
	assert.Equal(t, image.Rect(0, 0, 1, 1), img.Bounds())
	_, _, _, a := img.At(0, 0).RGBA()
	assert.EqualValues(t, 0xffff, a)
}

func TestToPNGRejectsGarbage(t *testing.T) {
	_, _, err := ToPNG([]byte("<html>not an image</html>"))
	assert.True(t, errs.Is(err, errs.ErrorTypeParsing))
}

func TestOpaqueNormalizesOrigin(t *testing.T) {
	src := image.NewNRGBA(image.Rect(5, 5, 7, 6))
	dst := Opaque(src)
	assert.Equal(t, image.Rect(0, 0, 2, 1), dst.Bounds())
}
