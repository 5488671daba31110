package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	errs "rolesync/pkg/errors"
)

// ToPNG decodes data (WebP, PNG, JPEG or GIF), drops any alpha channel and
// re-encodes the pixels as an RGB PNG. It returns the encoded bytes and the
// detected source format.
func ToPNG(data []byte) ([]byte, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", errs.New(errs.ErrorTypeParsing, 0, err, "failed to decode image")
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(&buf, Opaque(img)); err != nil {
		return nil, format, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), format, nil
}

// Opaque returns a copy of img with alpha forced to fully opaque.
// png.Encoder writes such an image without an alpha channel. Non-premultiplied
// sources keep their exact colour values; other sources are composited, so
// fully transparent pixels come out black.
func Opaque(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	if src, ok := img.(*image.NRGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			copy(dst.Pix[y*dst.Stride:(y+1)*dst.Stride], row[:4*b.Dx()])
		}
	} else {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	}

	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}
