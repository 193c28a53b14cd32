package qr

import (
	"image"

	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"

	"ticketgate/internal/domain/ports/adapter"
)

var _ adapter.CodeDecoder = (*Decoder)(nil)

// Decoder finds a QR code in a raw RGBA frame.
type Decoder struct {
	hints map[gozxing.DecodeHintType]interface{}
}

func NewDecoder() *Decoder {
	return &Decoder{
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

// Decode returns the text of the first code found in pixels, which must hold
// at least width*height RGBA quadruplets. It reports false on any failure.
func (d *Decoder) Decode(pixels []byte, width, height int) (text string, ok bool) {
	if width <= 0 || height <= 0 || len(pixels) < 4*width*height {
		return "", false
	}
	defer func() {
		// the reader is not hardened against every noisy bitmap
		if r := recover(); r != nil {
			text, ok = "", false
		}
	}()

	img := &image.RGBA{
		Pix:    pixels[:4*width*height],
		Stride: 4 * width,
		Rect:   image.Rect(0, 0, width, height),
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", false
	}
	res, err := zxqr.NewQRCodeReader().Decode(bmp, d.hints)
	if err != nil || res == nil {
		return "", false
	}
	if res.GetText() == "" {
		return "", false
	}
	return res.GetText(), true
}
