package camera

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"ticketgate/internal/domain"
	"ticketgate/internal/domain/ports/adapter"
)

// DecodeImage turns an encoded JPEG or PNG into an RGBA frame.
func DecodeImage(b []byte) (adapter.Frame, error) {
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return adapter.Frame{}, fmt.Errorf("%w: decode image: %v", domain.ErrInvalidArgument, err)
	}
	return FrameFromImage(img), nil
}

// FrameFromImage copies img into a packed RGBA frame.
func FrameFromImage(img image.Image) adapter.Frame {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return adapter.Frame{
		Pixels:     dst.Pix,
		Width:      b.Dx(),
		Height:     b.Dy(),
		CapturedAt: time.Now(),
	}
}
