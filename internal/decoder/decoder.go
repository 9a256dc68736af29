package decoder

import (
	"errors"
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// ErrNotFound signals that the image holds no readable code. It is the
// normal outcome while nothing is in front of the camera.
var ErrNotFound = errors.New("decoder: no code found")

// Decoder extracts an encoded payload from a raster image.
type Decoder interface {
	Decode(img image.Image) (string, error)
}

// ZXing decodes QR codes with gozxing. It is not safe for concurrent use.
type ZXing struct {
	reader gozxing.Reader
	hints  map[gozxing.DecodeHintType]interface{}
}

// NewZXing creates a QR decoder. tryHarder trades speed for accuracy.
func NewZXing(tryHarder bool) *ZXing {
	z := &ZXing{reader: qrcode.NewQRCodeReader()}
	if tryHarder {
		z.hints = map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		}
	}
	return z
}

func (z *ZXing) Decode(img image.Image) (string, error) {
	if img == nil || img.Bounds().Empty() {
		return "", ErrNotFound
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("failed to binarize image: %w", err)
	}

	result, err := z.reader.Decode(bmp, z.hints)
	if err != nil {
		// gozxing reports missing, damaged and unreadable codes alike.
		return "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return result.GetText(), nil
}
