package opencv

import (
	"fmt"
	"image"

	"parkscan/internal/decoder"

	"gocv.io/x/gocv"
)

// QRDetector decodes QR codes with OpenCV's detector.
type QRDetector struct {
	detector gocv.QRCodeDetector
}

func NewQRDetector() *QRDetector {
	return &QRDetector{detector: gocv.NewQRCodeDetector()}
}

// Decode implements decoder.Decoder.
func (q *QRDetector) Decode(img image.Image) (string, error) {
	if img.Bounds().Empty() {
		return "", decoder.ErrNotFound
	}

	mat, err := gocv.ImageToMatRGBA(img)
	if err != nil {
		return "", fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(mat, &gray, gocv.ColorRGBAToGray); err != nil {
		return "", fmt.Errorf("failed to convert image to grayscale: %w", err)
	}

	points := gocv.NewMat()
	defer points.Close()
	straight := gocv.NewMat()
	defer straight.Close()

	text := q.detector.DetectAndDecode(gray, &points, &straight)
	if text == "" {
		return "", decoder.ErrNotFound
	}
	return text, nil
}

func (q *QRDetector) Close() error {
	return q.detector.Close()
}
