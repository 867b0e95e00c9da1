// Package capture validates and normalizes camera frames before they are
// sent for face analysis.
package capture

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	"github.com/kozaktomas/face-kiosk/internal/constants"
)

// ErrInvalidFrame indicates a frame that is not usable image data.
var ErrInvalidFrame = errors.New("invalid capture frame")

// ValidateFrames checks a capture burst: at least one frame, no more than
// the per-capture limit, and every frame base64 data of a recognized image
// format. Returns the decoded bytes of each frame in order.
func ValidateFrames(frames []string) ([][]byte, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no frames", ErrInvalidFrame)
	}
	if len(frames) > constants.MaxFramesPerCapture {
		return nil, fmt.Errorf("%w: %d frames exceeds limit of %d",
			ErrInvalidFrame, len(frames), constants.MaxFramesPerCapture)
	}

	decoded := make([][]byte, 0, len(frames))
	for i, frame := range frames {
		data, err := base64.StdEncoding.DecodeString(frame)
		if err != nil {
			return nil, fmt.Errorf("%w: frame %d is not valid base64", ErrInvalidFrame, i)
		}
		// Only formats the downscaler can decode are accepted.
		switch detectMIMEType(data) {
		case "image/jpeg", "image/png":
		default:
			return nil, fmt.Errorf("%w: frame %d has unsupported format", ErrInvalidFrame, i)
		}
		decoded = append(decoded, data)
	}
	return decoded, nil
}

// Normalize downscales a frame to fit within the analysis size limit while
// keeping aspect ratio, re-encoding as base64 JPEG. Frames already inside
// the limit pass through with their original bytes.
func Normalize(data []byte) (string, error) {
	resized, err := downscale(data, constants.MaxFrameSize)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(resized), nil
}

func downscale(data []byte, maxSize int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= maxSize && height <= maxSize {
		return data, nil
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = int(float64(height) * float64(maxSize) / float64(width))
	} else {
		newHeight = maxSize
		newWidth = int(float64(width) * float64(maxSize) / float64(height))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.BiLinear.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("encode resized frame: %w", err)
	}
	return buf.Bytes(), nil
}

// detectMIMEType detects the image format from magic bytes.
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// GIF: 47 49 46 38
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38 {
		return "image/gif"
	}
	// WebP: 52 49 46 46 ... 57 45 42 50
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	return "application/octet-stream"
}
