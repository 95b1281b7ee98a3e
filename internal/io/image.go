package ioutils

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	_ "image/png" // PNG decoder registration

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // WebP decoder registration
)

// Image MIME types recognized by SniffImage.
const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEWebP = "image/webp"
)

// ErrNotImage is returned when data carries none of the known image signatures.
var ErrNotImage = errors.New("data is not a JPEG, PNG or WebP image")

// SniffImage identifies an image by its magic bytes.
func SniffImage(data []byte) (string, bool) {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return MIMEJPEG, true
	case len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return MIMEPNG, true
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return MIMEWebP, true
	}
	return "", false
}

// ImageService provides image processing operations for cover art.
//
// ImageService is used to:
//   - Resize covers before they are embedded in audio files
//   - Convert PNG and WebP covers to JPEG
//
// Example usage:
//
//	svc := NewImageService()
//	cover, err := svc.Normalize(ctx, raw, 1000)
type ImageService struct {
	quality int
}

// NewImageService creates a new ImageService encoding JPEG at quality 90.
func NewImageService() *ImageService {
	return &ImageService{quality: 90}
}

// ResizeImage resizes an image to fit within the specified maximum dimensions.
//
// The aspect ratio is preserved and images are never enlarged. The result
// is always JPEG-encoded.
//
// The Catmull-Rom algorithm is used for high-quality resizing.
//
// Example:
//
//	// A 1500x1000 image becomes 1000x666
//	resized, err := svc.ResizeImage(ctx, imageData, 1000, 1000)
func (s *ImageService) ResizeImage(ctx context.Context, data []byte, maxWidth, maxHeight int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := decode(data)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	width, height := fit(bounds.Dx(), bounds.Dy(), maxWidth, maxHeight)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	return s.encode(dst)
}

// ConvertToJPEG re-encodes any supported image as JPEG.
func (s *ImageService) ConvertToJPEG(ctx context.Context, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := decode(data)
	if err != nil {
		return nil, err
	}
	return s.encode(img)
}

// Normalize prepares a cover for embedding. JPEG input within maxSize is
// returned untouched; anything else is converted, and scaled down when
// maxSize is positive.
func (s *ImageService) Normalize(ctx context.Context, data []byte, maxSize int) ([]byte, error) {
	mime, ok := SniffImage(data)
	if !ok {
		return nil, ErrNotImage
	}
	if maxSize <= 0 {
		if mime == MIMEJPEG {
			return data, nil
		}
		return s.ConvertToJPEG(ctx, data)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if mime == MIMEJPEG && cfg.Width <= maxSize && cfg.Height <= maxSize {
		return data, nil
	}
	return s.ResizeImage(ctx, data, maxSize, maxSize)
}

func (s *ImageService) encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (image.Image, error) {
	if _, ok := SniffImage(data); !ok {
		return nil, ErrNotImage
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

// fit scales w×h down to fit within maxW×maxH, keeping the aspect ratio.
func fit(w, h, maxW, maxH int) (int, int) {
	if maxW <= 0 || maxH <= 0 || (w <= maxW && h <= maxH) {
		return w, h
	}
	ratio := float64(w) / float64(h)
	if float64(maxW)/float64(maxH) > ratio {
		// Height is the limiting factor
		return max(1, int(float64(maxH)*ratio)), maxH
	}
	return maxW, max(1, int(float64(maxW)/ratio))
}
