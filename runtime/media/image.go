// Package media turns captured frames into the JPEG chunks streamed to the
// live session.
package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// Default frame limits.
const (
	DefaultMaxWidth  = 1920
	DefaultMaxHeight = 1080
	DefaultQuality   = 85
	MinQuality       = 10
	QualityDecay     = 0.9
)

// FrameConfig bounds the size and quality of encoded frames.
type FrameConfig struct {
	// MaxWidth and MaxHeight are the bounding box frames are scaled to fit
	// (0 = no limit). Frames are only ever scaled down.
	MaxWidth  int
	MaxHeight int

	// Quality is the JPEG quality (1-100).
	Quality int

	// MaxSizeBytes caps the encoded size (0 = no limit). Quality is reduced
	// iteratively while the frame is larger.
	MaxSizeBytes int
}

// DefaultFrameConfig returns the limits used for camera and screen frames.
func DefaultFrameConfig() FrameConfig {
	return FrameConfig{
		MaxWidth:  DefaultMaxWidth,
		MaxHeight: DefaultMaxHeight,
		Quality:   DefaultQuality,
	}
}

// EncodeFrame scales img to fit the configured box and encodes it as JPEG.
func EncodeFrame(img image.Image, cfg FrameConfig) ([]byte, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	scaled := Thumbnail(img, cfg.MaxWidth, cfg.MaxHeight)

	quality := cfg.Quality
	if quality <= 0 {
		quality = DefaultQuality
	}

	encoded, err := EncodeJPEG(scaled, quality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	if cfg.MaxSizeBytes > 0 && len(encoded) > cfg.MaxSizeBytes {
		encoded, err = reduceToFitSize(scaled, quality, cfg.MaxSizeBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to reduce frame size: %w", err)
		}
	}
	return encoded, nil
}

// Thumbnail scales img down, preserving aspect ratio, so that it fits within
// maxWidth x maxHeight. Images already inside the box are returned unchanged.
func Thumbnail(img image.Image, maxWidth, maxHeight int) image.Image {
	b := img.Bounds()
	w, h := FitDimensions(b.Dx(), b.Dy(), maxWidth, maxHeight)
	if w == b.Dx() && h == b.Dy() {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	// CatmullRom gives high-quality downscaling (similar to Lanczos)
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// FitDimensions returns the largest size with the original aspect ratio that
// fits within the box without upscaling.
func FitDimensions(width, height, maxWidth, maxHeight int) (targetWidth, targetHeight int) {
	targetWidth, targetHeight = width, height

	if maxWidth > 0 && targetWidth > maxWidth {
		ratio := float64(maxWidth) / float64(targetWidth)
		targetWidth = maxWidth
		targetHeight = int(float64(targetHeight) * ratio)
	}
	if maxHeight > 0 && targetHeight > maxHeight {
		ratio := float64(maxHeight) / float64(targetHeight)
		targetHeight = maxHeight
		targetWidth = int(float64(targetWidth) * ratio)
	}

	if targetWidth < 1 {
		targetWidth = 1
	}
	if targetHeight < 1 {
		targetHeight = 1
	}
	return targetWidth, targetHeight
}

// EncodeJPEG encodes img at the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodePNG encodes img losslessly. Used for screenshots written to disk.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FromRGB wraps a packed 24-bit RGB buffer as an image. stride is the number
// of bytes per row; 0 means width*3.
func FromRGB(pix []byte, width, height, stride int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	if stride == 0 {
		stride = width * 3
	}
	if stride < width*3 || len(pix) < stride*(height-1)+width*3 {
		return nil, fmt.Errorf("rgb buffer too small for %dx%d (stride %d): %d bytes", width, height, stride, len(pix))
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		src := pix[y*stride : y*stride+width*3]
		dst := img.Pix[y*img.Stride : y*img.Stride+width*4]
		for x := 0; x < width; x++ {
			dst[x*4] = src[x*3]
			dst[x*4+1] = src[x*3+1]
			dst[x*4+2] = src[x*3+2]
			dst[x*4+3] = 0xff
		}
	}
	return img, nil
}

// reduceToFitSize iteratively reduces quality to fit within size limit.
func reduceToFitSize(img image.Image, startQuality, maxSize int) ([]byte, error) {
	quality := startQuality
	var encoded []byte

	for quality >= MinQuality {
		var err error
		encoded, err = EncodeJPEG(img, quality)
		if err != nil {
			return nil, err
		}
		if len(encoded) <= maxSize {
			return encoded, nil
		}
		quality = int(float64(quality) * QualityDecay)
	}

	// Return the smallest attempt even if it is still over the limit.
	return encoded, nil
}
