// Package images holds the small amount of raster work the converter needs:
// decoding downloaded pictures, re-encoding covers and rasterizing the
// generated cover background.
package images

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
)

// Decode sniffs and decodes an image returning it with the format name.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("unable to decode image: %w", err)
	}
	return img, format, nil
}

// Size reads image dimensions without decoding pixel data.
func Size(data []byte) (w, h int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("unable to read image dimensions: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("unable to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// ToJPEG re-encodes arbitrary image data as JPEG. Transparency is flattened
// onto white.
func ToJPEG(data []byte, quality int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unable to decode image: %w", err)
	}
	flat := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), color.White)
	flat = imaging.Overlay(flat, img, image.Point{}, 1.0)
	return EncodeJPEG(flat, quality)
}

// FitDown scales an image down to fit into maxW x maxH keeping aspect ratio.
// Images already inside the box are returned as is.
func FitDown(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxW && b.Dy() <= maxH {
		return img
	}
	return imaging.Fit(img, maxW, maxH, imaging.Lanczos)
}
