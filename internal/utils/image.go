// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// image.go - Image transcoding for OneNote page attachments.
//
// Browser captures arrive as PNG with a transparent background. OneNote pages
// receive JPEG, so captures are flattened onto white, optionally narrowed to a
// maximum width, and re-encoded.
//
// Usage Example:
//   jpegBytes, err := EncodeJPEG(pngBytes, 80, 0)

package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png" // decoder for browser captures

	"golang.org/x/image/draw"

	"github.com/gebl/onenote-diagram-server/internal/logging"
)

// ErrEmptyImage is returned when there are no bytes to decode.
var ErrEmptyImage = errors.New("image data is empty")

// EncodeJPEG decodes imageData, composites it over a white background and
// encodes it as JPEG at the given quality. A positive maxWidth scales wider
// images down, keeping the aspect ratio.
func EncodeJPEG(imageData []byte, quality, maxWidth int) ([]byte, error) {
	if len(imageData) == 0 {
		return nil, ErrEmptyImage
	}

	src, format, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("decode %d byte image: %w", len(imageData), err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("image has zero size (%dx%d)", width, height)
	}

	newWidth, newHeight := width, height
	if maxWidth > 0 && width > maxWidth {
		newWidth = maxWidth
		newHeight = int(float64(height) * float64(maxWidth) / float64(width))
		if newHeight < 1 {
			newHeight = 1
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if newWidth == width && newHeight == height {
		draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Over)
	} else {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	logging.GetLogger("utils").Debug("Transcoded image to JPEG",
		"source_format", format,
		"original_bytes", len(imageData), "jpeg_bytes", buf.Len(),
		"original_width", width, "original_height", height,
		"new_width", newWidth, "new_height", newHeight,
		"quality", quality)
	return buf.Bytes(), nil
}
