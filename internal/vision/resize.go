package vision

import (
	"bytes"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// maxInferenceWidth bounds the pixel width of frames sent to the model.
// Traffic cameras commonly emit 1280-1920px frames; base64-encoding those
// inflates request payloads well past what classification needs.
const maxInferenceWidth = 768

// downscaleJPEG re-encodes a frame at a bounded width before inference.
// Any decode or encode problem returns the original bytes untouched; the
// model can still work with the full-size frame.
func downscaleJPEG(data []byte, maxWidth int) []byte {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data
	}

	bounds := src.Bounds()
	if bounds.Dx() <= maxWidth {
		return data
	}

	h := bounds.Dy() * maxWidth / bounds.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 80}); err != nil {
		return data
	}
	return buf.Bytes()
}
