package avatar

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"net/http"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"socialfeed/internal/models"
)

const (
	// Size is the edge of the square picture sent to the server.
	Size = 256

	DefaultMaxUploadBytes = 2 << 20

	webpQuality = 80
	jpegQuality = 85
)

// Prepare validates an uploaded image, crops it to a centered square,
// scales it to Size and returns it as a data URL. WebP is preferred; JPEG is
// used if the WebP encoder fails.
func Prepare(content []byte, maxBytes int64) (string, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if len(content) == 0 {
		return "", models.NewValidationError("Please select an image file")
	}
	if int64(len(content)) > maxBytes {
		return "", models.NewValidationError(fmt.Sprintf("Image size should be less than %dMB", maxBytes>>20))
	}

	switch http.DetectContentType(content) {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
	default:
		return "", models.NewValidationError("Please select an image file")
	}

	decoded, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return "", models.NewValidationError("Invalid image file")
	}

	square := resize(cropSquare(decoded), Size)

	var buf bytes.Buffer
	if err := webp.Encode(&buf, square, &webp.Options{Quality: webpQuality}); err == nil {
		return dataURL("image/webp", buf.Bytes()), nil
	}
	buf.Reset()
	if err := jpeg.Encode(&buf, square, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", models.NewInternalError(err)
	}
	return dataURL("image/jpeg", buf.Bytes()), nil
}

func cropSquare(src image.Image) image.Image {
	b := src.Bounds()
	side := min(b.Dx(), b.Dy())
	if side <= 0 {
		return src
	}
	origin := image.Point{
		X: b.Min.X + (b.Dx()-side)/2,
		Y: b.Min.Y + (b.Dy()-side)/2,
	}
	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(dst, dst.Bounds(), src, origin, draw.Src)
	return dst
}

func resize(src image.Image, edge int) image.Image {
	b := src.Bounds()
	if b.Dx() == edge && b.Dy() == edge {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, edge, edge))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	return dst
}

func dataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
