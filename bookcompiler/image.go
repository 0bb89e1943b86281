package bookcompiler

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"net/http"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/image/webp"
)

func (bc *BookCompiler) registerImage(data []byte) (string, *gofpdf.ImageInfoType, error) {
	if len(data) == 0 {
		return "", nil, errors.New("page has no image")
	}
	imageType, data, err := normalizeImage(data)
	if err != nil {
		return "", nil, err
	}

	bc.imageCount++
	name := fmt.Sprintf("page-image-%d", bc.imageCount)
	info := bc.pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: imageType}, bytes.NewReader(data))
	if err := bc.pdf.Error(); err != nil {
		return "", nil, fmt.Errorf("error registering image: %w", err)
	}
	if info == nil {
		return "", nil, errors.New("error registering image")
	}
	return name, info, nil
}

// normalizeImage returns the gofpdf image type for data. WebP, which gofpdf
// cannot embed, is re-encoded as PNG.
func normalizeImage(data []byte) (string, []byte, error) {
	switch ct := http.DetectContentType(data); ct {
	case "image/png":
		return "PNG", data, nil
	case "image/jpeg":
		return "JPG", data, nil
	case "image/gif":
		return "GIF", data, nil
	case "image/webp":
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return "", nil, fmt.Errorf("error decoding webp: %w", err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return "", nil, fmt.Errorf("error converting webp: %w", err)
		}
		return "PNG", buf.Bytes(), nil
	default:
		return "", nil, fmt.Errorf("unsupported image type %s", ct)
	}
}

// Extension returns the file extension matching the encoded image in data.
func Extension(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".img"
	}
}
