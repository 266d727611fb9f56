package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"path"
	"strings"

	"github.com/bbrks/go-blurhash"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// ErrUnsupportedImage indicates bytes that do not decode as a supported image.
var ErrUnsupportedImage = errors.New("upload a valid image")

// ErrImageTooLarge indicates an image whose header declares more pixels than
// allowed. It wraps ErrUnsupportedImage.
var ErrImageTooLarge = fmt.Errorf("%w: too many pixels", ErrUnsupportedImage)

// blurHashSize is the longest thumbnail edge used for BlurHash computation.
const blurHashSize = 64

// ImageInfo describes a decoded upload.
type ImageInfo struct {
	Format      string // gif, jpeg, png or webp
	Ext         string
	ContentType string
	Width       int
	Height      int
	BlurHash    string
}

var imageFormats = map[string]struct{ ext, contentType string }{
	"jpeg": {"jpg", "image/jpeg"},
	"png":  {"png", "image/png"},
	"gif":  {"gif", "image/gif"},
	"webp": {"webp", "image/webp"},
}

// InspectImage decodes data and reports its format, dimensions and a 4x3
// BlurHash. The format comes from the bytes, never from a filename or a
// client-supplied content type. The header is read first and images over
// maxPixels are rejected before any pixel data is decoded; maxPixels <= 0
// disables the check.
func InspectImage(data []byte, maxPixels int64) (*ImageInfo, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrUnsupportedImage)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); maxPixels > 0 && pixels > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d", ErrImageTooLarge, cfg.Width, cfg.Height, maxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	f, ok := imageFormats[format]
	if !ok {
		return nil, fmt.Errorf("%w: format %q", ErrUnsupportedImage, format)
	}

	bounds := img.Bounds()
	info := &ImageInfo{
		Format:      format,
		Ext:         f.ext,
		ContentType: f.contentType,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}

	hash, err := blurhash.Encode(4, 3, resizeForBlurHash(img))
	if err != nil {
		return nil, fmt.Errorf("encode blurhash: %w", err)
	}
	info.BlurHash = hash
	return info, nil
}

// ContentTypeForKey guesses the content type of a stored image from its key.
func ContentTypeForKey(key string) string {
	ext := strings.TrimPrefix(path.Ext(key), ".")
	for _, f := range imageFormats {
		if f.ext == ext {
			return f.contentType
		}
	}
	return "application/octet-stream"
}

// resizeForBlurHash box-scales img so its longest edge is blurHashSize.
func resizeForBlurHash(img image.Image) image.Image {
	bounds := img.Bounds()
	srcWidth := bounds.Dx()
	srcHeight := bounds.Dy()

	if srcWidth <= blurHashSize && srcHeight <= blurHashSize {
		return img
	}

	var dstWidth, dstHeight int
	if srcWidth > srcHeight {
		dstWidth = blurHashSize
		dstHeight = max(srcHeight*blurHashSize/srcWidth, 1)
	} else {
		dstHeight = blurHashSize
		dstWidth = max(srcWidth*blurHashSize/srcHeight, 1)
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstWidth, dstHeight))
	xRatio := float64(srcWidth) / float64(dstWidth)
	yRatio := float64(srcHeight) / float64(dstHeight)

	for y := 0; y < dstHeight; y++ {
		for x := 0; x < dstWidth; x++ {
			srcX := int(float64(x) * xRatio)
			srcY := int(float64(y) * yRatio)
			dst.Set(x, y, img.At(bounds.Min.X+srcX, bounds.Min.Y+srcY))
		}
	}
	return dst
}
