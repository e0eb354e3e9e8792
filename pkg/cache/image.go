package cache

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"time"

	// Registered decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrImageDecode is returned when image bytes are empty or in no known format.
var ErrImageDecode = errors.New("image decode failed")

// Image is a fetched and validated image.
type Image struct {
	// Data is the raw encoded image.
	Data []byte

	// URL the image was fetched from.
	URL string

	// Format is the decoder name (e.g. "png", "jpeg", "webp").
	Format string

	Width  int
	Height int

	FetchedAt time.Time
}

// DecodeImage validates data as an image and returns it with its metadata.
// Any registered format is accepted regardless of the served content type.
func DecodeImage(url string, data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s: empty body", ErrImageDecode, url)
	}

	decoded, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrImageDecode, url, err)
	}

	bounds := decoded.Bounds()
	return &Image{
		Data:      data,
		URL:       url,
		Format:    format,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		FetchedAt: time.Now(),
	}, nil
}

// Decode returns the decoded pixels.
func (i *Image) Decode() (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(i.Data))
	return img, err
}

// ContentType returns the MIME type for the image format.
func (i *Image) ContentType() string {
	switch i.Format {
	case "":
		return "application/octet-stream"
	default:
		return "image/" + i.Format
	}
}
