package loader

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/catalog-cache/pkg/cache"
	"github.com/Sternrassler/catalog-cache/pkg/client"
	"github.com/Sternrassler/catalog-cache/pkg/logging"
	"github.com/rs/zerolog"
)

// ErrImageURLEmpty is returned when an item has no URL for the requested image.
var ErrImageURLEmpty = errors.New("image url is empty")

// ImageLoader fetches and decodes single images.
type ImageLoader struct {
	client *client.Client
	logger zerolog.Logger
}

// NewImageLoader creates an image loader on top of the upstream client.
func NewImageLoader(c *client.Client, logger zerolog.Logger) *ImageLoader {
	return &ImageLoader{
		client: c,
		logger: logging.WithComponent(logger, logging.ComponentImageLoader),
	}
}

// Load downloads url and validates it as an image. The decode runs on the
// pool worker that performed the download.
func (l *ImageLoader) Load(ctx context.Context, url string) (*cache.Image, error) {
	if url == "" {
		imageLoadsTotal.WithLabelValues("empty_url").Inc()
		return nil, ErrImageURLEmpty
	}

	var img *cache.Image
	err := l.client.Fetch(ctx, client.KindImage, url, func(body []byte) error {
		decoded, err := cache.DecodeImage(url, body)
		if err != nil {
			return err
		}
		img = decoded
		return nil
	})
	if err != nil {
		imageLoadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load image %s: %w", url, err)
	}

	imageLoadsTotal.WithLabelValues("success").Inc()
	l.logger.Debug().
		Str("url", url).
		Str("format", img.Format).
		Int("bytes", len(img.Data)).
		Msg("Image loaded")

	return img, nil
}
