package cache

import (
	"fmt"
	"strconv"
	"strings"
)

// ImageKind distinguishes the image variants kept per item.
type ImageKind string

const (
	// KindThumbnail is preloaded with every page.
	KindThumbnail ImageKind = "thumbnail"

	// KindMedium is loaded on demand.
	KindMedium ImageKind = "medium"
)

// suffix returns the short form used in ImageKey.String.
func (k ImageKind) suffix() string {
	switch k {
	case KindThumbnail:
		return "thumb"
	case KindMedium:
		return "medium"
	default:
		return string(k)
	}
}

// ImageKey identifies an image inside a PageEntry.
type ImageKey struct {
	// Offset is the item offset within the page.
	Offset int

	// Kind is the image variant.
	Kind ImageKind
}

// String renders the key as "<offset>.<kind>".
//
// Example:
//
//	ImageKey{Offset: 7, Kind: KindThumbnail}.String() == "7.thumb"
func (k ImageKey) String() string {
	return fmt.Sprintf("%d.%s", k.Offset, k.Kind.suffix())
}

// ParseImageKey parses the output of ImageKey.String.
func ParseImageKey(s string) (ImageKey, error) {
	offsetStr, suffix, ok := strings.Cut(s, ".")
	if !ok {
		return ImageKey{}, fmt.Errorf("invalid image key %q", s)
	}

	offset, err := strconv.Atoi(offsetStr)
	if err != nil || offset < 0 {
		return ImageKey{}, fmt.Errorf("invalid image key offset %q", offsetStr)
	}

	switch suffix {
	case "thumb":
		return ImageKey{Offset: offset, Kind: KindThumbnail}, nil
	case "medium":
		return ImageKey{Offset: offset, Kind: KindMedium}, nil
	default:
		return ImageKey{}, fmt.Errorf("invalid image key kind %q", suffix)
	}
}
