package media

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

var allowedImageTypes = []string{"image/png", "image/jpeg", "image/webp", "image/gif"}

var allowedImageNames = map[string]string{
	"image/png":  "PNG",
	"image/jpeg": "JPEG",
	"image/webp": "WebP",
	"image/gif":  "GIF",
}

// DetectImageType sniffs the payload and rejects anything that is not a supported image.
func DetectImageType(fileName string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("image %q is empty", fileName)).
			WithDetails(map[string]any{"file_name": fileName})
	}
	detected := mimetype.Detect(data)
	for _, allowed := range allowedImageTypes {
		if detected.Is(allowed) {
			return allowed, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("image %q must be %s", fileName, allowedImageDescription())).
		WithDetails(map[string]any{"file_name": fileName, "detected": detected.String()})
}

func allowedImageDescription() string {
	names := make([]string, 0, len(allowedImageTypes))
	for _, mime := range allowedImageTypes {
		names = append(names, allowedImageNames[mime])
	}
	return humanReadableList(names)
}

func humanReadableList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return fmt.Sprintf("%s or %s", items[0], items[1])
	default:
		return fmt.Sprintf("%s, or %s", strings.Join(items[:len(items)-1], ", "), items[len(items)-1])
	}
}
