// Package media converts between image files, data URLs and raw payloads.
package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMIMEType is assumed when a reference carries no media type.
const DefaultMIMEType = "image/jpeg"

// ErrInvalidDataURL is returned for references that are not base64 data URLs.
var ErrInvalidDataURL = errors.New("invalid data url")

// Image is a decoded inline image.
type Image struct {
	MIMEType string
	Data     []byte
}

// DecodeDataURL strips the data-URL prefix from ref and decodes the base64
// payload. A bare base64 string is accepted and typed as DefaultMIMEType.
func DecodeDataURL(ref string) (Image, error) {
	mimeType := DefaultMIMEType
	payload := ref
	if strings.HasPrefix(ref, "data:") {
		header, rest, ok := strings.Cut(ref, ",")
		if !ok {
			return Image{}, fmt.Errorf("%w: missing payload", ErrInvalidDataURL)
		}
		meta := strings.TrimPrefix(header, "data:")
		if !strings.HasSuffix(meta, ";base64") {
			return Image{}, fmt.Errorf("%w: not base64 encoded", ErrInvalidDataURL)
		}
		if mt := strings.TrimSuffix(meta, ";base64"); mt != "" {
			mimeType = mt
		}
		payload = rest
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	if len(data) == 0 {
		return Image{}, fmt.Errorf("%w: empty payload", ErrInvalidDataURL)
	}
	return Image{MIMEType: mimeType, Data: data}, nil
}

// EncodeDataURL builds a self-contained data URL.
func EncodeDataURL(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// IsDataURL reports whether ref is an inline data URL.
func IsDataURL(ref string) bool {
	return strings.HasPrefix(ref, "data:")
}

// FileToDataURL reads an image from disk into a data URL.
func FileToDataURL(path string) (string, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return "", fmt.Errorf("%s is not an image (%s)", path, mimeType)
	}
	return EncodeDataURL(mimeType, data), nil
}
