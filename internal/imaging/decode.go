// Package imaging turns raw bytes, base64 strings, or data URLs into
// validated images ready for encoding extraction.
package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
)

// MinDimension is the smallest usable width/height in pixels. Anything
// smaller is rejected as too small to contain a face.
const MinDimension = 100

// ErrorKind classifies decode failures.
type ErrorKind int

const (
	// InvalidBase64 means the base64 payload could not be decoded.
	InvalidBase64 ErrorKind = iota
	// UnreadableImage means the bytes could not be parsed as an image.
	UnreadableImage
	// TooSmall means the image is below the minimum usable dimensions.
	TooSmall
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidBase64:
		return "invalid base64"
	case UnreadableImage:
		return "unreadable image"
	case TooSmall:
		return "image too small"
	default:
		return "unknown"
	}
}

// DecodeError is returned for any input that cannot be turned into a usable
// image. Callers are expected to treat it as a "no result" outcome, not a
// server failure.
type DecodeError struct {
	Kind  ErrorKind
	cause error
}

func (e *DecodeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("decode image: %s: %v", e.Kind, e.cause)
	}
	return fmt.Sprintf("decode image: %s", e.Kind)
}

func (e *DecodeError) Unwrap() error { return e.cause }

// Image is a validated, fully materialized input image. Raw keeps the
// original encoded byte stream because the encoding extractor derives a
// content hash from it.
type Image struct {
	Pixels image.Image
	Raw    []byte
	Width  int
	Height int
}

// Decode parses raw image bytes. Validation happens in two passes: the
// structure and dimensions are checked via DecodeConfig before any pixel is
// materialized, because a corrupt stream may partially parse and then fail
// on first pixel access.
func Decode(raw []byte) (*Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, &DecodeError{Kind: UnreadableImage, cause: err}
	}
	if cfg.Width < MinDimension || cfg.Height < MinDimension {
		return nil, &DecodeError{Kind: TooSmall}
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, &DecodeError{Kind: UnreadableImage, cause: err}
	}

	return &Image{
		Pixels: img,
		Raw:    raw,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}

// DecodeString parses a base64 string or a data URL of the form
// data:<mime>;base64,<payload>. When the ";base64," marker is absent,
// everything after the first comma is treated as the payload.
func DecodeString(s string) (*Image, error) {
	payload := s
	if strings.HasPrefix(s, "data:") {
		if idx := strings.Index(s, ";base64,"); idx >= 0 {
			payload = s[idx+len(";base64,"):]
		} else if idx := strings.Index(s, ","); idx >= 0 {
			payload = s[idx+1:]
		}
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, &DecodeError{Kind: InvalidBase64, cause: err}
	}
	return Decode(raw)
}
