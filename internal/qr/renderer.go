// Package qr renders session links as PNG QR codes.
package qr

import (
	"errors"
	"fmt"

	"github.com/skip2/go-qrcode"
)

// DefaultSize is the default edge length of rendered images in pixels.
const DefaultSize = 256

// Renderer encodes content with a fixed recovery level and size.
type Renderer struct {
	level qrcode.RecoveryLevel
	size  int
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithSize sets the image edge length in pixels.
func WithSize(size int) Option {
	return func(r *Renderer) {
		if size > 0 {
			r.size = size
		}
	}
}

// WithRecoveryLevel sets the error correction level.
func WithRecoveryLevel(level qrcode.RecoveryLevel) Option {
	return func(r *Renderer) {
		r.level = level
	}
}

// NewRenderer returns a renderer using medium error correction at DefaultSize.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{level: qrcode.Medium, size: DefaultSize}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render returns content encoded as a PNG image.
func (r *Renderer) Render(content string) ([]byte, error) {
	if content == "" {
		return nil, errors.New("qr: empty content")
	}
	png, err := qrcode.Encode(content, r.level, r.size)
	if err != nil {
		return nil, fmt.Errorf("qr: encode: %w", err)
	}
	return png, nil
}
