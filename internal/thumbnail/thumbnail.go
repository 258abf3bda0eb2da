// Package thumbnail derives bounded-size preview images from uploaded media.
// Images are resized to fit a 250x250 box; videos go through a single-frame
// ffmpeg extraction first. Output is always JPEG so thumbnail retrieval can
// use a uniform Content-Type.
package thumbnail

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

const (
	// MaxWidth and MaxHeight bound the thumbnail size. Smaller inputs are
	// never upscaled.
	MaxWidth  = 250
	MaxHeight = 250

	// DefaultQuality is the JPEG quality used when the caller passes <= 0.
	DefaultQuality = 80
)

// Reason classifies why derivation failed.
type Reason string

const (
	ReasonUnsupported Reason = "unsupported media type"
	ReasonFailed      Reason = "processing failed"
	ReasonTimeout     Reason = "timed out"
)

// Error is the typed failure of the derivation engine. It carries the original
// file name and media type for diagnostics at the queue/task call sites.
type Error struct {
	Reason   Reason
	Name     string
	MimeType string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("thumbnail %s: %s (%s)", e.Reason, e.Name, e.MimeType)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Generator produces thumbnails. Video frame extraction shells out to ffmpeg
// and is bounded by the configured timeout.
type Generator struct {
	ffmpegPath string
	timeout    time.Duration
}

func NewGenerator(ffmpegPath string, timeout time.Duration) *Generator {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Generator{ffmpegPath: ffmpegPath, timeout: timeout}
}

// Generate derives a thumbnail from the raw bytes of a file. Only image/* and
// video/* media types are supported; anything else fails fast with
// ReasonUnsupported. quality <= 0 selects DefaultQuality.
func (g *Generator) Generate(name string, data []byte, mimeType string, quality int) ([]byte, error) {
	if quality <= 0 {
		quality = DefaultQuality
	}

	var input []byte
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		input = data
	case strings.HasPrefix(mimeType, "video/"):
		frame, err := g.extractFrame(name, data)
		if err != nil {
			return nil, err
		}
		input = frame
	default:
		return nil, &Error{Reason: ReasonUnsupported, Name: name, MimeType: mimeType}
	}

	img, err := imaging.Decode(bytes.NewReader(input))
	if err != nil {
		return nil, &Error{Reason: ReasonFailed, Name: name, MimeType: mimeType, Err: err}
	}

	// Fit scales down to the bounding box preserving aspect ratio and never
	// upscales past original dimensions.
	thumb := imaging.Fit(img, MaxWidth, MaxHeight, imaging.Lanczos)

	var buf bytes.Buffer
	err = imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(quality))
	if err != nil {
		return nil, &Error{Reason: ReasonFailed, Name: name, MimeType: mimeType, Err: err}
	}

	return buf.Bytes(), nil
}
