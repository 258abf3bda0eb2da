package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
)

// frameOffset is where the still frame is grabbed from the clip.
const frameOffset = "00:00:01.000"

// extractFrame writes the video bytes to a temp file, grabs a single frame
// with ffmpeg and returns it as encoded image bytes. ffmpeg operates on file
// paths, not buffers, so the round-trip through the filesystem is unavoidable.
// Both temp files are removed on every exit path.
func (g *Generator) extractFrame(name string, data []byte) ([]byte, error) {
	tmp := filepath.Join(os.TempDir(), "pxldrop-"+uuid.New().String())
	in := tmp + filepath.Ext(name)
	out := tmp + "-frame.jpg"
	defer os.Remove(in)
	defer os.Remove(out)

	err := os.WriteFile(in, data, 0600)
	if err != nil {
		return nil, &Error{Reason: ReasonFailed, Name: name, MimeType: "video", Err: err}
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, g.ffmpegPath,
		"-ss", frameOffset,
		"-i", in,
		"-frames:v", "1",
		"-y", out,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err = cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, &Error{Reason: ReasonTimeout, Name: name, MimeType: "video", Err: ctx.Err()}
	}
	if err != nil {
		return nil, &Error{
			Reason:   ReasonFailed,
			Name:     name,
			MimeType: "video",
			Err:      fmt.Errorf("ffmpeg: %w: %s", err, lastLine(stderr.Bytes())),
		}
	}

	frame, err := os.ReadFile(out)
	if err != nil {
		return nil, &Error{Reason: ReasonFailed, Name: name, MimeType: "video", Err: err}
	}

	return frame, nil
}

// lastLine trims ffmpeg's noisy stderr down to its final line for logs.
func lastLine(b []byte) string {
	b = bytes.TrimSpace(b)
	i := bytes.LastIndexByte(b, '\n')
	if i >= 0 {
		b = b[i+1:]
	}
	return string(b)
}
