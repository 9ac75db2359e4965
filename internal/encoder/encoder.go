// Package encoder runs the external transcoder that produces lossy outputs.
//
// The transcoder is treated as a black box: it reads one source, writes one
// audio-only destination at the requested bitrate, overwrites whatever was
// there, and reports failure through its exit status and diagnostic output.
package encoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Encoder produces dst from src at the given bitrate.
type Encoder interface {
	Encode(ctx context.Context, src, dst string, bitrateKbps int) error
}

// Error describes a failed transcode and carries the captured diagnostics.
type Error struct {
	Source   string
	ExitCode int
	Output   string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("transcode %s", e.Source)
	if e.ExitCode >= 0 {
		msg += fmt.Sprintf(": exit status %d", e.ExitCode)
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// FFmpeg invokes an ffmpeg binary. The zero value uses "ffmpeg" from PATH.
type FFmpeg struct {
	Binary string
}

// NewFFmpeg returns an FFmpeg encoder for binary, defaulting to "ffmpeg".
func NewFFmpeg(binary string) *FFmpeg {
	return &FFmpeg{Binary: strings.TrimSpace(binary)}
}

func (f *FFmpeg) binary() string {
	if f == nil || f.Binary == "" {
		return "ffmpeg"
	}
	return f.Binary
}

// Args returns the ffmpeg argument list for one transcode. The encoder is
// kept single-threaded so parallelism comes from the worker pool.
func Args(src, dst string, bitrateKbps int) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-threads", "1",
		"-v", "error",
		"-i", src,
		"-b:a", strconv.Itoa(bitrateKbps) + "k",
		"-vn",
		"-y",
		dst,
	}
}

// Encode runs ffmpeg. A partial destination left by a failed run is removed.
func (f *FFmpeg) Encode(ctx context.Context, src, dst string, bitrateKbps int) error {
	if strings.TrimSpace(src) == "" || strings.TrimSpace(dst) == "" {
		return errors.New("transcode: empty source or destination")
	}
	if bitrateKbps <= 0 {
		return fmt.Errorf("transcode %s: invalid bitrate %d", src, bitrateKbps)
	}

	cmd := exec.CommandContext(ctx, f.binary(), Args(src, dst, bitrateKbps)...)
	output, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}

	_ = os.Remove(dst)

	encErr := &Error{
		Source:   src,
		ExitCode: -1,
		Output:   strings.TrimSpace(string(output)),
		Err:      err,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		encErr.ExitCode = exitErr.ExitCode()
	}
	return encErr
}
