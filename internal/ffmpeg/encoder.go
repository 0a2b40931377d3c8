package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strconv"
	"strings"
)

// EncodeOptions describes how iteration frames are turned into a video.
type EncodeOptions struct {
	Output string
	FPS    int
	Codec  string
	PixFmt string
}

func (o EncodeOptions) withDefaults() EncodeOptions {
	if o.FPS <= 0 {
		o.FPS = 2
	}
	if o.Codec == "" {
		o.Codec = "libx264"
	}
	if o.PixFmt == "" {
		o.PixFmt = "yuv420p"
	}
	return o
}

// EncodeArgs builds the ffmpeg arguments for reading PNG frames from stdin.
func EncodeArgs(opts EncodeOptions) []string {
	opts = opts.withDefaults()
	return []string{
		"-y",
		"-loglevel", "error",
		"-f", "image2pipe",
		"-framerate", strconv.Itoa(opts.FPS),
		"-c:v", "png",
		"-i", "pipe:0",
		"-an",
		// libx264 needs even dimensions
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
		"-c:v", opts.Codec,
		"-pix_fmt", opts.PixFmt,
		"-movflags", "+faststart",
		opts.Output,
	}
}

// Encoder is a running ffmpeg process fed PNG frames through stdin.
type Encoder struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *bytes.Buffer
	frames int
}

// StartEncoder starts ffmpeg with safe lifecycle and context.
func StartEncoder(ctx context.Context, opts EncodeOptions) (*Encoder, error) {
	if opts.Output == "" {
		return nil, fmt.Errorf("ffmpeg: output path is required")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found in $PATH: %w", err)
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", EncodeArgs(opts)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	log.Printf("FFmpeg command: %s", strings.Join(cmd.Args, " "))

	return &Encoder{cmd: cmd, stdin: stdin, stderr: stderr}, nil
}

// WriteFrame sends one encoded PNG image to ffmpeg.
func (e *Encoder) WriteFrame(png []byte) error {
	if _, err := e.stdin.Write(png); err != nil {
		return fmt.Errorf("error writing frame %d: %w - stderr: %s", e.frames, err, e.stderr.String())
	}
	e.frames++
	return nil
}

// Frames returns how many frames were written.
func (e *Encoder) Frames() int {
	return e.frames
}

// Close ends the input stream and waits for ffmpeg to finish the file.
func (e *Encoder) Close() error {
	if err := e.stdin.Close(); err != nil {
		return fmt.Errorf("error closing ffmpeg stdin: %w", err)
	}
	if err := e.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg error: %v - stderr: %s", err, strings.TrimSpace(e.stderr.String()))
	}
	return nil
}
