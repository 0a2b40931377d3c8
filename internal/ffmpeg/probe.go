package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// VideoInfo is what ffprobe reports about the first video stream.
type VideoInfo struct {
	Width     int
	Height    int
	Framerate float64
	Frames    int
}

// Probe extracts width, height, framerate and frame count from a video.
func Probe(ctx context.Context, path string) (VideoInfo, error) {
	args := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-count_frames",
		"-show_entries", "stream=width,height,avg_frame_rate,nb_read_frames",
		"-of", "json",
		path,
	}

	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	output, err := cmd.Output()
	if err != nil {
		return VideoInfo{}, fmt.Errorf("ffprobe error: %w", err)
	}
	return parseProbe(output)
}

func parseProbe(output []byte) (VideoInfo, error) {
	var data struct {
		Streams []struct {
			Width        int    `json:"width"`
			Height       int    `json:"height"`
			AvgFrameRate string `json:"avg_frame_rate"`
			NbReadFrames string `json:"nb_read_frames"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(output, &data); err != nil {
		return VideoInfo{}, fmt.Errorf("error parsing ffprobe output: %w", err)
	}
	if len(data.Streams) == 0 {
		return VideoInfo{}, fmt.Errorf("no video streams found")
	}

	stream := data.Streams[0]
	if stream.Width <= 0 || stream.Height <= 0 {
		return VideoInfo{}, fmt.Errorf("invalid dimensions %dx%d", stream.Width, stream.Height)
	}
	framerate, err := parseFramerate(stream.AvgFrameRate)
	if err != nil {
		return VideoInfo{}, err
	}

	info := VideoInfo{Width: stream.Width, Height: stream.Height, Framerate: framerate}
	if stream.NbReadFrames != "" {
		if n, err := strconv.Atoi(stream.NbReadFrames); err == nil {
			info.Frames = n
		}
	}
	return info, nil
}

// parseFramerate handles "24000/1001" as well as plain numbers.
func parseFramerate(s string) (float64, error) {
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0, fmt.Errorf("invalid framerate format %q", s)
		}
		return n / d, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid framerate: %w", err)
	}
	return f, nil
}
