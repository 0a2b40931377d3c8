package ffmpeg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeArgs(t *testing.T) {
	args := EncodeArgs(EncodeOptions{Output: "out.mp4", FPS: 5})

	assert.Equal(t, "out.mp4", args[len(args)-1])
	assert.Subset(t, args, []string{"-f", "image2pipe", "pipe:0", "libx264", "yuv420p"})

	idx := indexOf(args, "-framerate")
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, "5", args[idx+1])
	// input options precede the input
	assert.Less(t, idx, indexOf(args, "-i"))
}

func TestEncodeArgs_Defaults(t *testing.T) {
	args := EncodeArgs(EncodeOptions{Output: "x.webm", Codec: "libvpx-vp9"})
	assert.Equal(t, "2", args[indexOf(args, "-framerate")+1])
	assert.Contains(t, args, "libvpx-vp9")
	assert.NotContains(t, args, "libx264")
}

func TestStartEncoder_RequiresOutput(t *testing.T) {
	_, err := StartEncoder(context.Background(), EncodeOptions{})
	assert.ErrorContains(t, err, "output path")
}

func TestParseFramerate(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"25/1", 25, false},
		{"24000/1001", 24000.0 / 1001.0, false},
		{"30", 30, false},
		{"1/0", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseFramerate(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestParseProbe(t *testing.T) {
	info, err := parseProbe([]byte(`{"streams":[{"width":800,"height":600,"avg_frame_rate":"2/1","nb_read_frames":"7"}]}`))
	require.NoError(t, err)
	assert.Equal(t, VideoInfo{Width: 800, Height: 600, Framerate: 2, Frames: 7}, info)

	_, err = parseProbe([]byte(`{"streams":[]}`))
	assert.ErrorContains(t, err, "no video streams")

	_, err = parseProbe([]byte(`not json`))
	assert.Error(t, err)
}

func indexOf(args []string, s string) int {
	for i, a := range args {
		if a == s {
			return i
		}
	}
	return -1
}
