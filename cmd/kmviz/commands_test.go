package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kmviz/internal/driver"
	"kmviz/internal/kmeans"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line    string
		want    command
		wantErr bool
	}{
		{"", command{action: actStep}, false},
		{"   ", command{action: actStep}, false},
		{"n", command{action: actStep}, false},
		{"B", command{action: actBack}, false},
		{"p", command{action: actPause}, false},
		{"resume", command{action: actResume}, false},
		{"s 250", command{action: actSpeed, speed: 250 * time.Millisecond}, false},
		{"s 0", command{action: actSpeed}, false},
		{"i", command{action: actStatus}, false},
		{"?", command{action: actHelp}, false},
		{"q", command{action: actQuit}, false},
		{"s", command{}, true},
		{"s -5", command{}, true},
		{"s fast", command{}, true},
		{"jump", command{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseCommand(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func startDriver(t *testing.T) *driver.Driver {
	t.Helper()
	e := kmeans.NewEngine()
	require.NoError(t, e.Load(
		[]kmeans.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 10, Y: 10}},
		[]kmeans.Centroid{{X: 0, Y: 0}, {X: 10, Y: 10}},
	))
	d := driver.New(e, driver.Config{Speed: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-d.Done()
	})
	return d
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	d := startDriver(t)
	var out bytes.Buffer

	quit, err := execute(ctx, d, command{action: actBack}, &out)
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Contains(t, out.String(), "first iteration")

	_, err = execute(ctx, d, command{action: actStep}, &out)
	require.NoError(t, err)

	out.Reset()
	_, err = execute(ctx, d, command{action: actStatus}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "iteration=2 paused=true")

	out.Reset()
	_, err = execute(ctx, d, command{action: actResume}, &out)
	require.NoError(t, err)
	_, err = execute(ctx, d, command{action: actBack}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "pause first")

	// resume may have spent the limiter's single token on one automatic step
	_, err = execute(ctx, d, command{action: actPause}, &out)
	require.NoError(t, err)
	for range 2 {
		_, err = execute(ctx, d, command{action: actBack}, &out)
		require.NoError(t, err)
	}

	out.Reset()
	_, err = execute(ctx, d, command{action: actSpeed, speed: 50 * time.Millisecond}, &out)
	require.NoError(t, err)
	_, err = execute(ctx, d, command{action: actStatus}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "iteration=1")
	assert.Contains(t, out.String(), "speed=50ms")

	quit, err = execute(ctx, d, command{action: actQuit}, &out)
	require.NoError(t, err)
	assert.True(t, quit)
}
