package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"kmviz/internal/driver"
)

type action int

const (
	actStep action = iota
	actBack
	actPause
	actResume
	actSpeed
	actStatus
	actHelp
	actQuit
)

type command struct {
	action action
	speed  time.Duration
}

const helpText = `commands:
  <Enter>, n   step forward
  b            step back (while paused)
  p            pause
  r            resume automatic stepping
  s <ms>       set delay between automatic steps
  i            show status
  h            show this help
  q            quit
`

// parseCommand turns one line of terminal input into a command.
func parseCommand(line string) (command, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return command{action: actStep}, nil
	}

	switch fields[0] {
	case "n", "next", "step":
		return command{action: actStep}, nil
	case "b", "back":
		return command{action: actBack}, nil
	case "p", "pause":
		return command{action: actPause}, nil
	case "r", "resume":
		return command{action: actResume}, nil
	case "i", "status":
		return command{action: actStatus}, nil
	case "h", "help", "?":
		return command{action: actHelp}, nil
	case "q", "quit", "exit":
		return command{action: actQuit}, nil
	case "s", "speed":
		if len(fields) != 2 {
			return command{}, fmt.Errorf("usage: s <milliseconds>")
		}
		ms, err := strconv.Atoi(fields[1])
		if err != nil || ms < 0 {
			return command{}, fmt.Errorf("invalid speed %q: want non-negative milliseconds", fields[1])
		}
		return command{action: actSpeed, speed: time.Duration(ms) * time.Millisecond}, nil
	}
	return command{}, fmt.Errorf("unknown command %q (h for help)", fields[0])
}

// controller is the part of the driver the terminal loop uses.
type controller interface {
	StepForward(ctx context.Context) (bool, error)
	StepBack(ctx context.Context) (bool, error)
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	SetSpeed(ctx context.Context, delay time.Duration) error
	Status(ctx context.Context) (driver.Status, error)
}

// execute applies cmd and writes any feedback to out. It reports whether
// the session should end.
func execute(ctx context.Context, d controller, cmd command, out io.Writer) (bool, error) {
	switch cmd.action {
	case actStep:
		_, err := d.StepForward(ctx)
		return false, err
	case actBack:
		ok, err := d.StepBack(ctx)
		if errors.Is(err, driver.ErrNotPaused) {
			fmt.Fprintln(out, "pause first (p) to step back")
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if !ok {
			fmt.Fprintln(out, "already at the first iteration")
		}
		return false, nil
	case actPause:
		if err := d.Pause(ctx); err != nil {
			return false, err
		}
		fmt.Fprintln(out, "paused")
		return false, nil
	case actResume:
		if err := d.Resume(ctx); err != nil {
			return false, err
		}
		fmt.Fprintln(out, "resumed")
		return false, nil
	case actSpeed:
		if err := d.SetSpeed(ctx, cmd.speed); err != nil {
			return false, err
		}
		fmt.Fprintf(out, "speed set to %s\n", cmd.speed)
		return false, nil
	case actStatus:
		st, err := d.Status(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "iteration=%d paused=%t converged=%t speed=%s\n", st.Iteration, st.Paused, st.Converged, st.Speed)
		return false, nil
	case actHelp:
		fmt.Fprint(out, helpText)
		return false, nil
	case actQuit:
		return true, nil
	}
	return false, fmt.Errorf("unhandled action %d", cmd.action)
}
