// Package driver steps a kmeans.Engine from a single goroutine and exposes
// the interactive controls: step forward, step back, pause, resume and
// speed.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"kmviz/internal/kmeans"
)

var (
	// ErrIterationCap is returned by Run when MaxIterations steps ran
	// without converging.
	ErrIterationCap = errors.New("driver: iteration cap reached")
	// ErrStopped is returned by commands sent after Run has exited.
	ErrStopped = errors.New("driver: stopped")
	// ErrNotPaused is returned by StepBack while auto-stepping is active.
	ErrNotPaused = errors.New("driver: step back requires pause")
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("driver: already running")
)

// Event says what produced a Frame.
type Event int

const (
	EventStart Event = iota
	EventStep
	EventStepBack
)

func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventStep:
		return "step"
	case EventStepBack:
		return "step-back"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// Frame is published to observers after every state change.
type Frame struct {
	Event     Event
	Snapshot  kmeans.Snapshot
	Changed   bool
	Converged bool
	Paused    bool
}

// Observer receives frames on the driver goroutine. Implementations must
// not call back into the Driver.
type Observer interface {
	Observe(Frame)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Frame)

func (f ObserverFunc) Observe(fr Frame) { f(fr) }

// Config controls automatic stepping.
type Config struct {
	// Speed is the delay between automatic steps. Zero steps as fast as
	// possible.
	Speed time.Duration
	// AutoStart begins in the resumed state. Otherwise the driver waits
	// for StepForward or Resume.
	AutoStart bool
	// StopOnConverge makes Run return nil once a step changes nothing.
	StopOnConverge bool
	// MaxIterations caps the number of steps. Zero means no cap.
	MaxIterations int
	Logger        *slog.Logger
}

// Status is a point-in-time view of the driver.
type Status struct {
	Iteration int
	Paused    bool
	Converged bool
	Speed     time.Duration
}

type commandKind int

const (
	cmdStepForward commandKind = iota
	cmdStepBack
	cmdPause
	cmdResume
	cmdSetSpeed
	cmdStatus
)

type command struct {
	kind  commandKind
	speed time.Duration
	reply chan result
}

type result struct {
	ok     bool
	status Status
	err    error
}

// Driver owns an engine while Run is active. All engine access goes
// through the Run goroutine.
type Driver struct {
	engine    *kmeans.Engine
	cfg       Config
	log       *slog.Logger
	limiter   *rate.Limiter
	observers []Observer

	cmds    chan command
	done    chan struct{}
	running atomic.Bool

	paused bool
	speed  time.Duration
}

// New returns a driver for a loaded engine.
func New(engine *kmeans.Engine, cfg Config, observers ...Observer) *Driver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		engine:    engine,
		cfg:       cfg,
		log:       logger,
		limiter:   rate.NewLimiter(rate.Every(cfg.Speed), 1),
		observers: observers,
		cmds:      make(chan command),
		done:      make(chan struct{}),
		paused:    !cfg.AutoStart,
		speed:     cfg.Speed,
	}
}

// Run drives the engine until ctx is cancelled, the engine converges with
// StopOnConverge set, or the iteration cap is hit.
func (d *Driver) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(d.done)

	if !d.engine.Loaded() {
		return fmt.Errorf("driver: %w", kmeans.ErrNotLoaded)
	}

	d.log.Info("driver started", "iteration", d.engine.Iteration(), "paused", d.paused, "speed", d.speed)
	d.publish(EventStart, false)

	for {
		var (
			tick  <-chan time.Time
			timer *time.Timer
		)
		if d.autoStepping() {
			timer = time.NewTimer(d.nextDelay())
			tick = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			d.log.Info("driver stopped", "iteration", d.engine.Iteration(), "reason", ctx.Err())
			return ctx.Err()

		case cmd := <-d.cmds:
			if timer != nil {
				timer.Stop()
			}
			if err := d.handle(cmd); err != nil {
				return err
			}

		case <-tick:
			if !d.limiter.Allow() {
				continue
			}
			if _, err := d.step(); err != nil {
				return err
			}
		}

		if d.engine.Converged() && d.cfg.StopOnConverge {
			d.log.Info("converged", "iteration", d.engine.Iteration())
			return nil
		}
		if steps := d.engine.Iteration() - 1; d.cfg.MaxIterations > 0 && steps >= d.cfg.MaxIterations && !d.engine.Converged() {
			d.log.Warn("iteration cap reached", "steps", steps)
			return fmt.Errorf("%w after %d steps", ErrIterationCap, steps)
		}
	}
}

// nextDelay reports how long until the limiter grants the next automatic
// step without consuming the token.
func (d *Driver) nextDelay() time.Duration {
	now := time.Now()
	r := d.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return delay
}

func (d *Driver) autoStepping() bool {
	return !d.paused && !d.engine.Converged()
}

func (d *Driver) handle(cmd command) error {
	var res result
	var runErr error
	switch cmd.kind {
	case cmdStepForward:
		res.ok, runErr = d.step()
		res.err = runErr
	case cmdStepBack:
		if !d.paused {
			res.err = ErrNotPaused
			break
		}
		res.ok = d.engine.StepBack()
		if res.ok {
			d.log.Debug("stepped back", "iteration", d.engine.Iteration())
			d.publish(EventStepBack, false)
		}
	case cmdPause:
		d.paused = true
		d.log.Debug("paused", "iteration", d.engine.Iteration())
	case cmdResume:
		d.paused = false
		d.log.Debug("resumed", "iteration", d.engine.Iteration())
	case cmdSetSpeed:
		d.speed = max(cmd.speed, 0)
		d.limiter.SetLimit(rate.Every(d.speed))
		d.log.Debug("speed changed", "speed", d.speed)
	case cmdStatus:
	}
	res.status = d.status()
	cmd.reply <- res
	return runErr
}

func (d *Driver) step() (bool, error) {
	changed, err := d.engine.Step()
	if err != nil {
		return false, err
	}
	d.log.Debug("stepped", "iteration", d.engine.Iteration(), "changed", changed)
	d.publish(EventStep, changed)
	return changed, nil
}

func (d *Driver) publish(ev Event, changed bool) {
	if len(d.observers) == 0 {
		return
	}
	fr := Frame{
		Event:     ev,
		Snapshot:  d.engine.Snapshot(),
		Changed:   changed,
		Converged: d.engine.Converged(),
		Paused:    d.paused,
	}
	for _, o := range d.observers {
		o.Observe(fr)
	}
}

func (d *Driver) status() Status {
	return Status{
		Iteration: d.engine.Iteration(),
		Paused:    d.paused,
		Converged: d.engine.Converged(),
		Speed:     d.speed,
	}
}

func (d *Driver) send(ctx context.Context, cmd command) (result, error) {
	cmd.reply = make(chan result, 1)
	select {
	case d.cmds <- cmd:
	case <-d.done:
		return result{}, ErrStopped
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
	// handle always replies before Run can exit
	res := <-cmd.reply
	return res, res.err
}

// StepForward runs one step and reports whether any point changed cluster.
func (d *Driver) StepForward(ctx context.Context) (bool, error) {
	res, err := d.send(ctx, command{kind: cmdStepForward})
	return res.ok, err
}

// StepBack reverts one step. It reports false when already at the first
// iteration and fails with ErrNotPaused while auto-stepping.
func (d *Driver) StepBack(ctx context.Context) (bool, error) {
	res, err := d.send(ctx, command{kind: cmdStepBack})
	return res.ok, err
}

// Pause stops automatic stepping.
func (d *Driver) Pause(ctx context.Context) error {
	_, err := d.send(ctx, command{kind: cmdPause})
	return err
}

// Resume starts automatic stepping.
func (d *Driver) Resume(ctx context.Context) error {
	_, err := d.send(ctx, command{kind: cmdResume})
	return err
}

// SetSpeed changes the delay between automatic steps.
func (d *Driver) SetSpeed(ctx context.Context, delay time.Duration) error {
	_, err := d.send(ctx, command{kind: cmdSetSpeed, speed: delay})
	return err
}

// Status returns the current iteration and control state.
func (d *Driver) Status(ctx context.Context) (Status, error) {
	res, err := d.send(ctx, command{kind: cmdStatus})
	return res.status, err
}

// Done is closed when Run returns.
func (d *Driver) Done() <-chan struct{} { return d.done }
