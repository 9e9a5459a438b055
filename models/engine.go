package models

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	errs "github.com/mosaicwallet/tx-engine/models/errors"
)

// Engine defines a processing unit
type Engine interface {
	// Run the engine with context, errors are not expected.
	Run(ctx context.Context) error
	// Stop the engine.
	Stop()
	// Done signals the engine was stopped.
	Done() <-chan struct{}
	// Ready signals the engine was started.
	Ready() <-chan struct{}
}

// EngineStatus tracks the lifecycle signals of an engine. Engines embed it
// and mark the transitions from their Run and Stop implementations.
type EngineStatus struct {
	done    chan struct{}
	ready   chan struct{}
	stopped chan struct{}

	once sync.Once
}

func NewEngineStatus() *EngineStatus {
	return &EngineStatus{
		done:    make(chan struct{}),
		ready:   make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// MarkReady signals the engine finished starting up.
func (s *EngineStatus) MarkReady() {
	s.once.Do(func() {
		close(s.ready)
	})
}

// MarkDone signals the engine should wind down.
func (s *EngineStatus) MarkDone() {
	close(s.done)
}

// MarkStopped signals the engine finished winding down.
func (s *EngineStatus) MarkStopped() {
	close(s.stopped)
}

func (s *EngineStatus) Ready() <-chan struct{} {
	return s.ready
}

func (s *EngineStatus) Done() <-chan struct{} {
	return s.done
}

func (s *EngineStatus) Stopped() <-chan struct{} {
	return s.stopped
}

// RestartableEngine is an engine wrapper that tries to restart
// the engine in case of recoverable starting errors.
//
// The strategy of the restarts contains simple backoff time and
// limited number of retries that can be configured.
type RestartableEngine struct {
	logger  zerolog.Logger
	engine  Engine
	retries uint
}

func NewRestartableEngine(engine Engine, retries uint, logger zerolog.Logger) *RestartableEngine {
	if retries > math.MaxInt {
		retries = math.MaxInt
	}

	logger = logger.With().Str("component", "restartable-engine").Logger()

	return &RestartableEngine{
		engine:  engine,
		retries: retries,
		logger:  logger,
	}
}

func (r *RestartableEngine) Stop() {
	r.engine.Stop()
}

func (r *RestartableEngine) Done() <-chan struct{} {
	return r.engine.Done()
}

func (r *RestartableEngine) Ready() <-chan struct{} {
	return r.engine.Ready()
}

// Run the wrapped engine, restarting it on recoverable errors with
// increasing backoff before giving up and returning the last error.
func (r *RestartableEngine) Run(ctx context.Context) error {
	backoff := time.Second * 1

	var err error
	for i := uint(0); i < r.retries; i++ {
		if i > 0 {
			backoff *= 2
			r.logger.Warn().
				Dur("backoff", backoff).
				Uint("retry", i).
				Msg("restarting the engine after backoff")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err = r.engine.Run(ctx)
		if err == nil {
			// engine exited cleanly
			return nil
		}
		if !errors.Is(err, errs.ErrDisconnected) {
			// all other errors are unrecoverable
			return err
		}

		r.logger.Error().Err(err).Msg("engine disconnected")
	}

	return err
}
