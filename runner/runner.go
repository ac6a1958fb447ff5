// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package runner drives a rotating-antenna throughput measurement: a TX test
// built from the configured pairs, its reciprocal RX test, and one result per
// direction for every rotation angle.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/Query-farm/vgi-chariot/chariot"
	"github.com/Query-farm/vgi-chariot/chrapi"
	"github.com/Query-farm/vgi-chariot/results"
)

var (
	ErrInitialize = errors.New("runner: chariot api initialize error")
	ErrTimeout    = errors.New("runner: timed out waiting for test")
	ErrNoResults  = errors.New("runner: test produced no timing records")
)

// Rotator positions the turntable before each angle is measured.
type Rotator interface {
	Rotate(ctx context.Context, angle float64) error
}

// Runner executes a Config against a connected session.
type Runner struct {
	session  *chariot.Session
	cfg      *Config
	store    *results.Store
	logger   *slog.Logger
	rotator  Rotator
	waitTime uint32
}

// Option configures a Runner.
type Option func(*Runner)

func WithLogger(l *slog.Logger) Option { return func(r *Runner) { r.logger = l } }

func WithRotator(rot Rotator) Option { return func(r *Runner) { r.rotator = rot } }

// New returns a Runner. The session must already be connected.
func New(s *chariot.Session, cfg *Config, store *results.Store, opts ...Option) *Runner {
	r := &Runner{
		session:  s,
		cfg:      cfg,
		store:    store,
		logger:   slog.Default(),
		waitTime: cfg.MaxWaitTime,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// WaitTime is the polling ceiling, in seconds, for each test run.
func (r *Runner) WaitTime() uint32 { return r.waitTime }

// CreateTest builds the TX test from the configured pairs. A configured
// test_duration extends the wait ceiling by that duration.
func (r *Runner) CreateTest(ctx context.Context) (chrapi.Handle, error) {
	test, err := r.session.TestNew(ctx)
	if err != nil {
		return chrapi.NullHandle, err
	}
	for _, p := range r.cfg.Pairs {
		for range max(p.Count, 1) {
			pair, err := r.session.CreatePairAttr(ctx, p.E1, p.E2, p.Script, p.attr())
			if err != nil {
				return test, err
			}
			if err := r.session.TestAddPair(ctx, test, pair); err != nil {
				return test, err
			}
		}
	}
	return test, r.applyRunopts(ctx, test, true)
}

// CopySwapPairsTest builds the RX test: src with every pair's endpoints
// swapped, under the same run options.
func (r *Runner) CopySwapPairsTest(ctx context.Context, src chrapi.Handle) (chrapi.Handle, error) {
	test, err := r.session.GetSwapPairsTest(ctx, src)
	if err != nil {
		return test, err
	}
	return test, r.applyRunopts(ctx, test, false)
}

func (r *Runner) applyRunopts(ctx context.Context, test chrapi.Handle, extendWait bool) error {
	opts := r.cfg.Runopts
	if opts == nil {
		return nil
	}
	runopts, err := r.session.TestGetRunopts(ctx, test)
	if err != nil {
		return err
	}
	if opts.TestEnd != "" {
		end, _ := chrapi.ParseTestEnd(opts.TestEnd)
		if err := r.session.RunoptsSetTestEnd(ctx, runopts, end); err != nil {
			return err
		}
	}
	if opts.TestDuration != nil {
		if extendWait {
			r.waitTime = r.cfg.MaxWaitTime + *opts.TestDuration
		}
		if err := r.session.RunoptsSetTestDuration(ctx, runopts, *opts.TestDuration); err != nil {
			return err
		}
	}
	return nil
}

// RunTestResult runs test to completion and returns its aggregate
// throughput in Mbps.
func (r *Runner) RunTestResult(ctx context.Context, test chrapi.Handle) (float64, error) {
	if err := r.session.TestStart(ctx, test); err != nil {
		return 0, err
	}
	done, err := r.session.WaitTestTimeout(ctx, test, r.waitTime, r.cfg.Timeout)
	if err != nil {
		return 0, err
	}
	if !done {
		return 0, fmt.Errorf("%w after %ds", ErrTimeout, r.waitTime)
	}
	pairs, err := r.session.GetPairs(ctx, test)
	if err != nil {
		return 0, err
	}
	sent, err := r.session.GetPairsBytesSentE1(ctx, pairs)
	if err != nil {
		return 0, err
	}
	recv, err := r.session.GetPairsBytesRecvE1(ctx, pairs)
	if err != nil {
		return 0, err
	}
	r.logger.Info("Test bytes", "sent", sent, "received", recv)
	mbps, ok, err := r.session.GetPairsResultsAverage(ctx, pairs)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNoResults
	}
	return mbps, nil
}

// Run initializes the API and measures TX then RX at every rotation angle,
// recording each result under one run.
func (r *Runner) Run(ctx context.Context) (results.Run, error) {
	rc, err := r.session.APIInitializeChecked(ctx)
	if err != nil {
		return results.Run{}, err
	}
	if rc != chrapi.OK {
		return results.Run{}, fmt.Errorf("%w: %s", ErrInitialize, rc)
	}
	version, err := r.session.APIGetVersion(ctx)
	if err != nil {
		return results.Run{}, err
	}
	r.logger.Info("chrapi version", "version", version)

	tx, err := r.CreateTest(ctx)
	if err != nil {
		return results.Run{}, fmt.Errorf("creating TX test: %w", err)
	}
	rx, err := r.CopySwapPairsTest(ctx, tx)
	if err != nil {
		return results.Run{}, fmt.Errorf("creating RX test: %w", err)
	}

	run := r.store.NewRun()
	for _, angle := range r.cfg.RotationAngle {
		r.logger.Info("Testing rotation angle", "angle", angle)
		if r.rotator != nil {
			if err := r.rotator.Rotate(ctx, angle); err != nil {
				return run, fmt.Errorf("rotating to %v: %w", angle, err)
			}
		}
		for _, leg := range []struct {
			dir  results.Direction
			test chrapi.Handle
		}{{results.TX, tx}, {results.RX, rx}} {
			r.logger.Info("Testing " + string(leg.dir))
			mbps, err := r.RunTestResult(ctx, leg.test)
			if err != nil {
				return run, fmt.Errorf("%s at %v: %w", leg.dir, angle, err)
			}
			if err := r.store.Record(run, leg.dir, angle, round3(mbps)); err != nil {
				return run, err
			}
		}
	}
	return run, nil
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
