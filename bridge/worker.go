// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/Query-farm/vgi-chariot/vgirpc"
)

// WorkerName is the base name of the worker executable. Builds may append
// a suffix such as "-386.exe".
const WorkerName = "chariot-worker"

// DefaultStopTimeout bounds how long Stop waits for the worker to exit
// after its stdin is closed.
const DefaultStopTimeout = 5 * time.Second

// Locate returns path if it names a file, else the first chariot-worker*
// file next to the running executable.
func Locate(path string) (string, error) {
	if path != "" {
		if isFile(path) {
			return path, nil
		}
		return "", fmt.Errorf("%w: %s", ErrWorkerNotFound, path)
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("%w: unable to lookup executable path: %v", ErrWorkerNotFound, err)
	}
	if eval, err := filepath.EvalSymlinks(exe); err == nil {
		exe = eval
	}
	return locateIn(filepath.Dir(exe))
}

func locateIn(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, WorkerName+"*"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrWorkerNotFound, err)
	}
	sort.Strings(matches)
	for _, m := range matches {
		if isFile(m) {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: no %s* in %s", ErrWorkerNotFound, WorkerName, dir)
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// WorkerConfig describes how to launch a worker.
type WorkerConfig struct {
	// Path is the worker executable. Empty means Locate("").
	Path string
	Args []string
	// Env is appended to the parent environment.
	Env         []string
	StopTimeout time.Duration
	Logger      *slog.Logger
	// ClientOptions configure the stdio client, for example its logger.
	ClientOptions []vgirpc.ClientOption
}

// Worker is a running worker process speaking vgi_rpc on its stdio. Its
// stderr is the parent's.
type Worker struct {
	cmd     *exec.Cmd
	client  *vgirpc.Client
	stdout  *os.File
	done    chan error
	timeout time.Duration
	logger  *slog.Logger

	stopOnce sync.Once
	stopErr  error
}

// StartWorker launches a worker and connects a client to it.
func StartWorker(cfg WorkerConfig) (*Worker, error) {
	path, err := Locate(cfg.Path)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.StopTimeout
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}

	cmd := exec.Command(path, cfg.Args...)
	cmd.Env = append(os.Environ(), cfg.Env...)
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdin: %w", err)
	}
	// The read end stays open across Wait so a response read racing the
	// worker's exit sees EOF. Stop closes it once the client is done.
	stdout, childOut, err := os.Pipe()
	if err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("worker stdout: %w", err)
	}
	cmd.Stdout = childOut

	logger.Info("starting worker", "exe", path)
	err = cmd.Start()
	_ = childOut.Close()
	if err != nil {
		_ = stdout.Close()
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}
	w := &Worker{
		cmd:     cmd,
		stdout:  stdout,
		done:    make(chan error, 1),
		timeout: timeout,
		logger:  logger,
	}
	// Reap the worker when it exits.
	go func() {
		w.done <- cmd.Wait()
	}()
	w.client = vgirpc.NewClient(vgirpc.NewStdioTransport(stdout, stdin), cfg.ClientOptions...)
	return w, nil
}

// Client returns the stdio client.
func (w *Worker) Client() *vgirpc.Client { return w.client }

// Pid returns the worker's process ID.
func (w *Worker) Pid() int { return w.cmd.Process.Pid }

// Stop closes the worker's stdin and waits for it to exit, killing it once
// the stop timeout elapses. It is safe to call more than once.
func (w *Worker) Stop() error {
	w.stopOnce.Do(func() {
		_ = w.client.Close()
		select {
		case err := <-w.done:
			var exitErr *exec.ExitError
			if err != nil && !errors.As(err, &exitErr) {
				w.stopErr = err
			}
		case <-time.After(w.timeout):
			w.logger.Warn("worker did not exit, killing", "pid", w.cmd.Process.Pid)
			if err := w.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				w.stopErr = fmt.Errorf("killing worker: %w", err)
			}
			<-w.done
		}
		_ = w.stdout.Close()
	})
	return w.stopErr
}
