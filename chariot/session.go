// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package chariot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"reflect"
	"runtime"
	"strings"

	"github.com/Query-farm/vgi-chariot/bridge"
	"github.com/Query-farm/vgi-chariot/chrapi"
	"github.com/Query-farm/vgi-chariot/vgirpc"
)

// DefaultPort is the worker HTTP port assumed when a remote address has
// none.
const DefaultPort = "18812"

// api is what a Session dispatches to: an in-process chrapi.Binding or a
// bridge.Caller.
type api interface {
	Call(ctx context.Context, name string, args ...any) (chrapi.Result, error)
	Has(name string) bool
	Available() []string
}

// remote is the bridge state. Its fields are set together when a bridge is
// established and dropped together by StopRPC.
type remote struct {
	worker  *bridge.Worker // nil for HTTP workers
	client  *vgirpc.Client
	catalog []string
	caller  *bridge.Caller
}

// Session is a connection to IxChariot through ChrApi.dll, either loaded
// in-process or driven through a worker. A Session is not safe for
// concurrent use.
type Session struct {
	logger   *slog.Logger
	onStatus func(Status)
	status   Status
	address  string

	table      *chrapi.Table
	codec      *chrapi.Codec
	dllDir     string
	scriptsDir string
	version    chrapi.Version
	goos       string
	goarch     string
	load       func(dir string) (chrapi.Library, error)

	workerPath string
	workerArgs []string
	workerEnv  []string
	httpLevel  int

	api    api
	local  *chrapi.Binding
	remote *remote
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger for error reports and progress messages.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithStatusCallback registers fn to observe every status change.
func WithStatusCallback(fn func(Status)) Option {
	return func(s *Session) { s.onStatus = fn }
}

// WithCodec sets the text encoding used for string arguments.
func WithCodec(c *chrapi.Codec) Option {
	return func(s *Session) { s.codec = c }
}

// WithTable replaces the Standard function table.
func WithTable(t *chrapi.Table) Option {
	return func(s *Session) { s.table = t }
}

// WithDLLDir sets the directory searched first for ChrApi.dll.
func WithDLLDir(dir string) Option {
	return func(s *Session) { s.dllDir = dir }
}

// WithScriptsDir sets the directory relative script names resolve
// against. The default is the Scripts directory next to ChrApi.dll.
func WithScriptsDir(dir string) Option {
	return func(s *Session) { s.scriptsDir = dir }
}

// WithAPIVersion sets the installed IxChariot version used for gating.
// The default is read from the registry.
func WithAPIVersion(v chrapi.Version) Option {
	return func(s *Session) { s.version = v }
}

// WithPlatform overrides the host OS and architecture used by Connect.
func WithPlatform(goos, goarch string) Option {
	return func(s *Session) { s.goos, s.goarch = goos, goarch }
}

// WithLibraryLoader replaces the native loader used for in-process
// connections.
func WithLibraryLoader(load func(dir string) (chrapi.Library, error)) Option {
	return func(s *Session) { s.load = load }
}

// WithWorker sets the worker executable, extra arguments and extra
// environment. An empty path means bridge.Locate("").
func WithWorker(path string, args []string, env []string) Option {
	return func(s *Session) { s.workerPath, s.workerArgs, s.workerEnv = path, args, env }
}

// WithHTTPCompression compresses request bodies sent to HTTP workers.
func WithHTTPCompression(level int) Option {
	return func(s *Session) { s.httpLevel = level }
}

// New returns an unconnected session.
func New(opts ...Option) *Session {
	s := &Session{
		logger: slog.Default(),
		status: StatusInit,
		table:  chrapi.Standard(),
		codec:  chrapi.UTF8,
		goos:   runtime.GOOS,
		goarch: runtime.GOARCH,
		load:   openNative,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.version == nil {
		if v, err := chrapi.InstallVersion(); err == nil {
			s.version = v
		}
	}
	return s
}

func openNative(dir string) (chrapi.Library, error) {
	found, err := chrapi.LocateAPIDir(dir)
	if err != nil {
		return nil, err
	}
	return chrapi.Open(found)
}

// Status returns the current status.
func (s *Session) Status() Status { return s.status }

// Address returns the address passed to Connect.
func (s *Session) Address() string { return s.address }

func (s *Session) setStatus(st Status) {
	if s.status == st {
		return
	}
	s.status = st
	if s.onStatus != nil {
		s.onStatus(st)
	}
}

func isLocal(address string) bool {
	return address == "localhost" || address == "127.0.0.1"
}

// Connect binds the session to ChrApi.dll. A local address loads the DLL
// in-process on 32-bit Windows and starts a worker on 64-bit Windows; any
// other address is an HTTP worker.
func (s *Session) Connect(ctx context.Context, address string) error {
	if err := s.releaseLocal(); err != nil {
		return fmt.Errorf("releasing %s: %w", chrapi.APIName, err)
	}
	s.address = address
	if isLocal(address) {
		if s.goos != "windows" {
			return fmt.Errorf("%w: %s", ErrUnsupportedOS, s.goos)
		}
		if strings.HasSuffix(s.goarch, "64") {
			s.setStatus(StatusRPC)
			if err := s.StartRPC(ctx); err != nil {
				return err
			}
			s.setStatus(StatusAPI)
			s.api = s.remote.caller
		} else {
			s.setStatus(StatusAPI)
			if err := s.bindLocal(); err != nil {
				return err
			}
		}
	} else {
		s.setStatus(StatusAPI)
		if err := s.connectHTTP(ctx, address); err != nil {
			return err
		}
		s.api = s.remote.caller
	}
	s.setStatus(StatusOK)
	return nil
}

func (s *Session) bindLocal() error {
	lib, err := s.load(s.dllDir)
	if err != nil {
		return fmt.Errorf("loading %s: %w", chrapi.APIName, err)
	}
	s.local = chrapi.Bind(lib, s.table,
		chrapi.WithVersion(s.version),
		chrapi.WithCodec(s.codec),
		chrapi.WithLogger(s.logger))
	s.api = s.local
	return nil
}

func (s *Session) releaseLocal() error {
	if s.local == nil {
		return nil
	}
	err := s.local.Close()
	if s.api == api(s.local) {
		s.api = nil
	}
	s.local = nil
	return err
}

// StartRPC starts a worker unless a bridge already exists.
func (s *Session) StartRPC(ctx context.Context) error {
	if s.remote != nil {
		return nil
	}
	return s.RestartRPC(ctx)
}

// RestartRPC replaces any bridge with a freshly started worker and runs the
// version handshake. The worker is stopped if the handshake fails.
func (s *Session) RestartRPC(ctx context.Context) error {
	if err := s.StopRPC(); err != nil {
		s.logger.Warn("stopping previous worker", "err", err)
	}
	w, err := bridge.StartWorker(bridge.WorkerConfig{
		Path:          s.workerPath,
		Args:          append(s.workerFlags(), s.workerArgs...),
		Env:           s.workerEnv,
		Logger:        s.logger,
		ClientOptions: []vgirpc.ClientOption{vgirpc.WithClientLogger(s.logger)},
	})
	if err != nil {
		return err
	}
	caller, err := bridge.Dial(ctx, w.Client(), s.table, s.codec)
	if err != nil {
		if stopErr := w.Stop(); stopErr != nil {
			s.logger.Warn("stopping rejected worker", "err", stopErr)
		}
		return err
	}
	s.remote = &remote{worker: w, client: w.Client(), catalog: caller.Available(), caller: caller}
	return nil
}

// workerFlags forwards the session's DLL configuration to the worker.
func (s *Session) workerFlags() []string {
	flags := []string{"--encoding", s.codec.Name()}
	if s.dllDir != "" {
		flags = append(flags, "--dll-dir", s.dllDir)
	}
	if len(s.version) > 0 {
		flags = append(flags, "--api-version", s.version.String())
	}
	return flags
}

func (s *Session) connectHTTP(ctx context.Context, address string) error {
	if err := s.StopRPC(); err != nil {
		s.logger.Warn("stopping previous worker", "err", err)
	}
	var opts []vgirpc.HTTPOption
	if s.httpLevel > 0 {
		opts = append(opts, vgirpc.WithRequestCompression(s.httpLevel))
	}
	client := vgirpc.NewClient(vgirpc.NewHTTPTransport(workerURL(address), opts...), vgirpc.WithClientLogger(s.logger))
	caller, err := bridge.Dial(ctx, client, s.table, s.codec)
	if err != nil {
		client.Close()
		return err
	}
	s.remote = &remote{client: client, catalog: caller.Available(), caller: caller}
	return nil
}

// workerURL turns "host", "host:port" or a full URL into a base URL.
func workerURL(address string) string {
	if strings.Contains(address, "://") {
		return strings.TrimSuffix(address, "/")
	}
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(strings.Trim(address, "[]"), DefaultPort)
	}
	return "http://" + address
}

// StopRPC closes the bridge and stops its worker. It is safe to call on a
// session without a bridge.
func (s *Session) StopRPC() error {
	r := s.remote
	if r == nil {
		return nil
	}
	s.remote = nil
	if s.api == api(r.caller) {
		s.api = nil
		s.setStatus(StatusInit)
	}
	var errs []error
	if err := r.client.Close(); err != nil {
		errs = append(errs, err)
	}
	if r.worker != nil {
		if err := r.worker.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close tears down the bridge and releases an in-process DLL.
func (s *Session) Close() error {
	err := s.StopRPC()
	if s.local != nil {
		err = errors.Join(err, s.releaseLocal())
		s.setStatus(StatusInit)
	}
	return err
}

// Functions lists the CHR_ symbols available through the session.
func (s *Session) Functions() []string {
	if s.remote != nil {
		return append([]string(nil), s.remote.catalog...)
	}
	if s.api == nil {
		return nil
	}
	return s.api.Available()
}

// Has reports whether the connected DLL exports name.
func (s *Session) Has(name string) bool {
	return s.api != nil && s.api.Has(chrName(name))
}

// Table returns the function table in use.
func (s *Session) Table() *chrapi.Table { return s.table }

// Version returns the installed IxChariot version used for gating, or nil.
func (s *Session) Version() chrapi.Version { return s.version }

func chrName(name string) string {
	if strings.HasPrefix(name, "CHR_") {
		return name
	}
	return "CHR_" + name
}

// Raw invokes a native function by its full or short name and returns the
// result without any reporting.
func (s *Session) Raw(ctx context.Context, name string, args ...any) (chrapi.Result, error) {
	if s.api == nil {
		return chrapi.Result{}, ErrNotConnected
	}
	return s.api.Call(ctx, chrName(name), args...)
}

// Call invokes name, which may omit the CHR_ prefix. Outputs collapse to
// nil, a bare value or a []any. A non-OK code is logged through ShowError
// (except for api_* functions) and returned as a *CallError alongside the
// outputs.
func (s *Session) Call(ctx context.Context, name string, args ...any) (any, error) {
	full := chrName(name)
	res, err := s.Raw(ctx, full, args...)
	if err != nil {
		return nil, err
	}
	if res.OK() {
		return res.Value(), nil
	}
	short := strings.TrimPrefix(full, "CHR_")
	if !strings.HasPrefix(short, "api") {
		handle := chrapi.NullHandle
		if len(args) > 0 {
			handle = toHandle(args[0])
		}
		s.ShowError(ctx, handle, res.Code, short)
	}
	return res.Value(), &CallError{Func: full, Code: res.Code}
}

// toHandle reads a handle from the first argument of a call. Any integer
// kind that fits in 32 bits without sign loss counts.
func toHandle(v any) chrapi.Handle {
	if h, ok := v.(chrapi.Handle); ok {
		return h
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if n := rv.Int(); n >= 0 && n <= math.MaxUint32 {
			return chrapi.Handle(n)
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if n := rv.Uint(); n <= math.MaxUint32 {
			return chrapi.Handle(n)
		}
	}
	return chrapi.NullHandle
}

var extendedCodes = map[chrapi.ReturnCode]bool{
	chrapi.OperationFailed: true,
	chrapi.ObjectInvalid:   true,
	chrapi.AppGroupInvalid: true,
}

// ShowError logs the message for code, and the handle's extended error
// info for the codes that carry one.
func (s *Session) ShowError(ctx context.Context, handle chrapi.Handle, code chrapi.ReturnCode, where string) {
	res, err := s.Raw(ctx, "CHR_api_get_return_msg", int32(code))
	if err != nil || !res.OK() {
		s.logger.Error(where + " failed")
		attrs := []any{"code", int32(code), "rc", int32(res.Code)}
		if err != nil {
			attrs = append(attrs, "err", err)
		}
		s.logger.Error("Unable to get message for return code", attrs...)
	} else {
		s.logger.Error(fmt.Sprintf("%s failed: rc = %d (%v)", where, int32(code), res.Value()))
	}

	if extendedCodes[code] && handle != chrapi.NullHandle {
		res, err := s.Raw(ctx, "CHR_common_error_get_info", handle, chrapi.DetailLevelAll)
		if err == nil && res.OK() {
			s.logger.Error("Extended error info", "info", res.Value())
		}
	}
}
