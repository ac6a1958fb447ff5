// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Command chariot-worker loads ChrApi.dll in a 32-bit process and serves it
// to 64-bit clients over vgi_rpc, on stdio by default or on HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Query-farm/vgi-chariot/bridge"
	"github.com/Query-farm/vgi-chariot/chrapi"
	"github.com/Query-farm/vgi-chariot/chrapi/fakedll"
	"github.com/Query-farm/vgi-chariot/vgirpc"
	vgiotel "github.com/Query-farm/vgi-chariot/vgirpc/otel"
)

func main() {
	if err := newRootCmd(openLibrary).Execute(); err != nil {
		os.Exit(1)
	}
}

type opener func(dir string) (chrapi.Library, error)

func openLibrary(dir string) (chrapi.Library, error) {
	found, err := chrapi.LocateAPIDir(dir)
	if err != nil {
		return nil, err
	}
	return chrapi.Open(found)
}

type options struct {
	dllDir     string
	apiVersion string
	encoding   string
	httpAddr   string
	logLevel   string
	otelStdout bool
	simulate   bool
	compress   int
}

func newRootCmd(open opener) *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:   bridge.WorkerName,
		Short: "Serve ChrApi.dll over vgi_rpc",
		Args:  cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, open, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.dllDir, "dll-dir", "", "directory containing ChrApi.dll")
	f.StringVar(&o.apiVersion, "api-version", "", "IxChariot version for function gating (default: registry)")
	f.StringVar(&o.encoding, "encoding", "utf-8", "string encoding of the DLL")
	f.StringVar(&o.httpAddr, "http", "", "serve HTTP on `ADDR` instead of stdio")
	f.IntVar(&o.compress, "http-compression", 3, "zstd level for HTTP responses, 0 disables")
	f.StringVar(&o.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	f.BoolVar(&o.otelStdout, "otel-stdout", false, "export traces and metrics to stderr")
	f.BoolVar(&o.simulate, "simulate", false, "serve a simulated IxChariot instead of ChrApi.dll")
	return cmd
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

func run(cmd *cobra.Command, open opener, o options) error {
	ctx := cmd.Context()
	logger, err := newLogger(cmd.ErrOrStderr(), o.logLevel)
	if err != nil {
		return err
	}
	codec, err := chrapi.NewCodec(o.encoding)
	if err != nil {
		return err
	}
	var version chrapi.Version
	if o.apiVersion != "" {
		if version, err = chrapi.ParseVersion(o.apiVersion); err != nil {
			return fmt.Errorf("invalid --api-version: %w", err)
		}
	} else if version, err = chrapi.InstallVersion(); err != nil {
		logger.Warn("IxChariot version unknown, version gating disabled", "err", err)
	}

	if o.simulate {
		open = func(string) (chrapi.Library, error) { return fakedll.NewChariot(), nil }
	}
	lib, err := open(o.dllDir)
	if err != nil {
		return err
	}
	b := chrapi.Bind(lib, chrapi.Standard(),
		chrapi.WithVersion(version), chrapi.WithCodec(codec), chrapi.WithLogger(logger))
	defer b.Close()

	server := bridge.NewServer(b, logger)
	if o.otelStdout {
		shutdown, err := vgiotel.SetupStdout(cmd.ErrOrStderr(), bridge.WorkerName, 10*time.Second)
		if err != nil {
			return err
		}
		defer shutdown(context.WithoutCancel(ctx))
		cfg := vgiotel.DefaultConfig()
		cfg.CustomAttributes = []attribute.KeyValue{
			attribute.String("chrapi.library", b.LibraryName()),
			attribute.String("chrapi.version", b.Version().String()),
		}
		vgiotel.InstrumentServer(server, cfg)
	}
	logger.Info("worker ready", "library", b.LibraryName(), "version", b.Version(), "functions", len(b.Available()))

	if o.httpAddr != "" {
		return serveHTTP(ctx, server, o, cmd.OutOrStdout(), logger)
	}
	if cmd.InOrStdin() == os.Stdin {
		server.RunStdio()
		return nil
	}
	server.ServeWithContext(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	return nil
}

// serveHTTP listens on the configured address and announces the bound port
// as PORT:<n> on out.
func serveHTTP(ctx context.Context, server *vgirpc.Server, o options, out io.Writer, logger *slog.Logger) error {
	httpServer := vgirpc.NewHttpServer(server)
	httpServer.SetCompressionLevel(o.compress)

	listener, err := net.Listen("tcp", o.httpAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	fmt.Fprintf(out, "PORT:%d\n", port)
	if f, ok := out.(*os.File); ok {
		f.Sync()
	}

	srv := &http.Server{Handler: httpServer}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	logger.Info("serving HTTP", "addr", listener.Addr().String())
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http serve error: %w", err)
	}
	return nil
}
