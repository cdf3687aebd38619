// Copyright (c) 2026 Commonwealth Scientific and Industrial Research Organisation (CSIRO). All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package aitool

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run is the process bootstrap for a tool service: it parses --host/--port/
// --print-tool-description flags, wires the ambient middlewares around srv
// per cfg, and serves until ctx is cancelled or SIGINT/SIGTERM arrives. It
// blocks for the lifetime of the service.
func Run(ctx context.Context, srv *Server, cfg Config, args []string) error {
	fs := flag.NewFlagSet("tool-server", flag.ContinueOnError)
	host := fs.String("host", cfg.Host, "host address")
	port := fs.Int("port", cfg.Port, "port number")
	printDef := fs.Bool("print-tool-description", false, "print tool descriptions to stdout and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.Host = *host
	cfg.Port = *port

	if *printDef {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(srv.reg.Describe())
	}

	if srv.version == "" {
		srv.SetVersion(os.Getenv("VERSION"))
	}

	var middlewares []Middleware
	middlewares = append(middlewares, Logging(srv.logger))
	if cfg.rateLimitEnabled() {
		middlewares = append(middlewares, RateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}
	if cfg.Metrics {
		middlewares = append(middlewares, Metrics(prometheus.DefaultRegisterer))
	}

	var handler http.Handler = Chain(middlewares...)(srv)
	if cfg.gzipEnabled() {
		handler = gzhttp.GzipHandler(handler)
	}

	mux := http.NewServeMux()
	if cfg.Metrics {
		mux.Handle("GET /metrics", promhttp.Handler())
	}
	mux.Handle("/", handler)

	httpSrv := &http.Server{
		Addr:              cfg.addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	srv.logger.Info("tool server listening",
		"addr", cfg.addr(), "service", srv.serviceName, "version", srv.version,
		"tools", srv.reg.Names())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	srv.logger.Info("tool server stopped")
	return nil
}

// InitLogging installs a default slog text handler at the given level and
// returns the logger. Services call this once from main.
func InitLogging(level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
