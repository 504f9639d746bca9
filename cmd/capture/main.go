// Command capture streams a Video4Linux2 device and serves stills and
// control settings over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adamlouis/capture"
	"github.com/adamlouis/capture/internal/server"
	"github.com/adamlouis/capture/snapshot"
	"github.com/adamlouis/capture/v4l2"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	configPath = flag.String("config", "", "Path to config file")
	device     = flag.String("device", "", "Video device, overrides the config")
	listen     = flag.String("listen", "", "HTTP listen address, overrides the config")
	debug      = flag.Bool("debug", false, "Log more information")
)

func main() {
	flag.Parse()

	log, err := newLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("capture failed", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	gin.SetMode(gin.ReleaseMode)
	return zap.NewProduction()
}

func run(log *zap.Logger) error {
	cfg := capture.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = capture.LoadConfig(*configPath); err != nil {
			return err
		}
	}
	if *device != "" {
		cfg.Device.Path = *device
	}
	if *listen != "" {
		cfg.HTTP.Listen = *listen
	}

	dev, err := v4l2.Open(cfg.Device.Path)
	if err != nil {
		return fmt.Errorf("%s: %w", cfg.Device.Path, err)
	}
	cam, err := snapshot.Open(dev, cfg.Settings(), capture.Options{
		Logger:  log.With(zap.String("device", cfg.Device.Path)),
		Buffers: cfg.Device.Buffers,
	})
	if err != nil {
		return err
	}
	defer cam.Close()

	st := cam.Status()
	log.Info("capturing",
		zap.String("card", st.Card),
		zap.String("format", st.Format),
		zap.Int("width", st.Width),
		zap.Int("height", st.Height))

	srv := server.NewHTTPServer(cfg.HTTP.Listen, cam, log)
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("shutting down", zap.Stringer("signal", sig))
	case err := <-errCh:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
