package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"camcast.app/rtsp-announcer/internal/adapters/onvifcam"
	"camcast.app/rtsp-announcer/internal/adapters/wschannel"
	"camcast.app/rtsp-announcer/internal/announce"
	"camcast.app/rtsp-announcer/internal/buildinfo"
	"camcast.app/rtsp-announcer/internal/config"
	"camcast.app/rtsp-announcer/internal/diagnostics"
	"camcast.app/rtsp-announcer/internal/lifecycle"
)

type selfTestOutput struct {
	Server struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"server"`
	Wiring struct {
		CameraWired  bool `json:"camera_wired"`
		ChannelWired bool `json:"channel_wired"`
	} `json:"wiring"`
	Endpoints diagnostics.Report `json:"endpoints"`
}

func main() {
	selfTest := flag.Bool("self-test", false, "probe configured endpoints and report wiring then exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(buildinfo.Version)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	channel := wschannel.New(cfg.ChannelURL)
	cameraParams := onvifcam.Params{
		Xaddr:    cfg.DeviceXAddr,
		Username: cfg.Username,
		Password: cfg.Password,
	}

	if *selfTest {
		// Client construction contacts the device, so a failure here is
		// itself part of the report rather than a reason to abort.
		camera, cameraErr := onvifcam.NewClient(cameraParams)
		out := selfTestOutput{
			Endpoints: diagnostics.ProbeEndpoints(cfg.DeviceXAddr, cfg.ChannelURL),
		}
		out.Server.Name = "rtsp-announcer"
		out.Server.Version = buildinfo.Version
		out.Wiring.CameraWired = cameraErr == nil && camera != nil
		out.Wiring.ChannelWired = channel != nil

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(out); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	camera, err := onvifcam.NewClient(cameraParams)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	runCtx, stopSignals := signal.NotifyContext(context.Background(), lifecycle.TerminationSignals()...)
	defer stopSignals()

	logLevel := parseLogLevel(os.Getenv(config.EnvLogLevel))
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	logger.Info(
		"announcer_start",
		slog.String("server", "rtsp-announcer"),
		slog.String("version", buildinfo.Version),
		slog.String("log_level", logLevel.String()),
		slog.String("device", cfg.DeviceXAddr),
		slog.Int("profile_indices", len(cfg.ProfileIndices)),
	)
	channel.SetLogf(func(format string, args ...any) {
		logger.Debug(fmt.Sprintf(format, args...))
	})

	announcer := announce.New(announce.Config{
		Camera:         camera,
		Channel:        channel,
		Username:       cfg.Username,
		Password:       cfg.Password,
		ProfileIndices: cfg.ProfileIndices,
		Logger:         logger,
	})

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- announcer.Run(runCtx)
	}()

	var runErr error
	select {
	case runErr = <-runErrCh:
	case <-runCtx.Done():
		runErr = runCtx.Err()
	}
	if runErr != nil {
		logger.Warn("announcer_stopping", slog.String("reason", runErr.Error()))
	} else {
		logger.Info("announcer_stopping", slog.String("reason", "clean_exit"))
	}

	if err := channel.Close(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		fmt.Fprintf(os.Stderr, "invalid %s=%q; defaulting to info\n", config.EnvLogLevel, raw)
		return slog.LevelInfo
	}
}
