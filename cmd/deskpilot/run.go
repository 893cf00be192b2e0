package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/deskpilot/deskpilot/pkg/config"
	"github.com/deskpilot/deskpilot/runtime/audio"
	"github.com/deskpilot/deskpilot/runtime/capture"
	"github.com/deskpilot/deskpilot/runtime/logger"
	"github.com/deskpilot/deskpilot/runtime/media"
	"github.com/deskpilot/deskpilot/runtime/metrics/prometheus"
	"github.com/deskpilot/deskpilot/runtime/providers"
	"github.com/deskpilot/deskpilot/runtime/providers/gemini"
	"github.com/deskpilot/deskpilot/runtime/session"
	"github.com/deskpilot/deskpilot/runtime/telemetry"
	"github.com/deskpilot/deskpilot/runtime/tools"
	"github.com/deskpilot/deskpilot/runtime/tools/desktop"
	"github.com/deskpilot/deskpilot/runtime/version"
)

// Flag names.
const (
	flagConfig       = "config"
	flagVerbose      = "verbose"
	flagToolsDir     = "tools-dir"
	flagMode         = "mode"
	flagModel        = "model"
	flagVoice        = "voice"
	flagMetricsAddr  = "metrics-addr"
	flagOTLPEndpoint = "otlp-endpoint"
	flagTranscribe   = "transcribe"
	flagCameraDevice = "camera-device"
)

const shutdownTimeout = 5 * time.Second

// flagKeys maps flags to the config keys they override.
var flagKeys = map[string]string{
	flagConfig:       config.KeyConfigFile,
	flagVerbose:      config.KeyVerbose,
	flagToolsDir:     config.KeyToolsDir,
	flagMode:         config.KeyMode,
	flagModel:        config.KeyModel,
	flagVoice:        config.KeyVoice,
	flagMetricsAddr:  config.KeyMetricsAddr,
	flagOTLPEndpoint: config.KeyOTLPEndpoint,
	flagTranscribe:   config.KeyTranscribe,
	flagCameraDevice: config.KeyCameraDevice,
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a live session (default command)",
		Args:  cobra.NoArgs,
		RunE:  runAgent,
	}
	addRunFlags(cmd)
	return cmd
}

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP(flagMode, "m", string(capture.DefaultMode), "Video source: camera, screen or none")
	f.String(flagModel, "", "Live model name")
	f.String(flagVoice, "", "Prebuilt voice name")
	f.String(flagMetricsAddr, "", "Serve Prometheus metrics on this address, e.g. :9090")
	f.String(flagOTLPEndpoint, "", "Export traces to this OTLP/HTTP endpoint")
	f.Bool(flagTranscribe, false, "Print transcripts of spoken input and output")
	f.String(flagCameraDevice, "", "Camera device, e.g. /dev/video0")
}

// loadConfig binds the command's flags to a fresh viper instance and loads the
// configuration. Flags left at their defaults do not override file or env.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()
	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", flag, err)
			}
		}
	}
	return config.Load(v)
}

func runAgent(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	mode, err := capture.ParseMode(cfg.Mode)
	if err != nil {
		return usageError{err}
	}
	cmd.SilenceUsage = true

	if cfg.Verbose {
		logger.SetVerbose(true)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	version.LogStartup(ctx)
	warnIfUnprivileged()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, telemetry.DefaultServiceName)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("Failed to flush traces", "error", err)
		}
	}()

	metrics := prometheus.New()
	if cfg.MetricsAddr != "" {
		stopMetrics := serveMetrics(cfg.MetricsAddr, metrics)
		defer stopMetrics()
	}

	reg, err := buildRegistry(cfg.ToolsDir)
	if err != nil {
		return err
	}
	toolset := desktop.New(desktop.WithAPIKeys(cfg.WeatherAPIKey, cfg.NewsAPIKey))
	defer func() {
		if err := toolset.Close(); err != nil {
			logger.Warn("Failed to close browser", "error", err)
		}
	}()
	skipped, err := toolset.Register(reg)
	if err != nil {
		return err
	}
	if skipped > 0 {
		logger.Debug("Tools without a catalog entry were not registered", "count", skipped)
	}
	dispatcher := tools.NewDispatcher(reg,
		tools.WithRecorder(metrics),
		tools.WithTracer(telemetry.Tracer(nil)),
	)

	dev, err := openDevices(cfg, mode)
	if err != nil {
		return err
	}

	loop := session.NewAudioLoop(
		session.WithConnector(gemini.NewConnector(cfg.APIKey)),
		session.WithLiveConfig(liveConfig(cfg, reg.Declarations())),
		session.WithMicrophone(dev.mic),
		session.WithSpeaker(dev.speaker),
		session.WithGrabber(dev.grabber),
		session.WithMode(mode),
		session.WithDispatcher(dispatcher),
		session.WithMetrics(metrics),
		session.WithCaptureInterval(cfg.Video.Interval),
		session.WithQueueCapacity(cfg.Queues.Outbound, cfg.Queues.Video),
	)
	logger.Info("Starting session", "mode", string(mode), "model", cfg.Model, "tools", len(reg.Declarations()))
	return loop.Run(ctx)
}

// buildRegistry loads the built-in catalog and, when dir is set, the user's
// manifests on top of it.
func buildRegistry(dir string) (*tools.Registry, error) {
	reg := tools.NewRegistry()
	if err := reg.LoadBuiltinCatalog(); err != nil {
		return nil, fmt.Errorf("load tool catalog: %w", err)
	}
	if dir != "" {
		if err := reg.LoadDir(dir); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func liveConfig(cfg *config.Config, decls []providers.FunctionDeclaration) *providers.LiveConfig {
	lc := providers.DefaultLiveConfig()
	lc.Model = cfg.Model
	lc.Voice = cfg.Voice
	lc.SystemInstruction = cfg.SystemInstruction
	lc.CompressionTriggerTokens = cfg.Compression.Trigger
	lc.CompressionTargetTokens = cfg.Compression.Target
	lc.InputTranscription = cfg.Transcribe
	lc.OutputTranscription = cfg.Transcribe
	lc.Tools = decls
	return lc
}

type devices struct {
	mic     audio.Source
	speaker audio.Sink
	grabber capture.Grabber
}

// openDevices opens the microphone, the speaker and, unless mode is none, the
// grabber. Devices already opened are closed when a later one fails.
func openDevices(cfg *config.Config, mode capture.Mode) (*devices, error) {
	mic, err := audio.OpenMicrophone(audio.MicrophoneConfig{
		SampleRate:      cfg.Audio.SendRate,
		Channels:        cfg.Audio.Channels,
		FramesPerBuffer: cfg.Audio.ChunkFrames,
	})
	if err != nil {
		return nil, err
	}
	speaker, err := audio.OpenSpeaker(audio.SpeakerConfig{
		SampleRate:      cfg.Audio.RecvRate,
		Channels:        cfg.Audio.Channels,
		FramesPerBuffer: cfg.Audio.ChunkFrames,
	})
	if err != nil {
		_ = mic.Close()
		return nil, err
	}

	frame := media.DefaultFrameConfig()
	frame.MaxWidth = cfg.Video.MaxWidth
	frame.MaxHeight = cfg.Video.MaxHeight
	frame.Quality = cfg.Video.Quality
	grabber, err := capture.New(mode, capture.Config{Device: cfg.Video.CameraDevice, Frame: frame})
	if err != nil {
		_ = mic.Close()
		_ = speaker.Close()
		return nil, err
	}
	return &devices{mic: mic, speaker: speaker, grabber: grabber}, nil
}

// serveMetrics starts the exporter in the background and returns its stop
// function.
func serveMetrics(addr string, m *prometheus.Metrics) func() {
	exp := prometheus.NewExporter(addr, m)
	go func() {
		if err := exp.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics exporter failed", "addr", addr, "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := exp.Shutdown(ctx); err != nil {
			logger.Warn("Failed to stop metrics exporter", "error", err)
		}
	}
}
