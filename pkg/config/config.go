// Package config loads the agent configuration from defaults, an optional
// YAML file, DESKPILOT_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	pkgerrors "github.com/deskpilot/deskpilot/pkg/errors"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "DESKPILOT"

// DefaultConfigName is the config file searched for when none is given.
const DefaultConfigName = "deskpilot"

// Keys that are also bound to command-line flags.
const (
	KeyConfigFile   = "config"
	KeyModel        = "model"
	KeyVoice        = "voice"
	KeyMode         = "mode"
	KeyVerbose      = "verbose"
	KeyTranscribe   = "transcribe"
	KeyToolsDir     = "tools_dir"
	KeyMetricsAddr  = "metrics_addr"
	KeyOTLPEndpoint = "otlp_endpoint"
	KeyCameraDevice = "video.camera_device"
)

// Config is the complete agent configuration.
type Config struct {
	Model             string `mapstructure:"model"`
	Voice             string `mapstructure:"voice"`
	APIKey            string `mapstructure:"api_key"`
	Mode              string `mapstructure:"mode"`
	SystemInstruction string `mapstructure:"system_instruction"`
	Verbose           bool   `mapstructure:"verbose"`

	// Transcribe enables input and output transcription of spoken turns.
	Transcribe bool `mapstructure:"transcribe"`

	Audio       AudioConfig       `mapstructure:"audio"`
	Video       VideoConfig       `mapstructure:"video"`
	Queues      QueueConfig       `mapstructure:"queues"`
	Compression CompressionConfig `mapstructure:"compression"`

	// ToolsDir holds extra tool manifests that add to or override the
	// built-in catalog.
	ToolsDir string `mapstructure:"tools_dir"`

	WeatherAPIKey string `mapstructure:"weather_api_key"`
	NewsAPIKey    string `mapstructure:"news_api_key"`

	// MetricsAddr enables the Prometheus exporter when set, e.g. ":9090".
	MetricsAddr string `mapstructure:"metrics_addr"`

	// OTLPEndpoint enables trace export when set.
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// AudioConfig describes the PCM streams. Rates are in Hz.
type AudioConfig struct {
	SendRate    int `mapstructure:"send_rate"`
	RecvRate    int `mapstructure:"recv_rate"`
	Channels    int `mapstructure:"channels"`
	ChunkFrames int `mapstructure:"chunk_frames"`
}

// VideoConfig configures camera and screen capture.
type VideoConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	MaxWidth     int           `mapstructure:"max_width"`
	MaxHeight    int           `mapstructure:"max_height"`
	Quality      int           `mapstructure:"quality"`
	CameraDevice string        `mapstructure:"camera_device"`
}

// QueueConfig sets the bounded queue capacities.
type QueueConfig struct {
	Outbound int `mapstructure:"outbound"`
	Video    int `mapstructure:"video"`
}

// CompressionConfig configures context-window compression, in tokens.
type CompressionConfig struct {
	Trigger int `mapstructure:"trigger"`
	Target  int `mapstructure:"target"`
}

var validModes = []string{"camera", "screen", "none"}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyModel, "models/gemini-2.5-flash-native-audio-preview-12-2025")
	v.SetDefault(KeyVoice, "Charon")
	v.SetDefault("api_key", "")
	v.SetDefault(KeyMode, "screen")
	v.SetDefault("system_instruction", DefaultSystemInstruction)
	v.SetDefault(KeyVerbose, false)
	v.SetDefault(KeyTranscribe, false)

	v.SetDefault("audio.send_rate", 16000)
	v.SetDefault("audio.recv_rate", 24000)
	v.SetDefault("audio.channels", 1)
	v.SetDefault("audio.chunk_frames", 1024)

	v.SetDefault("video.interval", time.Second)
	v.SetDefault("video.max_width", 1920)
	v.SetDefault("video.max_height", 1080)
	v.SetDefault("video.quality", 85)
	v.SetDefault(KeyCameraDevice, "")

	v.SetDefault("queues.outbound", 5)
	v.SetDefault("queues.video", 2)

	v.SetDefault("compression.trigger", 32000)
	v.SetDefault("compression.target", 32000)

	v.SetDefault(KeyToolsDir, "")
	v.SetDefault("weather_api_key", "")
	v.SetDefault("news_api_key", "")
	v.SetDefault(KeyMetricsAddr, "")
	v.SetDefault(KeyOTLPEndpoint, "")
}

// Load builds the configuration held by v. Flags should already be bound to
// v with BindPFlag; they take precedence over the environment. A .env file in
// the working directory is loaded first when present.
func Load(v *viper.Viper) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, pkgerrors.New(pkgerrors.ComponentConfig, "Load", fmt.Errorf("read .env: %w", err))
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The well-known provider variables are accepted without the prefix.
	_ = v.BindEnv("api_key", EnvPrefix+"_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY")
	_ = v.BindEnv("weather_api_key", EnvPrefix+"_WEATHER_API_KEY", "WEATHER_API_KEY")
	_ = v.BindEnv("news_api_key", EnvPrefix+"_NEWS_API_KEY", "NEWS_API_KEY")

	if err := readConfigFile(v); err != nil {
		return nil, pkgerrors.New(pkgerrors.ComponentConfig, "Load", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, pkgerrors.New(pkgerrors.ComponentConfig, "Load", fmt.Errorf("unmarshal config: %w", err))
	}
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	return &cfg, nil
}

// readConfigFile reads the explicitly configured file, or searches the working
// directory and the user config directory. Only an explicit file must exist.
func readConfigFile(v *viper.Viper) error {
	if file := v.GetString(KeyConfigFile); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", file, err)
		}
		return nil
	}

	v.SetConfigName(DefaultConfigName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, DefaultConfigName))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config file: %w", err)
		}
	}
	return nil
}

// Validate checks that the configuration can start a session.
func (c *Config) Validate() error {
	var errs []string

	if c.APIKey == "" {
		errs = append(errs, "api_key is required (set GEMINI_API_KEY or GOOGLE_API_KEY)")
	}
	if c.Model == "" {
		errs = append(errs, "model is required")
	}
	if !slices.Contains(validModes, c.Mode) {
		errs = append(errs, fmt.Sprintf("mode must be one of: %s", strings.Join(validModes, ", ")))
	}
	if c.Queues.Outbound <= 0 || c.Queues.Video <= 0 {
		errs = append(errs, "queue capacities must be positive")
	}
	if c.Video.Interval <= 0 {
		errs = append(errs, "video.interval must be positive")
	}
	if c.Video.Quality < 1 || c.Video.Quality > 100 {
		errs = append(errs, "video.quality must be between 1 and 100")
	}
	if c.Audio.SendRate <= 0 || c.Audio.RecvRate <= 0 || c.Audio.Channels <= 0 || c.Audio.ChunkFrames <= 0 {
		errs = append(errs, "audio settings must be positive")
	}
	if c.Compression.Trigger < 0 || c.Compression.Target < 0 {
		errs = append(errs, "compression token counts must not be negative")
	}

	if len(errs) > 0 {
		return pkgerrors.New(pkgerrors.ComponentConfig, "Validate", errors.New(strings.Join(errs, "; ")))
	}
	return nil
}
