// Package config loads runtime configuration for the robot remote.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultListenAddr          = "0.0.0.0:8080"
	defaultDataDir             = "./data"
	defaultReconnectDelayMs    = 5000
	defaultSendIntervalMs      = 33
	defaultReferenceRadius     = 120.0
	defaultActivationThreshold = 20.0
	defaultMoveThreshold       = 20.0
	defaultLongPressMs         = 1000
	defaultDoubleTapMs         = 300
	defaultRestPolicy          = "send_all"
	defaultVideoMode           = "mjpeg"
	defaultFFmpegPath          = "ffmpeg"
	defaultFPS                 = 20
	defaultBitrateKbps         = 1500
	defaultMJPEGIntervalMs     = 0

	// FileName is the optional YAML file read from the data directory.
	FileName = "owb.yaml"
)

// Config holds runtime configuration values.
type Config struct {
	ListenAddr          string  `yaml:"listen_addr"`
	DataDir             string  `yaml:"-"`
	ControllerURL       string  `yaml:"controller_url"`
	ReconnectDelayMs    int     `yaml:"reconnect_delay_ms"`
	SendIntervalMs      int     `yaml:"send_interval_ms"`
	ReferenceRadius     float64 `yaml:"reference_radius"`
	ActivationThreshold float64 `yaml:"activation_threshold_px"`
	MoveThreshold       float64 `yaml:"move_threshold_px"`
	LongPressMs         int     `yaml:"long_press_ms"`
	DoubleTapMs         int     `yaml:"double_tap_ms"`
	RestPolicy          string  `yaml:"rest_policy"`
	CameraURL           string  `yaml:"camera_url"`
	VideoMode           string  `yaml:"video_mode"`
	FFmpegPath          string  `yaml:"ffmpeg_path"`
	FPS                 int     `yaml:"fps"`
	BitrateKbps         int     `yaml:"bitrate_kbps"`
	MJPEGIntervalMs     int     `yaml:"mjpeg_interval_ms"`
}

// Defaults returns the built-in configuration without reading files or the environment.
func Defaults() Config {
	return Config{
		ListenAddr:          defaultListenAddr,
		DataDir:             defaultDataDir,
		ReconnectDelayMs:    defaultReconnectDelayMs,
		SendIntervalMs:      defaultSendIntervalMs,
		ReferenceRadius:     defaultReferenceRadius,
		ActivationThreshold: defaultActivationThreshold,
		MoveThreshold:       defaultMoveThreshold,
		LongPressMs:         defaultLongPressMs,
		DoubleTapMs:         defaultDoubleTapMs,
		RestPolicy:          defaultRestPolicy,
		VideoMode:           defaultVideoMode,
		FFmpegPath:          defaultFFmpegPath,
		FPS:                 defaultFPS,
		BitrateKbps:         defaultBitrateKbps,
		MJPEGIntervalMs:     defaultMJPEGIntervalMs,
	}
}

// Load reads configuration from DATA_DIR/owb.yaml, DATA_DIR/.env and environment variables,
// later sources overriding earlier ones.
func Load() (Config, error) {
	cfg := Defaults()
	cfg.DataDir = envString("DATA_DIR", cfg.DataDir)

	if err := loadYAMLFile(filepath.Join(cfg.DataDir, FileName), &cfg); err != nil {
		return Config{}, err
	}
	if err := loadEnvFile(filepath.Join(cfg.DataDir, ".env")); err != nil {
		return Config{}, err
	}

	cfg.ListenAddr = envString("LISTEN_ADDR", cfg.ListenAddr)
	cfg.ControllerURL = envString("CONTROLLER_URL", cfg.ControllerURL)
	cfg.RestPolicy = envString("REST_POLICY", cfg.RestPolicy)
	cfg.CameraURL = envString("CAMERA_URL", cfg.CameraURL)
	cfg.VideoMode = envString("VIDEO_MODE", cfg.VideoMode)
	cfg.FFmpegPath = envString("FFMPEG_PATH", cfg.FFmpegPath)

	ints := []struct {
		key string
		dst *int
	}{
		{"RECONNECT_DELAY_MS", &cfg.ReconnectDelayMs},
		{"SEND_INTERVAL_MS", &cfg.SendIntervalMs},
		{"LONG_PRESS_MS", &cfg.LongPressMs},
		{"DOUBLE_TAP_MS", &cfg.DoubleTapMs},
		{"FPS", &cfg.FPS},
		{"BITRATE_KBPS", &cfg.BitrateKbps},
		{"MJPEG_INTERVAL_MS", &cfg.MJPEGIntervalMs},
	}
	for _, item := range ints {
		value, err := envInt(item.key, *item.dst)
		if err != nil {
			return Config{}, err
		}
		*item.dst = value
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"REFERENCE_RADIUS", &cfg.ReferenceRadius},
		{"ACTIVATION_THRESHOLD_PX", &cfg.ActivationThreshold},
		{"MOVE_THRESHOLD_PX", &cfg.MoveThreshold},
	}
	for _, item := range floats {
		value, err := envFloat(item.key, *item.dst)
		if err != nil {
			return Config{}, err
		}
		*item.dst = value
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and required values, normalizing enum spellings in place.
func (c *Config) Validate() error {
	if c.ControllerURL == "" {
		return errors.New("CONTROLLER_URL is required")
	}
	u, err := url.Parse(c.ControllerURL)
	if err != nil {
		return fmt.Errorf("CONTROLLER_URL is invalid: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("CONTROLLER_URL must use ws:// or wss://")
	}
	if u.Host == "" {
		return fmt.Errorf("CONTROLLER_URL must include a host")
	}
	if c.CameraURL != "" {
		cu, err := url.Parse(c.CameraURL)
		if err != nil || (cu.Scheme != "http" && cu.Scheme != "https") {
			return fmt.Errorf("CAMERA_URL must be an http(s) url")
		}
	}

	if c.ReconnectDelayMs <= 0 {
		return fmt.Errorf("RECONNECT_DELAY_MS must be > 0")
	}
	if c.SendIntervalMs <= 0 {
		return fmt.Errorf("SEND_INTERVAL_MS must be > 0")
	}
	if c.ReferenceRadius <= 0 {
		return fmt.Errorf("REFERENCE_RADIUS must be > 0")
	}
	if c.ActivationThreshold <= 0 {
		return fmt.Errorf("ACTIVATION_THRESHOLD_PX must be > 0")
	}
	if c.MoveThreshold <= 0 {
		return fmt.Errorf("MOVE_THRESHOLD_PX must be > 0")
	}
	if c.LongPressMs <= 0 {
		return fmt.Errorf("LONG_PRESS_MS must be > 0")
	}
	if c.DoubleTapMs <= 0 {
		return fmt.Errorf("DOUBLE_TAP_MS must be > 0")
	}
	if c.FPS <= 0 {
		return fmt.Errorf("FPS must be > 0")
	}
	if c.BitrateKbps <= 0 {
		return fmt.Errorf("BITRATE_KBPS must be > 0")
	}
	if c.MJPEGIntervalMs < 0 {
		return fmt.Errorf("MJPEG_INTERVAL_MS must be >= 0")
	}

	switch strings.ToLower(strings.TrimSpace(c.RestPolicy)) {
	case "", "send_all":
		c.RestPolicy = "send_all"
	case "ignore_direction":
		c.RestPolicy = "ignore_direction"
	default:
		return fmt.Errorf("REST_POLICY must be send_all or ignore_direction")
	}
	c.VideoMode = normalizeVideoMode(c.VideoMode)
	return nil
}

// normalizeVideoMode ensures a supported video mode value.
func normalizeVideoMode(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "webrtc":
		return "webrtc"
	default:
		return "mjpeg"
	}
}

// loadYAMLFile overlays values from a YAML file onto cfg. A missing file is not an error.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// envString returns an env override when present, otherwise a default.
func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envInt returns an int env override when present, otherwise a default.
func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return value, nil
}

// envFloat returns a float env override when present, otherwise a default.
func envFloat(key string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return value, nil
}

// loadEnvFile loads KEY=VALUE pairs from a .env file without overriding the environment.
func loadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := parseEnvLine(line)
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); !exists {
			if err := os.Setenv(key, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// parseEnvLine parses a single .env line into key/value.
func parseEnvLine(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
	key, value, found := strings.Cut(line, "=")
	if !found {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}
	return key, strings.Trim(strings.TrimSpace(value), `"'`), true
}
