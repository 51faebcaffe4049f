package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var configKeys = []string{
	"LISTEN_ADDR", "DATA_DIR", "CONTROLLER_URL", "RECONNECT_DELAY_MS", "SEND_INTERVAL_MS",
	"REFERENCE_RADIUS", "ACTIVATION_THRESHOLD_PX", "MOVE_THRESHOLD_PX", "LONG_PRESS_MS",
	"DOUBLE_TAP_MS", "REST_POLICY", "CAMERA_URL", "VIDEO_MODE", "FFMPEG_PATH", "FPS",
	"BITRATE_KBPS", "MJPEG_INTERVAL_MS",
}

// isolateEnv unsets every config key for the test and restores them afterwards.
func isolateEnv(t *testing.T, dataDir string) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
	t.Setenv("DATA_DIR", dataDir)
}

// writeFile writes content under dir.
func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

// TestLoad_RequiresControllerURL verifies the controller address is mandatory.
func TestLoad_RequiresControllerURL(t *testing.T) {
	isolateEnv(t, t.TempDir())
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "CONTROLLER_URL") {
		t.Fatalf("expected CONTROLLER_URL error, got %v", err)
	}
}

// TestLoad_Defaults verifies defaults apply when only the controller is set.
func TestLoad_Defaults(t *testing.T) {
	isolateEnv(t, t.TempDir())
	t.Setenv("CONTROLLER_URL", "ws://192.168.4.1:81/")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ReconnectDelayMs != 5000 || cfg.SendIntervalMs != 33 || cfg.ReferenceRadius != 120 {
		t.Fatalf("unexpected timing defaults %#v", cfg)
	}
	if cfg.LongPressMs != 1000 || cfg.DoubleTapMs != 300 || cfg.MoveThreshold != 20 || cfg.ActivationThreshold != 20 {
		t.Fatalf("unexpected gesture defaults %#v", cfg)
	}
	if cfg.RestPolicy != "send_all" || cfg.VideoMode != "mjpeg" {
		t.Fatalf("unexpected enum defaults %q %q", cfg.RestPolicy, cfg.VideoMode)
	}
}

// TestLoad_Layering verifies env beats .env, which beats the YAML file.
func TestLoad_Layering(t *testing.T) {
	dir := t.TempDir()
	isolateEnv(t, dir)
	writeFile(t, dir, FileName, "controller_url: ws://yaml.local/\nreference_radius: 60\nlong_press_ms: 800\nrest_policy: ignore_direction\n")
	writeFile(t, dir, ".env", "# robot\nexport LONG_PRESS_MS=900\nCAMERA_URL=\"http://cam.local:81/stream\"\n")
	t.Setenv("REFERENCE_RADIUS", "90")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ControllerURL != "ws://yaml.local/" {
		t.Fatalf("expected yaml controller url, got %q", cfg.ControllerURL)
	}
	if cfg.LongPressMs != 900 {
		t.Fatalf("expected .env to override yaml, got %d", cfg.LongPressMs)
	}
	if cfg.ReferenceRadius != 90 {
		t.Fatalf("expected env to override yaml, got %v", cfg.ReferenceRadius)
	}
	if cfg.CameraURL != "http://cam.local:81/stream" {
		t.Fatalf("expected unquoted camera url, got %q", cfg.CameraURL)
	}
	if cfg.RestPolicy != "ignore_direction" {
		t.Fatalf("expected yaml rest policy, got %q", cfg.RestPolicy)
	}
}

// TestLoad_RejectsBadValues verifies range and syntax errors are reported.
func TestLoad_RejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"CONTROLLER_URL":     "http://robot.local/",
		"RECONNECT_DELAY_MS": "0",
		"SEND_INTERVAL_MS":   "fast",
		"REFERENCE_RADIUS":   "-1",
		"REST_POLICY":        "sometimes",
		"CAMERA_URL":         "rtsp://cam/",
	}
	for key, value := range cases {
		isolateEnv(t, t.TempDir())
		t.Setenv("CONTROLLER_URL", "ws://robot.local/")
		t.Setenv(key, value)
		if _, err := Load(); err == nil {
			t.Fatalf("%s=%s: expected error", key, value)
		}
	}
}

// TestLoad_BadYAML verifies a malformed file is an error, not silently ignored.
func TestLoad_BadYAML(t *testing.T) {
	dir := t.TempDir()
	isolateEnv(t, dir)
	writeFile(t, dir, FileName, "fps: [nope\n")
	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}

// TestValidate_NormalizesVideoMode verifies unknown video modes fall back to mjpeg.
func TestValidate_NormalizesVideoMode(t *testing.T) {
	cfg := Defaults()
	cfg.ControllerURL = "wss://robot.example/ws"
	cfg.VideoMode = " WebRTC "
	if err := cfg.Validate(); err != nil || cfg.VideoMode != "webrtc" {
		t.Fatalf("expected webrtc, got %q (%v)", cfg.VideoMode, err)
	}
	cfg.VideoMode = "hls"
	if err := cfg.Validate(); err != nil || cfg.VideoMode != "mjpeg" {
		t.Fatalf("expected mjpeg fallback, got %q (%v)", cfg.VideoMode, err)
	}
}

// TestParseEnvLine covers comments, export prefixes and quoting.
func TestParseEnvLine(t *testing.T) {
	if _, _, ok := parseEnvLine("# comment"); ok {
		t.Fatalf("comment parsed")
	}
	if _, _, ok := parseEnvLine("novalue"); ok {
		t.Fatalf("line without = parsed")
	}
	key, value, ok := parseEnvLine(" export FPS = '15' ")
	if !ok || key != "FPS" || value != "15" {
		t.Fatalf("unexpected parse %q=%q (%v)", key, value, ok)
	}
}
