package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	os.Unsetenv(EnvConfigFile)
	os.Unsetenv(EnvPort)
	os.Unsetenv(EnvFrameRate)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port(), DefaultPort)
	}
	if cfg.FrameRate() != DefaultFrameRate {
		t.Errorf("FrameRate = %d, want %d", cfg.FrameRate(), DefaultFrameRate)
	}
	if cfg.Workers() < 1 {
		t.Errorf("Workers = %d, want >= 1", cfg.Workers())
	}
}

func TestPort_FromEnv(t *testing.T) {
	os.Setenv(EnvPort, "9999")
	defer os.Unsetenv(EnvPort)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Port())
	}
}

func TestPort_Invalid(t *testing.T) {
	os.Setenv(EnvPort, "not-a-port")
	defer os.Unsetenv(EnvPort)

	if _, err := New(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestFrameRate_Invalid(t *testing.T) {
	os.Setenv(EnvFrameRate, "0")
	defer os.Unsetenv(EnvFrameRate)

	if _, err := New(); err == nil {
		t.Fatal("expected error for zero frame rate")
	}
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "renderd.toml")
	content := "port = 8123\nlog_level = \"debug\"\nframe_rate = 24\nffmpeg = \"/opt/ffmpeg/bin/ffmpeg\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	os.Setenv(EnvConfigFile, path)
	defer os.Unsetenv(EnvConfigFile)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 8123 {
		t.Errorf("Port = %d, want 8123", cfg.Port())
	}
	if cfg.LogLevel() != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel())
	}
	if cfg.FrameRate() != 24 {
		t.Errorf("FrameRate = %d, want 24", cfg.FrameRate())
	}
	if cfg.FFmpegPath() != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("FFmpegPath = %q", cfg.FFmpegPath())
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "renderd.toml")
	if err := os.WriteFile(path, []byte("port = 8123\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	os.Setenv(EnvConfigFile, path)
	os.Setenv(EnvPort, "8456")
	defer os.Unsetenv(EnvConfigFile)
	defer os.Unsetenv(EnvPort)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 8456 {
		t.Errorf("Port = %d, want env override 8456", cfg.Port())
	}
}

func TestAuthToken_FromEnv(t *testing.T) {
	os.Setenv(EnvAuthToken, "secret-token")
	defer os.Unsetenv(EnvAuthToken)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AuthToken() != "secret-token" {
		t.Errorf("AuthToken = %q, want secret-token", cfg.AuthToken())
	}
}

func TestConfigFile_Missing(t *testing.T) {
	os.Setenv(EnvConfigFile, filepath.Join(t.TempDir(), "nope.toml"))
	defer os.Unsetenv(EnvConfigFile)

	if _, err := New(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
