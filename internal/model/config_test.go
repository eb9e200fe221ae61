package model

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	if err == nil {
		t.Error("expected error for missing file")
	}
	if cfg == nil {
		t.Fatal("no fallback config returned")
	}
	if cfg.Control.Kp != 0.4 || cfg.Serial.Baud != 9600 {
		t.Errorf("fallback is not the default config: %+v", cfg)
	}
}

func TestLoadCorruptFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	if err := os.WriteFile(path, []byte("serial: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err == nil {
		t.Error("expected parse error")
	}
	if cfg.Control.ServoMaxLimit != 180 {
		t.Errorf("fallback is not the default config: %+v", cfg.Control)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yml")
	body := "control:\n  kp: 0.8\nserial:\n  port: COM7\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Control.Kp != 0.8 {
		t.Errorf("kp = %v, want overridden 0.8", cfg.Control.Kp)
	}
	if cfg.Serial.Port != "COM7" {
		t.Errorf("port = %q, want COM7", cfg.Serial.Port)
	}
	// Untouched fields keep their defaults.
	if cfg.Control.Kd != 0.2 || cfg.Vision.FrameWidth != 640 {
		t.Errorf("defaults lost: kd=%v width=%d", cfg.Control.Kd, cfg.Vision.FrameWidth)
	}
}
