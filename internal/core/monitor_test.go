package core

import (
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"lasergimbal/internal/model"
)

func newTestSystem(t *testing.T) *System {
	t.Helper()
	cfg := model.Default()
	cfg.Dashboard.Addr = ":0"
	cfg.Dashboard.DBPath = filepath.Join(t.TempDir(), "presets.db")
	cfg.Recorder.Enabled = false

	sys, err := NewSystemWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewSystemWithConfig: %v", err)
	}
	t.Cleanup(sys.Monitor.Stop)
	return sys
}

func TestStatusSnapshot(t *testing.T) {
	sys := newTestSystem(t)

	rec := httptest.NewRecorder()
	sys.Monitor.handleStatus(rec, httptest.NewRequest("GET", "/api/status", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if out["connected"] != false {
		t.Errorf("connected = %v, want false", out["connected"])
	}
	if out["servo_x"] != 90.0 || out["servo_y"] != 90.0 {
		t.Errorf("position = (%v, %v), want (90, 90)", out["servo_x"], out["servo_y"])
	}
	if out["mode"] != string(model.ModeIdle) {
		t.Errorf("mode = %v, want IDLE", out["mode"])
	}
}

func TestControlRejectsUnknownAction(t *testing.T) {
	sys := newTestSystem(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/control", strings.NewReader(`{"action":"explode"}`))
	sys.Monitor.handleControl(rec, req)

	if rec.Code != 400 {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestControlSwitchesMode(t *testing.T) {
	sys := newTestSystem(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/control", strings.NewReader(`{"action":"mode","mode":"TRACKING"}`))
	sys.Monitor.handleControl(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := sys.Worker.Mode(); got != model.ModeTracking {
		t.Errorf("mode = %s, want TRACKING", got)
	}

	// Test mode runs no vision algorithm but status must still report it.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/api/control", strings.NewReader(`{"action":"mode","mode":"TEST"}`))
	sys.Monitor.handleControl(rec, req)
	if got := sys.Worker.Mode(); got != model.ModeTest {
		t.Errorf("mode = %s after TEST, want TEST", got)
	}

	rec = httptest.NewRecorder()
	sys.Monitor.handleStatus(rec, httptest.NewRequest("GET", "/api/status", nil))
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if out["mode"] != string(model.ModeTest) {
		t.Errorf("status mode = %v, want TEST", out["mode"])
	}
}

func TestPresetRoundTrip(t *testing.T) {
	sys := newTestSystem(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/presets", strings.NewReader(`{"name":"smooth","kp":0.5,"ki":0,"kd":0.1}`))
	sys.Monitor.handlePresets(rec, req)
	if rec.Code != 200 {
		t.Fatalf("save preset: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	sys.Monitor.handlePresets(rec, httptest.NewRequest("GET", "/api/presets", nil))
	if rec.Code != 200 {
		t.Fatalf("list presets: %d", rec.Code)
	}
	var presets []Preset
	if err := json.Unmarshal(rec.Body.Bytes(), &presets); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if len(presets) != 1 || presets[0].Name != "smooth" || presets[0].Kp != 0.5 {
		t.Errorf("presets = %+v", presets)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/api/presets/apply", strings.NewReader(`{"name":"smooth"}`))
	sys.Monitor.handlePresetApply(rec, req)
	if rec.Code != 200 {
		t.Errorf("apply preset: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/api/presets/apply", strings.NewReader(`{"name":"missing"}`))
	sys.Monitor.handlePresetApply(rec, req)
	if rec.Code != 404 {
		t.Errorf("apply missing preset: %d, want 404", rec.Code)
	}
}
