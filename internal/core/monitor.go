// Package core contains the runtime wiring and orchestration layer for the
// gimbal tracker: the System lifecycle manager and the Monitor dashboard
// server that external display collaborators connect to.
package core

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"
	"go.etcd.io/bbolt"

	"lasergimbal/internal/event"
	"lasergimbal/internal/gimbal"
	"lasergimbal/internal/model"
	"lasergimbal/internal/transport"
	"lasergimbal/internal/vision"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

const presetBucket = "pid_presets"

// Preset is a named PID gain set persisted across restarts.
type Preset struct {
	Name string  `json:"name"`
	Kp   float64 `json:"kp"`
	Ki   float64 `json:"ki"`
	Kd   float64 `json:"kd"`
}

// controlRequest is the dashboard's command envelope for /api/control.
type controlRequest struct {
	Action    string  `json:"action"` // enable, disable, set_pid, set_invert, mode, sync, manual, connect, disconnect
	Kp        float64 `json:"kp,omitempty"`
	Ki        float64 `json:"ki,omitempty"`
	Kd        float64 `json:"kd,omitempty"`
	InvertX   bool    `json:"invert_x,omitempty"`
	InvertY   bool    `json:"invert_y,omitempty"`
	Mode      string  `json:"mode,omitempty"`
	Axis      string  `json:"axis,omitempty"`
	Direction int     `json:"direction,omitempty"`
	Port      string  `json:"port,omitempty"`
	Baud      int     `json:"baud,omitempty"`
}

// Monitor serves the dashboard: a websocket event stream, the latest
// annotated frame and debug mask, a control API, and a PID preset store.
type Monitor struct {
	cfg    model.DashboardConfig
	events *event.Broadcaster
	orch   *gimbal.Orchestrator
	worker *vision.Worker
	serial *transport.Serial

	db     *bbolt.DB
	server *http.Server
}

// NewMonitor builds the dashboard server. With an empty address the monitor
// is inert; Start and Stop become no-ops.
func NewMonitor(cfg model.DashboardConfig, events *event.Broadcaster,
	orch *gimbal.Orchestrator, worker *vision.Worker, serial *transport.Serial) (*Monitor, error) {

	m := &Monitor{cfg: cfg, events: events, orch: orch, worker: worker, serial: serial}
	if cfg.Addr == "" {
		return m, nil
	}

	if cfg.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, err
		}
		db, err := bbolt.Open(cfg.DBPath, 0o666, &bbolt.Options{Timeout: time.Second})
		if err != nil {
			return nil, err
		}
		m.db = db
	}
	return m, nil
}

// Start launches the HTTP server in the background.
func (m *Monitor) Start() {
	if m.cfg.Addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", m.handleWS)
	mux.HandleFunc("/frame", m.handleFrame)
	mux.HandleFunc("/mask", m.handleMask)
	mux.HandleFunc("/api/status", m.handleStatus)
	mux.HandleFunc("/api/control", m.handleControl)
	mux.HandleFunc("/api/presets", m.handlePresets)
	mux.HandleFunc("/api/presets/apply", m.handlePresetApply)

	m.server = &http.Server{Addr: m.cfg.Addr, Handler: mux}
	go func() {
		log.Printf("[monitor] dashboard listening on %s", m.cfg.Addr)
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[monitor] server error: %v", err)
		}
	}()
}

// Stop shuts the HTTP server and the preset store down.
func (m *Monitor) Stop() {
	if m.server != nil {
		_ = m.server.Close()
	}
	if m.db != nil {
		_ = m.db.Close()
	}
}

// handleWS upgrades to websocket and forwards broadcast events as JSON
// until the client goes away.
func (m *Monitor) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	ch, unsub := m.events.Subscribe()
	done := make(chan struct{})

	// Reader only detects disconnect.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		defer func() {
			unsub()
			if err := conn.Close(); err != nil {
				log.Printf("[monitor] warning: websocket close: %v", err)
			}
		}()
		for {
			select {
			case <-done:
				return
			case ev := <-ch:
				if err := conn.WriteJSON(ev); err != nil {
					return
				}
			}
		}
	}()
}

func serveJPEG(w http.ResponseWriter, data []byte) {
	if data == nil {
		http.Error(w, "no frame yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	if _, err := w.Write(data); err != nil {
		log.Printf("[monitor] warning: frame write: %v", err)
	}
}

// handleFrame serves the latest annotated camera frame.
func (m *Monitor) handleFrame(w http.ResponseWriter, r *http.Request) {
	serveJPEG(w, m.worker.Frame())
}

// handleMask serves the latest segmentation debug mask.
func (m *Monitor) handleMask(w http.ResponseWriter, r *http.Request) {
	serveJPEG(w, m.worker.Mask())
}

// handleStatus reports a point-in-time snapshot of the system.
func (m *Monitor) handleStatus(w http.ResponseWriter, r *http.Request) {
	x, y := m.orch.Position()
	out := map[string]any{
		"connected": m.serial.Connected(),
		"mode":      m.worker.Mode(),
		"servo_x":   x,
		"servo_y":   y,
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		log.Printf("[monitor] warning: status encode: %v", err)
	}
}

// handleControl applies a dashboard command to the core.
func (m *Monitor) handleControl(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch req.Action {
	case "enable":
		m.orch.SetControlEnabled(true)
	case "disable":
		m.orch.SetControlEnabled(false)
	case "set_pid":
		m.orch.SetTunings(req.Kp, req.Ki, req.Kd)
	case "set_invert":
		m.orch.SetInvert(req.InvertX, req.InvertY)
	case "mode":
		mode := model.TrackingMode(req.Mode)
		if !mode.Valid() {
			http.Error(w, "unknown mode", http.StatusBadRequest)
			return
		}
		m.worker.SetMode(mode)
	case "sync":
		m.orch.SyncPosition()
	case "manual":
		axis := model.Axis(req.Axis)
		if axis != model.AxisX && axis != model.AxisY {
			http.Error(w, "unknown axis", http.StatusBadRequest)
			return
		}
		dir := req.Direction
		if dir >= 0 {
			dir = 1
		} else {
			dir = -1
		}
		m.orch.ManualMove(axis, dir)
	case "connect":
		if err := m.serial.Connect(req.Port, req.Baud); err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
	case "disconnect":
		m.serial.Disconnect()
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handlePresets lists (GET) or saves (POST) named PID gain sets.
func (m *Monitor) handlePresets(w http.ResponseWriter, r *http.Request) {
	if m.db == nil {
		http.Error(w, "preset store disabled", http.StatusNotImplemented)
		return
	}

	switch r.Method {
	case http.MethodGet:
		var presets []Preset
		err := m.db.View(func(tx *bbolt.Tx) error {
			b := tx.Bucket([]byte(presetBucket))
			if b == nil {
				return nil
			}
			return b.ForEach(func(k, v []byte) error {
				var p Preset
				if err := json.Unmarshal(v, &p); err == nil {
					presets = append(presets, p)
				}
				return nil
			})
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(presets); err != nil {
			log.Printf("[monitor] warning: preset encode: %v", err)
		}

	case http.MethodPost:
		var p Preset
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.Name == "" {
			http.Error(w, "invalid preset", http.StatusBadRequest)
			return
		}
		buf, _ := json.Marshal(p)
		err := m.db.Update(func(tx *bbolt.Tx) error {
			b, err := tx.CreateBucketIfNotExists([]byte(presetBucket))
			if err != nil {
				return err
			}
			return b.Put([]byte(p.Name), buf)
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		log.Printf("[monitor] preset %q saved", p.Name)
		w.WriteHeader(http.StatusOK)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handlePresetApply loads a stored preset and pushes its gains to both axes.
func (m *Monitor) handlePresetApply(w http.ResponseWriter, r *http.Request) {
	if m.db == nil {
		http.Error(w, "preset store disabled", http.StatusNotImplemented)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var p Preset
	found := false
	err := m.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(presetBucket))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(req.Name)); v != nil {
			found = json.Unmarshal(v, &p) == nil
		}
		return nil
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "no such preset", http.StatusNotFound)
		return
	}

	m.orch.SetTunings(p.Kp, p.Ki, p.Kd)
	m.events.Status("applied preset " + p.Name)
	w.WriteHeader(http.StatusOK)
}
