package core

import (
	"log"
	"sync"

	"lasergimbal/internal/event"
	"lasergimbal/internal/gimbal"
	"lasergimbal/internal/model"
	"lasergimbal/internal/recorder"
	"lasergimbal/internal/transport"
	"lasergimbal/internal/vision"
)

// System manages the lifecycle of the main components: serial transport,
// control orchestrator, vision worker and dashboard monitor. It loads
// configuration from a YAML file and constructs the objects accordingly.
type System struct {
	cfg *model.Config

	Events  *event.Broadcaster
	Serial  *transport.Serial
	Orch    *gimbal.Orchestrator
	Worker  *vision.Worker
	Monitor *Monitor

	rec *recorder.Recorder

	started   bool
	startLock sync.Mutex
}

// NewSystem reads the YAML configuration at cfgPath and wires the system.
// A missing or corrupt configuration file falls back to defaults.
func NewSystem(cfgPath string) (*System, error) {
	cfg, err := model.Load(cfgPath)
	if err != nil {
		log.Printf("[system] using default configuration: %v", err)
	}
	return NewSystemWithConfig(cfg)
}

// NewSystemWithConfig wires the system from an in-memory configuration.
func NewSystemWithConfig(cfg *model.Config) (*System, error) {
	s := &System{cfg: cfg, Events: event.NewBroadcaster()}

	s.Serial = transport.New(cfg.Serial, s.Events)
	s.Orch = gimbal.NewOrchestrator(cfg.Control, s.Serial, s.Events)
	s.Worker = vision.NewWorker(cfg.Vision, s.Events, s.Orch.HandleVisionError)

	mon, err := NewMonitor(cfg.Dashboard, s.Events, s.Orch, s.Worker, s.Serial)
	if err != nil {
		return nil, err
	}
	s.Monitor = mon

	if cfg.Recorder.Enabled {
		rec, err := recorder.New(cfg.Recorder.Dir, cfg.Recorder.Session)
		if err != nil {
			log.Printf("[system] recorder disabled: %v", err)
		} else {
			s.rec = rec
			s.Orch.SetRecorder(rec)
		}
	}
	return s, nil
}

// StartAll starts every component. A serial connect or camera open failure
// is reported and the system keeps running; both are recoverable through
// the dashboard.
func (s *System) StartAll() error {
	s.startLock.Lock()
	defer s.startLock.Unlock()
	if s.started {
		return nil
	}

	s.Serial.Start()
	if err := s.Serial.Connect(s.cfg.Serial.Port, s.cfg.Serial.Baud); err != nil {
		log.Printf("[system] serial connect deferred: %v", err)
	}

	s.Orch.Start()

	if err := s.Worker.Start(); err != nil {
		log.Printf("[system] camera unavailable, vision disabled: %v", err)
		s.Events.Status("warning: camera unavailable")
	}

	s.Monitor.Start()

	s.started = true
	log.Printf("[system] all components started")
	return nil
}

// StopAll stops all running components gracefully, producers before the
// transport so no command is generated into a closed link.
func (s *System) StopAll() {
	s.startLock.Lock()
	defer s.startLock.Unlock()
	if !s.started {
		return
	}

	s.Worker.Stop()
	s.Orch.Stop()
	s.Serial.Stop()
	s.Monitor.Stop()
	if s.rec != nil {
		_ = s.rec.Close()
	}

	s.started = false
	log.Printf("[system] stopped")
}
