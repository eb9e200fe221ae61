// Package main is the entry point of the gimbal tracker daemon. It loads
// the configuration, wires the core components (serial transport, control
// orchestrator, vision worker, dashboard monitor) and runs them until an
// interrupt arrives.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lasergimbal/internal/core"
	"lasergimbal/internal/model"
	"lasergimbal/internal/util"
)

func main() {
	util.SetupLogger()

	cfgPath := flag.String("c", "configs/config.yml", "path to configuration file")
	virtual := flag.Bool("virtual", false, "create a virtual serial pair instead of using real hardware")
	flag.Parse()

	log.Printf("[Main] Using config: %s", *cfgPath)

	cfg, err := model.Load(*cfgPath)
	if err != nil {
		log.Printf("[Main] using default configuration: %v", err)
	}

	if *virtual {
		mgr := util.NewSocatManager()
		if err := mgr.CreatePair("/tmp/ttyGimbal", "/tmp/ttyFirmware"); err != nil {
			log.Fatalf("virtual serial setup failed: %v", err)
		}
		defer mgr.Cleanup()
		// Give socat a moment to create the links.
		time.Sleep(300 * time.Millisecond)
		cfg.Serial.Port = "/tmp/ttyGimbal"
		log.Printf("[Main] virtual serial active, firmware side: /tmp/ttyFirmware")
	}

	sys, err := core.NewSystemWithConfig(cfg)
	if err != nil {
		log.Fatalf("failed to create system: %v", err)
	}

	if err := sys.StartAll(); err != nil {
		log.Fatalf("failed to start system: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("[Main] Shutting down...")
	sys.StopAll()
	log.Println("[Main] Stopped cleanly.")
}
