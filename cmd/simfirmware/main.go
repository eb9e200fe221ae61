// Package main simulates the STM32 gimbal firmware on a serial port. It
// parses step commands, tracks per-axis PWM pulse positions and answers
// each accepted command with a telemetry line, so the full daemon stack can
// be exercised against a virtual serial pair.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"lasergimbal/internal/device"
	"lasergimbal/internal/model"
	"lasergimbal/internal/protocol"
	"lasergimbal/internal/util"
)

// PWM pulse range of the simulated servos, 600-2400 over 0-180 degrees.
const (
	pulseMin    = 600
	pulseMax    = 2400
	pulseCenter = 1500
)

func clamp(v int) int {
	if v < pulseMin {
		return pulseMin
	}
	if v > pulseMax {
		return pulseMax
	}
	return v
}

func main() {
	util.SetupLogger()

	port := flag.String("p", "/tmp/ttyFirmware", "serial port to listen on")
	baud := flag.Int("b", 9600, "baud rate")
	flag.Parse()

	dev, err := device.NewSerialDevice(*port, *baud)
	if err != nil {
		log.Fatalf("open %s: %v", *port, err)
	}
	defer dev.Close()
	log.Printf("[firmware] listening on %s @ %d", *port, *baud)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	lines := make(chan string)
	go func() {
		for {
			line, err := dev.ReadLine(0)
			if err != nil {
				log.Printf("[firmware] read: %v", err)
				close(lines)
				return
			}
			lines <- line
		}
	}()

	pos := map[model.Axis]int{model.AxisX: pulseCenter, model.AxisY: pulseCenter}
	for {
		select {
		case <-stop:
			log.Printf("[firmware] shutting down")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			cmd, err := protocol.Parse(line)
			if err != nil {
				log.Printf("[firmware] bad command: %v", err)
				_ = dev.WriteLine("err parse")
				continue
			}
			pos[cmd.Axis] = clamp(pos[cmd.Axis] + cmd.Delta)
			reply := fmt.Sprintf("ok %s %d", cmd.Axis, pos[cmd.Axis])
			if err := dev.WriteLine(reply); err != nil {
				log.Printf("[firmware] write: %v", err)
			}
		}
	}
}
