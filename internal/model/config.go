// Package model defines the shared configuration and message structures used
// to initialize and run the gimbal tracker. Configuration is loaded from a
// YAML file; every field has an explicit default so a missing or corrupt file
// never stops the system.
package model

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the root structure loaded from configs/config.yml.
type Config struct {
	Serial    SerialConfig    `yaml:"serial"`
	Control   ControlConfig   `yaml:"control"`
	Vision    VisionConfig    `yaml:"vision"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Recorder  RecorderConfig  `yaml:"recorder"`
}

// SerialConfig holds parameters for the link to the motor controller.
type SerialConfig struct {
	Port          string `yaml:"port"`            // e.g. /dev/ttyUSB0 or COM3
	Baud          int    `yaml:"baud"`            // must match the STM32 firmware
	ReadTimeoutMs int    `yaml:"read_timeout_ms"` // bound on one telemetry poll; keep small, the loop alternates reads with writes
}

// ControlConfig holds PID gains, motion limits and control-loop scheduling.
type ControlConfig struct {
	Kp          float64 `yaml:"kp"`
	Ki          float64 `yaml:"ki"`
	Kd          float64 `yaml:"kd"`
	MaxIntegral float64 `yaml:"max_integral"` // anti-windup clamp

	TickMs            int     `yaml:"tick_ms"`             // control loop period
	WatchdogTimeoutMs int     `yaml:"watchdog_timeout_ms"` // stale-vision cutoff
	InvertX           bool    `yaml:"invert_x"`
	InvertY           bool    `yaml:"invert_y"`
	StepToDegree      float64 `yaml:"step_to_degree"`  // degrees moved per pulse
	DegreeToPulse     float64 `yaml:"degree_to_pulse"` // pulses per degree (manual moves)
	ManualStepDeg     float64 `yaml:"manual_step_deg"`

	ServoMinLimit float64 `yaml:"servo_min_limit"`
	ServoMaxLimit float64 `yaml:"servo_max_limit"`
	ServoCenter   float64 `yaml:"servo_center"`

	// Adaptive deadzone: below NearThreshold px of error magnitude the widest
	// deadzone applies, between Near and Far the middle one, beyond Far the
	// narrowest. Wide near the target kills oscillation, narrow far from it
	// keeps the response quick.
	DeadzoneNearThreshold float64 `yaml:"deadzone_near_threshold"`
	DeadzoneFarThreshold  float64 `yaml:"deadzone_far_threshold"`
	DeadzoneNear          float64 `yaml:"deadzone_near"`
	DeadzoneMid           float64 `yaml:"deadzone_mid"`
	DeadzoneFar           float64 `yaml:"deadzone_far"`

	// Adaptive speed tiers, outermost first. Error magnitude above a
	// threshold selects the matching per-tick step cap.
	SpeedVeryFastThreshold float64 `yaml:"speed_very_fast_threshold"`
	SpeedFastThreshold     float64 `yaml:"speed_fast_threshold"`
	SpeedMediumThreshold   float64 `yaml:"speed_medium_threshold"`
	MaxStepVeryFast        int     `yaml:"max_step_very_fast"`
	MaxStepFast            int     `yaml:"max_step_fast"`
	MaxStepMedium          int     `yaml:"max_step_medium"`
	MaxStepSlow            int     `yaml:"max_step_slow"`
}

// HSV is a single HSV bound. OpenCV hue range is 0-180.
type HSV struct {
	H float64 `yaml:"h" json:"h"`
	S float64 `yaml:"s" json:"s"`
	V float64 `yaml:"v" json:"v"`
}

// HSVRange is an inclusive lower/upper HSV window.
type HSVRange struct {
	Lower HSV `yaml:"lower" json:"lower"`
	Upper HSV `yaml:"upper" json:"upper"`
}

// VisionConfig holds camera and color segmentation parameters.
type VisionConfig struct {
	CameraID    int `yaml:"camera_id"`
	FrameWidth  int `yaml:"frame_width"`
	FrameHeight int `yaml:"frame_height"`
	CenterX     int `yaml:"center_x"`
	CenterY     int `yaml:"center_y"`

	// Red sits on both ends of the hue wheel, so the laser needs two windows.
	LaserRange1 HSVRange `yaml:"laser_range1"`
	LaserRange2 HSVRange `yaml:"laser_range2"`
	TargetRange HSVRange `yaml:"target_range"`

	KernelSize    int     `yaml:"kernel_size"`
	MinTargetArea float64 `yaml:"min_target_area"`
	MinLaserArea  float64 `yaml:"min_laser_area"` // laser dot is tiny, keep this low

	// BlueCentering mode: pixel deadzone around the frame center and the
	// magnitude-dependent error attenuation table.
	CenterDeadzone    float64 `yaml:"center_deadzone"`
	ScaleFarThreshold float64 `yaml:"scale_far_threshold"`
	ScaleMidThreshold float64 `yaml:"scale_mid_threshold"`
	ScaleFar          float64 `yaml:"scale_far"`
	ScaleMid          float64 `yaml:"scale_mid"`
	ScaleNear         float64 `yaml:"scale_near"`
}

// DashboardConfig configures the monitoring HTTP server.
type DashboardConfig struct {
	Addr   string `yaml:"addr"`    // e.g. ":8080", empty disables the server
	DBPath string `yaml:"db_path"` // bbolt file for PID presets
}

// RecorderConfig configures the CSV tuning-session recorder.
type RecorderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
	Session string `yaml:"session"`
}

// Default returns the built-in configuration, matching an MG996R gimbal on an
// STM32 controller with 600-2400 PWM pulses over 0-180 degrees.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:          "/dev/ttyUSB0",
			Baud:          9600,
			ReadTimeoutMs: 5,
		},
		Control: ControlConfig{
			Kp:          0.4,
			Ki:          0.0,
			Kd:          0.2,
			MaxIntegral: 100,

			TickMs:            25,
			WatchdogTimeoutMs: 1000,
			InvertX:           true,
			InvertY:           true,
			StepToDegree:      0.1,
			DegreeToPulse:     10,
			ManualStepDeg:     5,

			ServoMinLimit: 0,
			ServoMaxLimit: 180,
			ServoCenter:   90,

			DeadzoneNearThreshold: 40,
			DeadzoneFarThreshold:  80,
			DeadzoneNear:          30,
			DeadzoneMid:           20,
			DeadzoneFar:           10,

			SpeedVeryFastThreshold: 150,
			SpeedFastThreshold:     100,
			SpeedMediumThreshold:   60,
			MaxStepVeryFast:        20,
			MaxStepFast:            15,
			MaxStepMedium:          10,
			MaxStepSlow:            6,
		},
		Vision: VisionConfig{
			CameraID:    0,
			FrameWidth:  640,
			FrameHeight: 480,
			CenterX:     320,
			CenterY:     240,

			LaserRange1: HSVRange{Lower: HSV{0, 100, 100}, Upper: HSV{10, 255, 255}},
			LaserRange2: HSVRange{Lower: HSV{160, 100, 100}, Upper: HSV{180, 255, 255}},
			TargetRange: HSVRange{Lower: HSV{100, 150, 50}, Upper: HSV{140, 255, 255}},

			KernelSize:    5,
			MinTargetArea: 100,
			MinLaserArea:  5,

			CenterDeadzone:    15,
			ScaleFarThreshold: 150,
			ScaleMidThreshold: 80,
			ScaleFar:          0.40,
			ScaleMid:          0.55,
			ScaleNear:         0.65,
		},
		Dashboard: DashboardConfig{
			Addr:   ":8080",
			DBPath: "tmp/gimbal.db",
		},
		Recorder: RecorderConfig{
			Enabled: false,
			Dir:     "logs",
			Session: "pid_debug",
		},
	}
}

// Load reads a YAML configuration file, layering it over the defaults.
// A read or parse failure returns the defaults together with the error so the
// caller can log and continue.
func Load(path string) (*Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return Default(), fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
