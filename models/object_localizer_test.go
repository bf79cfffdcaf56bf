package models

import (
	"strings"
	"testing"
)

func TestConfigValidateRequiredFields(t *testing.T) {
	cfg := &Config{DetectorName: "detector"}
	if _, _, err := cfg.Validate(""); err == nil || !strings.Contains(err.Error(), "camera_name") {
		t.Errorf("missing camera_name not rejected: %v", err)
	}

	cfg = &Config{CameraName: "cam"}
	if _, _, err := cfg.Validate(""); err == nil || !strings.Contains(err.Error(), "detector_name") {
		t.Errorf("missing detector_name not rejected: %v", err)
	}
}

func TestConfigValidateDefaults(t *testing.T) {
	cfg := &Config{CameraName: "cam", DetectorName: "detector"}
	deps, _, err := cfg.Validate("")
	if err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if cfg.TickPeriodS != 0.2 {
		t.Errorf("tick_period_s default: got %v, want 0.2", cfg.TickPeriodS)
	}
	if cfg.SensorPollHz != 15.0 {
		t.Errorf("sensor_poll_hz default: got %v, want 15", cfg.SensorPollHz)
	}
	if cfg.ColorSource != "color" || cfg.DepthSource != "depth" {
		t.Errorf("source defaults: got %q/%q", cfg.ColorSource, cfg.DepthSource)
	}
	if len(deps) != 2 || deps[0] != "cam" || deps[1] != "detector" {
		t.Errorf("implicit deps: got %v", deps)
	}
}

func TestConfigValidateRejectsNegativePeriods(t *testing.T) {
	cfg := &Config{CameraName: "cam", DetectorName: "detector", TickPeriodS: -1}
	if _, _, err := cfg.Validate(""); err == nil {
		t.Error("negative tick_period_s accepted")
	}

	cfg = &Config{CameraName: "cam", DetectorName: "detector", SensorPollHz: -5}
	if _, _, err := cfg.Validate(""); err == nil {
		t.Error("negative sensor_poll_hz accepted")
	}
}

func TestConfigValidateIntrinsics(t *testing.T) {
	cfg := &Config{
		CameraName:   "cam",
		DetectorName: "detector",
		Intrinsics:   &IntrinsicsConfig{Fx: 700, Fy: 700, Cx: 640, Cy: 360},
	}
	if _, _, err := cfg.Validate(""); err != nil {
		t.Errorf("valid intrinsics rejected: %v", err)
	}

	cfg.Intrinsics = &IntrinsicsConfig{Fx: 0, Fy: 700, Cx: 640, Cy: 360}
	if _, _, err := cfg.Validate(""); err == nil {
		t.Error("zero fx accepted")
	}
}

func TestIntrinsicsConfigParameters(t *testing.T) {
	ic := &IntrinsicsConfig{Fx: 1, Fy: 2, Cx: 3, Cy: 4}
	intr := ic.Parameters()
	if intr.Fx != 1 || intr.Fy != 2 || intr.Ppx != 3 || intr.Ppy != 4 {
		t.Errorf("parameters mismatch: %+v", intr)
	}
}
