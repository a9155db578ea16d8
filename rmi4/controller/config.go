package controller

import (
	"fmt"

	"github.com/neuroplastio/rmi4touch/rmi4"
	"github.com/neuroplastio/rmi4touch/rmi4/buttons"
	"github.com/neuroplastio/rmi4touch/rmi4/f01"
	"github.com/neuroplastio/rmi4touch/rmi4/f11"
	"github.com/neuroplastio/rmi4touch/rmi4/report"
	"github.com/neuroplastio/rmi4touch/rmi4/screen"
)

// Config holds the logical settings applied on every configuration pass.
type Config struct {
	Device  f01.Settings   `json:"device"`
	Touch   f11.Settings   `json:"touch"`
	Screen  screen.Props   `json:"screen"`
	Buttons buttons.Config `json:"buttons"`
	// ReportQueueSize bounds the reports returned by one service call.
	ReportQueueSize int              `json:"reportQueueSize"`
	InputMode       report.InputMode `json:"inputMode"`
}

func DefaultConfig() Config {
	return Config{
		Device: f01.Settings{
			Configured: 1,
		},
		Touch: f11.Settings{
			SensorMaxXPos: screen.DefaultWidth,
			SensorMaxYPos: screen.DefaultHeight,
		},
		Screen:          screen.DefaultProps(),
		Buttons:         buttons.DefaultConfig(),
		ReportQueueSize: report.DefaultQueueSize,
		InputMode:       report.InputModeMultiTouch,
	}
}

func (c Config) Validate() error {
	if c.ReportQueueSize < 0 {
		return fmt.Errorf("negative report queue size %d: %w", c.ReportQueueSize, rmi4.ErrInvalidParameter)
	}
	if c.Buttons.AltButton < -1 || c.Buttons.AltButton >= buttons.Count {
		return fmt.Errorf("alt button %d out of range: %w", c.Buttons.AltButton, rmi4.ErrInvalidParameter)
	}
	if c.InputMode > report.InputModeMultiTouch {
		return fmt.Errorf("unknown input mode %d: %w", c.InputMode, rmi4.ErrInvalidParameter)
	}
	for name, v := range map[string]uint32{
		"displayViewableWidth":  c.Screen.DisplayViewableWidth,
		"displayViewableHeight": c.Screen.DisplayViewableHeight,
	} {
		if v == 0 || v > 0xFFFF {
			return fmt.Errorf("%s %d out of range: %w", name, v, rmi4.ErrInvalidParameter)
		}
	}
	return nil
}
