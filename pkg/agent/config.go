package agent

import (
	"encoding/json"
	"time"

	"github.com/neuroplastio/rmi4touch/internal/i2cbus"
)

// Config is the agent startup configuration. It points to the device
// config file, which is the only file reloaded live.
type Config struct {
	DataDir      string `json:"dataDir"`
	DeviceConfig string `json:"deviceConfig"`
	// DeviceName keys the device record and the report bus.
	DeviceName string `json:"deviceName"`
	// Transport is "i2c" or "simulated".
	Transport    string        `json:"transport"`
	I2C          i2cbus.Config `json:"i2c"`
	Simulated    SimConfig     `json:"simulated"`
	PollInterval time.Duration `json:"pollInterval"`
	// FlushInterval is how often service counters are persisted.
	FlushInterval time.Duration `json:"flushInterval"`
	// UhidName names the virtual HID device. Empty disables it.
	UhidName string `json:"uhidName"`
}

type SimConfig struct {
	LegacySensor bool `json:"legacySensor"`
	MaxFingers   int  `json:"maxFingers"`
}

func DefaultConfig() Config {
	return Config{
		DeviceName:    "touch0",
		Transport:     TransportI2C,
		I2C:           i2cbus.Config{Address: i2cbus.DefaultAddress},
		Simulated:     SimConfig{MaxFingers: 10},
		FlushInterval: time.Minute,
		UhidName:      "RMI4 Touch Controller",
	}
}

func (c Config) transportConfig() (json.RawMessage, error) {
	switch c.Transport {
	case TransportSimulated:
		return json.Marshal(c.Simulated)
	default:
		return json.Marshal(c.I2C)
	}
}
