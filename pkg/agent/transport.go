package agent

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/neuroplastio/rmi4touch/internal/i2cbus"
	"github.com/neuroplastio/rmi4touch/internal/touchsvc"
	"github.com/neuroplastio/rmi4touch/pkg/registry"
	"github.com/neuroplastio/rmi4touch/rmi4"
	"github.com/neuroplastio/rmi4touch/rmi4/rmi4test"
)

const (
	TransportI2C       = "i2c"
	TransportSimulated = "simulated"
)

// Transport is an opened register bus. Attention is nil when the
// controller has to be polled.
type Transport struct {
	Bus       rmi4.Bus
	Attention touchsvc.Attention
	Close     func() error
}

func newTransports(log *zap.Logger) *registry.Registry[Transport, *zap.Logger] {
	r := registry.NewRegistry[Transport, *zap.Logger](log)
	r.Register(TransportI2C, openI2C)
	r.Register(TransportSimulated, openSimulated)
	return r
}

func openI2C(config json.RawMessage, log *zap.Logger) (Transport, error) {
	var cfg i2cbus.Config
	if err := json.Unmarshal(config, &cfg); err != nil {
		return Transport{}, err
	}
	conn, err := i2cbus.Open(cfg, log.Named("i2c"))
	if err != nil {
		return Transport{}, err
	}
	t := Transport{Bus: conn, Close: conn.Close}
	if conn.Attention != nil {
		t.Attention = conn.Attention
	}
	return t, nil
}

func openSimulated(config json.RawMessage, log *zap.Logger) (Transport, error) {
	var cfg SimConfig
	if err := json.Unmarshal(config, &cfg); err != nil {
		return Transport{}, err
	}
	var opts []rmi4test.PanelOption
	if cfg.LegacySensor {
		opts = append(opts, rmi4test.WithLegacySensor())
	}
	if cfg.MaxFingers > 0 {
		opts = append(opts, rmi4test.WithMaxFingers(cfg.MaxFingers))
	}
	log.Warn("Using simulated touch panel")
	return Transport{
		Bus:   rmi4test.NewPanel(opts...),
		Close: func() error { return nil },
	}, nil
}
