// Package i2cbus connects an RMI4 controller over I2C with periph.io and
// watches its attention line.
package i2cbus

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const DefaultAddress = 0x2C

type Config struct {
	// Bus is the periph bus name, e.g. "1" or "/dev/i2c-1". Empty selects
	// the first bus.
	Bus     string `json:"bus"`
	Address uint16 `json:"address"`
	// Attention is the GPIO name of the active-low attention line. Empty
	// disables edge wakeups.
	Attention string `json:"attention"`
}

var initOnce = sync.OnceValue(func() error {
	_, err := host.Init()
	return err
})

// Device implements rmi4.Bus. RMI4 over I2C addresses registers with a
// single byte within the selected page.
type Device struct {
	log *zap.Logger
	dev *i2c.Dev
	// 1 address byte plus the largest write; protected by mu.
	mu  sync.Mutex
	buf []byte
}

func New(bus i2c.Bus, addr uint16, log *zap.Logger) *Device {
	return &Device{
		log: log,
		dev: &i2c.Dev{Bus: bus, Addr: addr},
	}
}

func (d *Device) ReadRegisters(addr uint8, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.dev.Tx([]byte{addr}, buf); err != nil {
		d.log.Error("Register read failed", zap.Uint8("addr", addr), zap.Int("len", len(buf)), zap.Error(err))
		return fmt.Errorf("read %#02x: %w", addr, err)
	}
	return nil
}

func (d *Device) WriteRegisters(addr uint8, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buf = append(d.buf[:0], addr)
	d.buf = append(d.buf, buf...)
	if err := d.dev.Tx(d.buf, nil); err != nil {
		d.log.Error("Register write failed", zap.Uint8("addr", addr), zap.Int("len", len(buf)), zap.Error(err))
		return fmt.Errorf("write %#02x: %w", addr, err)
	}
	return nil
}

// Attention is the controller interrupt line.
type Attention struct {
	pin gpio.PinIn
}

func NewAttention(pin gpio.PinIn) (*Attention, error) {
	if err := pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return nil, fmt.Errorf("failed to configure attention pin %s: %w", pin, err)
	}
	return &Attention{pin: pin}, nil
}

// WaitForEdge blocks until the line is asserted or timeout passes.
func (a *Attention) WaitForEdge(timeout time.Duration) bool {
	return a.pin.WaitForEdge(timeout)
}

// Asserted reports whether the device still requests service.
func (a *Attention) Asserted() bool {
	return a.pin.Read() == gpio.Low
}

func (a *Attention) Close() error {
	return a.pin.Halt()
}

// Conn is an opened bus together with its optional attention line.
type Conn struct {
	*Device
	Attention *Attention
	closer    i2c.BusCloser
}

// Open initializes the host drivers and opens the configured bus.
func Open(cfg Config, log *zap.Logger) (*Conn, error) {
	if err := initOnce(); err != nil {
		return nil, fmt.Errorf("failed to initialize host drivers: %w", err)
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("failed to open i2c bus %q: %w", cfg.Bus, err)
	}
	addr := cfg.Address
	if addr == 0 {
		addr = DefaultAddress
	}
	c := &Conn{
		Device: New(bus, addr, log),
		closer: bus,
	}
	if cfg.Attention != "" {
		pin := gpioreg.ByName(cfg.Attention)
		if pin == nil {
			bus.Close()
			return nil, fmt.Errorf("attention pin %q not found", cfg.Attention)
		}
		c.Attention, err = NewAttention(pin)
		if err != nil {
			bus.Close()
			return nil, err
		}
	}
	log.Info("Opened I2C bus",
		zap.Stringer("bus", bus),
		zap.Uint16("address", addr),
		zap.String("attention", cfg.Attention))
	return c, nil
}

func (c *Conn) Close() error {
	if c.Attention != nil {
		c.Attention.Close()
	}
	return c.closer.Close()
}
