package controller

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/neuroplastio/rmi4touch/rmi4"
	"github.com/neuroplastio/rmi4touch/rmi4/f01"
)

// configure runs every function configurator. F11 failures abort, F12
// and F1A failures are logged and F01 is written last with the collected
// interrupt enable bits.
func (c *Controller) configure() error {
	var irqMask uint8
	c.source = nil
	c.hasButtons = false

	if c.f11 != nil {
		bit, err := c.f11.Configure(c.router, c.cfg.Touch)
		if err != nil {
			return fmt.Errorf("failed to configure F11: %w", err)
		}
		irqMask |= bit
		c.source = c.f11
	}
	if c.f12 != nil {
		bit, err := c.f12.Configure(c.router)
		if err != nil {
			c.log.Error("Failed to configure F12", zap.Error(err))
		} else {
			irqMask |= bit
			c.source = c.f12
		}
	}
	if c.f1a != nil {
		bit, err := c.f1a.Configure(c.router)
		if err != nil {
			c.log.Error("Failed to configure F1A", zap.Error(err))
		} else {
			irqMask |= bit
			c.hasButtons = true
		}
	}
	if c.f01 == nil {
		return fmt.Errorf("%s: %w", rmi4.FunctionDeviceControl, rmi4.ErrFunctionMissing)
	}
	settings := c.cfg.Device
	settings.InterruptEnable |= uint32(irqMask)
	power, err := c.f01.Configure(c.router, settings)
	if err != nil {
		return fmt.Errorf("failed to configure F01: %w", err)
	}
	c.power = power
	c.log.Debug("Functions configured",
		zap.Uint8("interruptEnable", uint8(settings.InterruptEnable)),
		zap.Stringer("power", power))
	return nil
}

// checkInterrupts reads the device status, latches error codes and
// returns the pending interrupt bits. An unconfigured device is
// reconfigured inline.
func (c *Controller) checkInterrupts() (uint8, error) {
	if c.f01 == nil {
		return 0, fmt.Errorf("%s: %w", rmi4.FunctionDeviceControl, rmi4.ErrFunctionMissing)
	}
	data, err := c.f01.ReadData(c.router)
	if err != nil {
		c.log.Error("Failed to read interrupt status", zap.Error(err))
		return 0, err
	}
	c.latch(data.Status)
	if data.Status.FlashProg {
		c.status.FlashProgramming = true
		c.log.Error("Device is in flash programming mode")
		return 0, nil
	}
	if data.Status.Unconfigured {
		c.log.Warn("Device is unconfigured, reconfiguring")
		c.status.Reconfigurations++
		if err := c.configure(); err != nil {
			c.log.Error("Failed to reconfigure device", zap.Error(err))
			return 0, err
		}
	}
	if data.Interrupts == 0 {
		c.log.Debug("No interrupt bits set")
	}
	return data.Interrupts, nil
}

func (c *Controller) latch(s f01.DeviceStatus) {
	switch s.Code {
	case f01.StatusOK:
	case f01.StatusResetOccurred:
		c.status.ResetOccurred = true
	case f01.StatusInvalidConfig:
		c.status.InvalidConfiguration = true
		c.log.Error("Device reports invalid configuration")
	case f01.StatusDeviceFailure:
		c.status.DeviceFailure = true
		c.log.Error("Device reports failure")
	default:
		c.status.UnknownStatus = true
		c.status.UnknownStatusCode = uint8(s.Code)
		c.log.Error("Device reports unknown status", zap.Stringer("status", s.Code))
	}
}
