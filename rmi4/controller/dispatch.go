package controller

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/neuroplastio/rmi4touch/rmi4"
	"github.com/neuroplastio/rmi4touch/rmi4/buttons"
	"github.com/neuroplastio/rmi4touch/rmi4/report"
)

// ServiceInterrupts handles posted button timer expiries and one
// interrupt status snapshot. It returns the queued reports together with
// the status of the last serviced cause; reports may be returned along
// with an error.
func (c *Controller) ServiceInterrupts(mode report.InputMode) ([]report.Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil, fmt.Errorf("controller not started: %w", rmi4.ErrInvalidDeviceState)
	}

	status := rmi4.ErrNoData
	if c.buttons.Pending() {
		before := c.queue.Len()
		err := c.buttons.HandleExpired(c.queue)
		if err != nil {
			c.log.Error("Failed to report button timer", zap.Error(err))
		}
		if err != nil || c.queue.Len() > before {
			status = err
		}
	}

	if c.interruptStatus == 0 {
		irq, err := c.checkInterrupts()
		if err != nil {
			return c.queue.Drain(), err
		}
		c.interruptStatus = irq
	}
	if ignored := c.interruptStatus &^ rmi4.InterruptMask; ignored != 0 {
		c.log.Warn("Ignoring interrupt bits", zap.Uint8("bits", ignored))
		c.interruptStatus &= rmi4.InterruptMask
	}

	if c.interruptStatus&(rmi4.InterruptButton|rmi4.InterruptButtonReversed) != 0 {
		reversed := c.interruptStatus&rmi4.InterruptButtonReversed != 0
		status = c.serviceButtons(reversed)
		c.interruptStatus &^= rmi4.InterruptButton | rmi4.InterruptButtonReversed
		if status != nil {
			c.log.Error("Failed to service button event", zap.Error(status))
		}
	}
	if c.interruptStatus&rmi4.InterruptTouch != 0 {
		status = c.serviceTouch(mode)
		c.interruptStatus &^= rmi4.InterruptTouch
		switch {
		case errors.Is(status, rmi4.ErrNoData):
		case status != nil:
			c.log.Error("Failed to service touch event", zap.Error(status))
		}
	}

	reports := c.queue.Drain()
	if status == nil && c.opts.notifier != nil {
		c.opts.notifier.NotifyTouchActivity(c.tick())
	}
	return reports, status
}

func (c *Controller) serviceButtons(reversed bool) error {
	if !c.hasButtons {
		return fmt.Errorf("buttons: %w", rmi4.ErrNotImplemented)
	}
	raw, err := c.f1a.ReadData(c.router)
	if err != nil {
		return err
	}
	return c.updateButtons(buttons.Decode(raw, reversed))
}

func (c *Controller) updateButtons(state [buttons.Count]bool) error {
	c.physical = state
	if !c.cfg.Buttons.LegacyPendingState {
		return c.buttons.Update(state, c.queue)
	}
	for {
		more, err := c.legacy.Update(state, c.queue)
		if err != nil || !more {
			return err
		}
	}
}

func (c *Controller) serviceTouch(mode report.InputMode) error {
	if c.source == nil {
		return fmt.Errorf("touch sensor: %w", rmi4.ErrFunctionMissing)
	}
	scan, err := c.source.Read(c.router, c.cache)
	if err != nil {
		return err
	}
	c.cache.Reconcile(scan, c.source.MaxFingers(), c.opts.clock())
	total := c.cache.DownCount
	if total == 0 {
		return rmi4.ErrNoData
	}
	if mode != report.InputModeMultiTouch {
		return fmt.Errorf("input mode %s: %w", mode, rmi4.ErrNotImplemented)
	}
	return c.fillReports(total)
}
