package controller

import (
	"github.com/neuroplastio/rmi4touch/rmi4/report"
	"github.com/neuroplastio/rmi4touch/rmi4/screen"
)

// areaButtons maps a touch area to the button index reporting its usage.
var areaButtons = map[screen.Button]int{
	screen.ButtonSearch: 0,
	screen.ButtonStart:  1,
	screen.ButtonBack:   2,
}

// fillReports turns the down fingers into reports. With the touch area
// enabled, fingers over a button area drive the button state instead.
// The rest is sent two per report; the first report carries the count.
func (c *Controller) fillReports(total int) error {
	down := c.cache.Down()
	for i := range c.cache.IsKey {
		c.cache.IsKey[i] = false
	}
	keys := 0
	if c.cfg.Buttons.TouchArea {
		state := c.physical
		for i, slot := range down {
			s := c.cache.Slots[slot]
			button, ok := areaButtons[c.cfg.Screen.ButtonAt(s.X, s.Y)]
			if !ok {
				continue
			}
			c.cache.IsKey[i] = true
			keys++
			state[button] = s.Status.Present()
		}
		if keys > 0 {
			if err := c.updateButtons(state); err != nil {
				return err
			}
		}
	}

	remaining := total - keys
	next := 0
	first := true
	for remaining > 0 {
		t := report.Touch{ScanTime: c.cache.ScanTime}
		if first {
			t.ActualCount = uint8(remaining)
			first = false
		}
		for n := 0; n < report.ContactsPerReport && remaining > 0; next++ {
			if c.cache.IsKey[next] {
				continue
			}
			slot := down[next]
			s := c.cache.Slots[slot]
			x, y := c.cfg.Screen.Translate(s.X, s.Y)
			contact := report.Contact{ID: uint8(slot), X: x, Y: y}
			if s.Status.Present() {
				contact.Status = report.ContactTip
			}
			t.Contacts[n] = contact
			n++
			remaining--
		}
		if err := c.queue.Push(report.TouchReport(t)); err != nil {
			return err
		}
	}
	return nil
}
