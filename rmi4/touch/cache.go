// Package touch reconciles raw per-scan finger samples into a stable,
// ordered list of contacts.
package touch

import (
	"fmt"
	"time"

	"github.com/neuroplastio/rmi4touch/pkg/bits"
	"github.com/neuroplastio/rmi4touch/rmi4"
)

const MaxSlots = rmi4.MaxTouches

// Status is the 2-bit finger state reported by the sensor.
type Status uint8

const (
	StatusNotPresent Status = iota
	StatusAccurate
	StatusInaccurate
	StatusReserved
)

func (s Status) Present() bool {
	return s != StatusNotPresent
}

type Slot struct {
	X      uint16 `json:"x"`
	Y      uint16 `json:"y"`
	Status Status `json:"status"`
}

// Scan is one decoded sensor sample indexed by hardware slot.
type Scan struct {
	Slots [MaxSlots]Slot
	// HoldPosition keeps the last known position of a slot that is no
	// longer reported down.
	HoldPosition bool
}

// Cache is the finger state of one controller. Removal of lifted fingers
// from the down order is deferred to the next scan.
type Cache struct {
	Slots     [MaxSlots]Slot
	Valid     bits.Bits
	Dirty     bits.Bits
	DownOrder [MaxSlots]int
	DownCount int
	ScanTime  uint16
	IsKey     [MaxSlots]bool
}

func NewCache() *Cache {
	return &Cache{
		Valid: bits.NewZero(MaxSlots),
		Dirty: bits.NewZero(MaxSlots),
	}
}

// Reset drops all tracked fingers.
func (c *Cache) Reset() {
	*c = Cache{
		Valid: bits.NewZero(MaxSlots),
		Dirty: bits.NewZero(MaxSlots),
	}
}

// Down returns the slots currently in report order.
func (c *Cache) Down() []int {
	return c.DownOrder[:c.DownCount]
}

// Reconcile applies one scan. Slots lifted in the previous scan are
// compacted out of the down order before new slots are appended, and no
// slot is inserted once maxFingers are down.
func (c *Cache) Reconcile(scan Scan, maxFingers int, now time.Duration) {
	if maxFingers > MaxSlots {
		maxFingers = MaxSlots
	}
	c.Dirty.Each(func(slot int) bool {
		c.remove(slot)
		c.Dirty.Clear(slot)
		return true
	})
	for slot := 0; slot < MaxSlots; slot++ {
		if !scan.Slots[slot].Status.Present() || c.Valid.IsSet(slot) {
			continue
		}
		if c.DownCount >= maxFingers {
			continue
		}
		c.Valid.Set(slot)
		c.DownOrder[c.DownCount] = slot
		c.DownCount++
	}
	for slot := 0; slot < MaxSlots; slot++ {
		if !c.Valid.IsSet(slot) {
			continue
		}
		raw := scan.Slots[slot]
		if !scan.HoldPosition || raw.Status.Present() {
			c.Slots[slot].X = raw.X
			c.Slots[slot].Y = raw.Y
		}
		c.Slots[slot].Status = raw.Status
		if !raw.Status.Present() {
			c.Dirty.Set(slot)
			c.Valid.Clear(slot)
		}
	}
	c.ScanTime = uint16(now / (100 * time.Microsecond))
}

func (c *Cache) remove(slot int) {
	for i := 0; i < c.DownCount; i++ {
		if c.DownOrder[i] != slot {
			continue
		}
		copy(c.DownOrder[i:c.DownCount], c.DownOrder[i+1:c.DownCount])
		c.DownCount--
		c.DownOrder[c.DownCount] = 0
		return
	}
}

// Check verifies the cache bookkeeping: every down slot is unique and
// either valid or awaiting removal, and valid slots are all down.
func (c *Cache) Check() error {
	if c.DownCount < 0 || c.DownCount > MaxSlots {
		return fmt.Errorf("down count %d out of range", c.DownCount)
	}
	seen := make(map[int]bool, c.DownCount)
	for _, slot := range c.Down() {
		if slot < 0 || slot >= MaxSlots {
			return fmt.Errorf("slot %d out of range", slot)
		}
		if seen[slot] {
			return fmt.Errorf("slot %d is down twice", slot)
		}
		seen[slot] = true
		if !c.Valid.IsSet(slot) && !c.Dirty.IsSet(slot) {
			return fmt.Errorf("slot %d is down but neither valid nor dirty", slot)
		}
	}
	var err error
	c.Valid.Each(func(slot int) bool {
		if !seen[slot] {
			err = fmt.Errorf("valid slot %d is not down", slot)
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	if c.DownCount != c.Valid.Count()+c.Dirty.Count() {
		return fmt.Errorf("down count %d, valid %d, dirty %d", c.DownCount, c.Valid.Count(), c.Dirty.Count())
	}
	return nil
}
