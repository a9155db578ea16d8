// Package buttons turns capacitive button samples into keyboard and
// consumer control reports.
package buttons

import (
	"sync"
	"time"

	"github.com/neuroplastio/rmi4touch/rmi4/report"
)

const (
	Count = 3

	DefaultLongPress = 1500 * time.Millisecond
	DefaultAltButton = 1
)

type Config struct {
	// LongPressMs is the one-shot timer delay armed on every press.
	LongPressMs uint32 `json:"longPressMs"`
	// AltButton synthesizes Alt+Tab when held past the long press delay.
	AltButton int `json:"altButton"`
	// LegacyPendingState selects the deprecated pending-state reporting.
	LegacyPendingState bool `json:"legacyPendingState"`
	// TouchArea maps touches below the display to buttons.
	TouchArea bool `json:"touchArea"`
}

func DefaultConfig() Config {
	return Config{
		LongPressMs: uint32(DefaultLongPress / time.Millisecond),
		AltButton:   DefaultAltButton,
	}
}

func (c Config) LongPress() time.Duration {
	if c.LongPressMs == 0 {
		return DefaultLongPress
	}
	return time.Duration(c.LongPressMs) * time.Millisecond
}

// Consumer usage reported for each button. Buttons 0 and 2 match the
// search and back keys of the pending-state model.
var consumerKeys = [Count]uint8{
	report.ConsumerSearch,
	report.ConsumerConfig,
	report.ConsumerBack,
}

// Timer is a started one-shot timer.
type Timer interface {
	Stop() bool
}

// AfterFunc starts a one-shot timer calling f after d.
type AfterFunc func(d time.Duration, f func()) Timer

func SystemAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Decode maps the raw F1A bitmap to button states. Reversed panels
// report button 0 in the highest bit.
func Decode(raw uint8, reversed bool) [Count]bool {
	var state [Count]bool
	for i := range state {
		bit := i
		if reversed {
			bit = Count - 1 - i
		}
		state[i] = raw&(1<<bit) != 0
	}
	return state
}

type expiry struct {
	button int
	gen    uint64
}

// Machine tracks per-button logical state. Timer expiries are posted and
// only applied by HandleExpired, so all state changes happen on the
// caller's goroutine.
type Machine struct {
	cfg       Config
	afterFunc AfterFunc
	notify    func()

	Physical     [Count]bool
	prevPhysical [Count]bool
	Logical      [Count]bool
	// AltHeld is set while the host sees Alt held after a long press.
	AltHeld bool

	timers [Count]Timer
	gen    [Count]uint64

	postMu sync.Mutex
	posted []expiry
}

// New creates a Machine. notify is called from the timer goroutine after
// an expiry was posted.
func New(cfg Config, afterFunc AfterFunc, notify func()) *Machine {
	if afterFunc == nil {
		afterFunc = SystemAfterFunc
	}
	if notify == nil {
		notify = func() {}
	}
	return &Machine{
		cfg:       cfg,
		afterFunc: afterFunc,
		notify:    notify,
	}
}

// Update replaces the physical state of all buttons and applies the edges.
func (m *Machine) Update(state [Count]bool, q *report.Queue) error {
	m.Physical = state
	return m.Apply(q)
}

// Apply processes edges between the previous and current physical state.
func (m *Machine) Apply(q *report.Queue) error {
	var firstErr error
	for i := 0; i < Count; i++ {
		down, was := m.Physical[i], m.prevPhysical[i]
		m.prevPhysical[i] = down
		switch {
		case down && !was:
			m.arm(i)
		case !down && was:
			m.stop(i)
			if !m.Logical[i] {
				if i == m.cfg.AltButton && m.AltHeld {
					m.AltHeld = false
					if err := q.Push(report.KeyboardReport(0, report.KeyNone)); err != nil && firstErr == nil {
						firstErr = err
					}
				}
				continue
			}
			m.Logical[i] = false
			if err := m.click(i, q); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (m *Machine) arm(button int) {
	m.stop(button)
	m.Logical[button] = true
	m.gen[button]++
	e := expiry{button: button, gen: m.gen[button]}
	m.timers[button] = m.afterFunc(m.cfg.LongPress(), func() {
		m.post(e)
	})
}

func (m *Machine) stop(button int) {
	if t := m.timers[button]; t != nil {
		t.Stop()
		m.timers[button] = nil
	}
}

func (m *Machine) post(e expiry) {
	m.postMu.Lock()
	m.posted = append(m.posted, e)
	m.postMu.Unlock()
	m.notify()
}

// Pending reports whether timer expiries wait for HandleExpired.
func (m *Machine) Pending() bool {
	m.postMu.Lock()
	defer m.postMu.Unlock()
	return len(m.posted) > 0
}

// HandleExpired applies posted timer expiries. Expiries of timers that
// were stopped or re-armed since are ignored.
func (m *Machine) HandleExpired(q *report.Queue) error {
	m.postMu.Lock()
	posted := m.posted
	m.posted = nil
	m.postMu.Unlock()

	var firstErr error
	for _, e := range posted {
		if e.gen != m.gen[e.button] || !m.Logical[e.button] {
			continue
		}
		m.Logical[e.button] = false
		m.timers[e.button] = nil
		var err error
		if e.button == m.cfg.AltButton {
			err = m.altTab(q)
		} else {
			err = m.click(e.button, q)
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stop cancels all running timers and drops posted expiries.
func (m *Machine) Stop() {
	for i := range m.timers {
		m.stop(i)
		m.gen[i]++
		m.Logical[i] = false
	}
	m.AltHeld = false
	m.postMu.Lock()
	m.posted = nil
	m.postMu.Unlock()
}

func (m *Machine) click(button int, q *report.Queue) error {
	if err := q.Push(report.ConsumerReport(consumerKeys[button])); err != nil {
		return err
	}
	return q.Push(report.ConsumerReport(0))
}

// altTab presses Alt+Tab and releases Tab only. Alt stays held so the
// host keeps its window switcher open until the button is released.
func (m *Machine) altTab(q *report.Queue) error {
	if err := q.Push(report.KeyboardReport(report.ModifierLeftAlt, report.KeyTab)); err != nil {
		return err
	}
	if err := q.Push(report.KeyboardReport(report.ModifierLeftAlt, report.KeyNone)); err != nil {
		return err
	}
	m.AltHeld = true
	return nil
}
