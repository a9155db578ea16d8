package buttons

import "github.com/neuroplastio/rmi4touch/rmi4/report"

const pendingWaiting = 0x80

// Legacy reports button 1 as the left GUI key and buttons 0 and 2 as
// search and back, like Machine does. A button 0/2 change seen together with a button 1
// change is held back and reported by the next Update.
//
// Deprecated: use Machine.
type Legacy struct {
	prevPhysical [Count]bool
	PendingState uint8
}

// Update emits at most one report. It returns true when a held back
// report waits for the next call.
func (l *Legacy) Update(state [Count]bool, q *report.Queue) (bool, error) {
	if l.PendingState&pendingWaiting != 0 {
		keys := l.PendingState & 0x0F
		l.PendingState = 0
		return false, q.Push(report.ConsumerReport(keys))
	}
	prev := l.prevPhysical
	l.prevPhysical = state

	consumerChanged := state[0] != prev[0] || state[2] != prev[2]
	var keys uint8
	if state[0] {
		keys |= report.ConsumerSearch
	}
	if state[2] {
		keys |= report.ConsumerBack
	}
	if state[1] != prev[1] {
		var mods uint8
		if state[1] {
			mods = report.ModifierLeftGUI
		}
		if consumerChanged {
			l.PendingState |= keys | pendingWaiting
		}
		return consumerChanged, q.Push(report.KeyboardReport(mods, report.KeyNone))
	}
	if consumerChanged {
		return false, q.Push(report.ConsumerReport(keys))
	}
	return false, nil
}
