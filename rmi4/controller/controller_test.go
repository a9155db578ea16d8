package controller

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/neuroplastio/rmi4touch/rmi4"
	"github.com/neuroplastio/rmi4touch/rmi4/buttons"
	"github.com/neuroplastio/rmi4touch/rmi4/f01"
	"github.com/neuroplastio/rmi4touch/rmi4/report"
	"github.com/neuroplastio/rmi4touch/rmi4/rmi4test"
)

type manualTimer struct {
	f       func()
	stopped bool
	fired   bool
}

type manualTimers struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (m *manualTimers) AfterFunc(_ time.Duration, f func()) buttons.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{f: f}
	m.timers = append(m.timers, t)
	return &stopper{m: m, t: t}
}

type stopper struct {
	m *manualTimers
	t *manualTimer
}

func (s *stopper) Stop() bool {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	active := !s.t.stopped && !s.t.fired
	s.t.stopped = true
	return active
}

// Fire runs every armed timer.
func (m *manualTimers) Fire() int {
	m.mu.Lock()
	var due []*manualTimer
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	m.mu.Unlock()
	for _, t := range due {
		t.f()
	}
	return len(due)
}

type harness struct {
	panel  *rmi4test.Panel
	ctrl   *Controller
	timers *manualTimers
	now    time.Duration
	ticks  []uint32
}

func newHarness(t *testing.T, cfg Config, opts ...rmi4test.PanelOption) *harness {
	h := &harness{
		panel:  rmi4test.NewPanel(opts...),
		timers: &manualTimers{},
	}
	h.ctrl = New(h.panel, cfg, zaptest.NewLogger(t),
		WithClock(func() time.Duration { return h.now }),
		WithAfterFunc(h.timers.AfterFunc),
		WithActivityNotifier(ActivityNotifierFunc(func(tick uint32) {
			h.ticks = append(h.ticks, tick)
		})))
	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("failed to start controller: %v", err)
	}
	return h
}

func (h *harness) service(causes byte) ([]report.Report, error) {
	h.now += 10 * time.Millisecond
	if causes != 0 {
		h.panel.Interrupt(causes)
	}
	return h.ctrl.ServiceInterrupts(report.InputModeMultiTouch)
}

func touchReport(count uint8, scanTime uint16, contacts ...report.Contact) report.Report {
	t := report.Touch{ActualCount: count, ScanTime: scanTime}
	copy(t.Contacts[:], contacts)
	return report.TouchReport(t)
}

func expectReports(t *testing.T, got []report.Report, expected ...report.Report) {
	t.Helper()
	if len(got) != len(expected) {
		t.Fatalf("expected %d reports %v, got %d %v", len(expected), expected, len(got), got)
	}
	for i := range got {
		if got[i] != expected[i] {
			t.Errorf("report %d: expected %s, got %s", i, expected[i], got[i])
		}
	}
}

func TestStart(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	info := h.ctrl.DeviceInfo()
	if len(info.Functions) != 5 {
		t.Fatalf("expected 5 functions, got %v", info.Functions)
	}
	if info.Sensor != "F12" || info.MaxFingers != 10 || info.Layout == nil {
		t.Errorf("unexpected sensor info %+v", info)
	}
	if info.Buttons == nil || info.Buttons.MaxButtonCount != 3 {
		t.Errorf("expected 3 buttons, got %+v", info.Buttons)
	}
	if info.Firmware.ProductID != rmi4test.ProductID {
		t.Errorf("unexpected firmware %+v", info.Firmware)
	}
	if info.PowerState != f01.PowerOperating.String() {
		t.Errorf("expected operating power state, got %s", info.PowerState)
	}
	ctrl := h.panel.Get(0, rmi4test.F01Control, f01.ControlSize)
	if ctrl[0] != 0x80 || ctrl[1] != rmi4test.IRQTouch|rmi4test.IRQButtons {
		t.Errorf("unexpected F01 control % x", ctrl)
	}
	if mode := h.panel.Get(0, rmi4test.ReportingControl, 1)[0]; mode&0x07 != 0 {
		t.Errorf("expected continuous reporting, got %#x", mode)
	}
}

func TestTouchSequence(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	reports, err := h.service(rmi4test.IRQTouch)
	if !errors.Is(err, rmi4.ErrNoData) || len(reports) != 0 {
		t.Fatalf("expected no data, got %v, %v", reports, err)
	}

	h.panel.Touch(0, 100, 200)
	reports, err = h.service(rmi4test.IRQTouch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectReports(t, reports, touchReport(1, 200,
		report.Contact{Status: report.ContactTip, ID: 0, X: 100, Y: 200}))

	h.panel.Touch(0, 105, 205)
	reports, err = h.service(rmi4test.IRQTouch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectReports(t, reports, touchReport(1, 300,
		report.Contact{Status: report.ContactTip, ID: 0, X: 105, Y: 205}))

	h.panel.Lift(0)
	reports, err = h.service(rmi4test.IRQTouch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectReports(t, reports, touchReport(1, 400,
		report.Contact{Status: 0, ID: 0, X: 105, Y: 205}))

	reports, err = h.service(rmi4test.IRQTouch)
	if !errors.Is(err, rmi4.ErrNoData) || len(reports) != 0 {
		t.Fatalf("expected no data after removal, got %v, %v", reports, err)
	}
	if len(h.ticks) != 3 {
		t.Errorf("expected 3 activity notifications, got %v", h.ticks)
	}
}

func TestTouchBatches(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.panel.Touch(4, 10, 10)
	h.panel.Touch(1, 20, 20)
	h.panel.Touch(7, 30, 30)
	reports, err := h.service(rmi4test.IRQTouch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectReports(t, reports,
		touchReport(3, 200,
			report.Contact{Status: report.ContactTip, ID: 1, X: 20, Y: 20},
			report.Contact{Status: report.ContactTip, ID: 4, X: 10, Y: 10}),
		touchReport(0, 200,
			report.Contact{Status: report.ContactTip, ID: 7, X: 30, Y: 30}),
	)
}

func TestLegacySensor(t *testing.T) {
	h := newHarness(t, DefaultConfig(), rmi4test.WithLegacySensor(), rmi4test.WithMaxFingers(5))
	if info := h.ctrl.DeviceInfo(); info.Sensor != "F11" || info.MaxFingers != 5 {
		t.Fatalf("unexpected sensor info %+v", info)
	}
	h.panel.Touch(2, 0x123, 0x456)
	reports, err := h.service(rmi4test.IRQTouch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectReports(t, reports, touchReport(1, 200,
		report.Contact{Status: report.ContactTip, ID: 2, X: 0x123, Y: 0x456}))
}

func TestQueueOverflow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReportQueueSize = 1
	h := newHarness(t, cfg)
	for slot := 0; slot < 3; slot++ {
		h.panel.Touch(slot, 10, 10)
	}
	reports, err := h.service(rmi4test.IRQTouch)
	if !errors.Is(err, rmi4.ErrOutOfMemory) {
		t.Fatalf("expected out of memory, got %v", err)
	}
	if len(reports) != 1 || reports[0].Touch.ActualCount != 3 {
		t.Errorf("expected the first report only, got %v", reports)
	}
	if len(h.ticks) != 0 {
		t.Errorf("failed service must not notify activity")
	}
}

func TestInputModeNotImplemented(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.panel.Touch(0, 10, 10)
	h.panel.Interrupt(rmi4test.IRQTouch)
	reports, err := h.ctrl.ServiceInterrupts(report.InputModeMouse)
	if !errors.Is(err, rmi4.ErrNotImplemented) || len(reports) != 0 {
		t.Fatalf("expected not implemented, got %v, %v", reports, err)
	}
	// The scan was still applied.
	if h.ctrl.cache.DownCount != 1 {
		t.Errorf("expected the finger to be tracked, got %d", h.ctrl.cache.DownCount)
	}
}

func TestButtonShortPress(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.panel.Buttons(0x02)
	reports, err := h.service(rmi4test.IRQButtons)
	if err != nil || len(reports) != 0 {
		t.Fatalf("expected no reports on press, got %v, %v", reports, err)
	}
	h.panel.Buttons(0x00)
	reports, err = h.service(rmi4test.IRQButtons)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectReports(t, reports,
		report.ConsumerReport(report.ConsumerConfig),
		report.ConsumerReport(0))
	if h.timers.Fire() != 0 {
		t.Errorf("expected the timer to be stopped")
	}
}

func TestButtonLongPress(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.panel.Buttons(0x02)
	if _, err := h.service(rmi4test.IRQButtons); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.timers.Fire() != 1 {
		t.Fatalf("expected one armed timer")
	}
	select {
	case <-h.ctrl.Timers():
	default:
		t.Fatalf("expected a timer wake-up")
	}
	reports, err := h.service(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectReports(t, reports,
		report.KeyboardReport(report.ModifierLeftAlt, report.KeyTab),
		report.KeyboardReport(report.ModifierLeftAlt, report.KeyNone))

	h.panel.Buttons(0x00)
	reports, err = h.service(rmi4test.IRQButtons)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectReports(t, reports, report.KeyboardReport(0, report.KeyNone))
}

func TestReversedButtons(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.panel.Buttons(0x04)
	if _, err := h.service(rmi4test.IRQButtons | rmi4.InterruptButtonReversed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.panel.Buttons(0x00)
	reports, err := h.service(rmi4.InterruptButtonReversed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectReports(t, reports,
		report.ConsumerReport(report.ConsumerSearch),
		report.ConsumerReport(0))
}

func TestLegacyPendingState(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Buttons.LegacyPendingState = true
	h := newHarness(t, cfg)
	h.panel.Buttons(0x07)
	reports, err := h.service(rmi4test.IRQButtons)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectReports(t, reports,
		report.KeyboardReport(report.ModifierLeftGUI, report.KeyNone),
		report.ConsumerReport(report.ConsumerSearch|report.ConsumerBack))
}

func TestTouchArea(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Buttons.TouchArea = true
	h := newHarness(t, cfg)

	h.panel.Touch(0, 100, 1350)
	h.panel.Touch(1, 300, 400)
	reports, err := h.service(rmi4test.IRQTouch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectReports(t, reports, touchReport(1, 200,
		report.Contact{Status: report.ContactTip, ID: 1, X: 300, Y: 400}))

	h.panel.Lift(0)
	reports, err = h.service(rmi4test.IRQTouch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectReports(t, reports,
		report.ConsumerReport(report.ConsumerBack),
		report.ConsumerReport(0),
		touchReport(1, 300,
			report.Contact{Status: report.ContactTip, ID: 1, X: 300, Y: 400}))
}

func TestTouchAreaSearch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Buttons.TouchArea = true
	h := newHarness(t, cfg)

	h.panel.Touch(0, 600, 1350)
	reports, err := h.service(rmi4test.IRQTouch)
	if err != nil && !errors.Is(err, rmi4.ErrNoData) {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reports) != 0 {
		t.Fatalf("expected no reports while the key is held, got %v", reports)
	}

	h.panel.Lift(0)
	reports, err = h.service(rmi4test.IRQTouch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectReports(t, reports,
		report.ConsumerReport(report.ConsumerSearch),
		report.ConsumerReport(0))
}

func TestIgnoredInterrupts(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	reports, err := h.service(0x01)
	if !errors.Is(err, rmi4.ErrNoData) || len(reports) != 0 {
		t.Fatalf("expected no data, got %v, %v", reports, err)
	}
}

func TestUnconfiguredDevice(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	writes := len(h.panel.WritesTo(0, rmi4test.F01Control))
	h.panel.Status(0x80)
	if _, err := h.service(0); !errors.Is(err, rmi4.ErrNoData) {
		t.Fatalf("expected no data, got %v", err)
	}
	if got := len(h.panel.WritesTo(0, rmi4test.F01Control)); got != writes+1 {
		t.Errorf("expected the device to be reconfigured, got %d control writes", got-writes)
	}
	if h.ctrl.Status().Reconfigurations != 1 {
		t.Errorf("unexpected status %+v", h.ctrl.Status())
	}
}

func TestStatusLatch(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.panel.Status(0x02)
	h.service(0)
	h.panel.Status(0x09)
	h.service(0)
	h.panel.Status(0x40)
	h.service(0)
	s := h.ctrl.Status()
	expected := Status{
		InvalidConfiguration: true,
		UnknownStatus:        true,
		UnknownStatusCode:    9,
		FlashProgramming:     true,
	}
	if s != expected {
		t.Errorf("expected %+v, got %+v", expected, s)
	}
}

func TestStop(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.panel.Buttons(0x01)
	if _, err := h.service(rmi4test.IRQButtons); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h.ctrl.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.timers.Fire() != 0 {
		t.Errorf("expected timers to be stopped")
	}
	if _, err := h.ctrl.ServiceInterrupts(report.InputModeMultiTouch); !errors.Is(err, rmi4.ErrInvalidDeviceState) {
		t.Errorf("expected invalid state after stop, got %v", err)
	}
}

func TestReconfigure(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	cfg := DefaultConfig()
	cfg.Device.DozeInterval = 0x123
	if err := h.ctrl.Reconfigure(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := h.panel.Get(0, rmi4test.F01Control, f01.ControlSize); got[2] != 0x23 {
		t.Errorf("expected truncated doze interval, got % x", got)
	}
	cfg.Screen.DisplayViewableWidth = 0
	if err := h.ctrl.Reconfigure(cfg); !errors.Is(err, rmi4.ErrInvalidParameter) {
		t.Errorf("expected invalid parameter, got %v", err)
	}
}

func TestDescriptor(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	data, err := h.ctrl.Descriptor()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data) == 0 {
		t.Errorf("expected a report descriptor")
	}
}
