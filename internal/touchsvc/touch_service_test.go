package touchsvc

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/neuroplastio/rmi4touch/internal/devstore"
	"github.com/neuroplastio/rmi4touch/rmi4/controller"
	"github.com/neuroplastio/rmi4touch/rmi4/report"
	"github.com/neuroplastio/rmi4touch/rmi4/rmi4test"
)

type edgeAttention struct {
	edges chan struct{}
}

func (a *edgeAttention) WaitForEdge(timeout time.Duration) bool {
	select {
	case <-a.edges:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (a *edgeAttention) Asserted() bool {
	return false
}

type memRecorder struct {
	saved chan devstore.Counters
}

func (r *memRecorder) SaveCounters(name string, c devstore.Counters, _ controller.Status) (devstore.Record, error) {
	r.saved <- c
	return devstore.Record{Name: name, Counters: c}, nil
}

func start(t *testing.T, cfg controller.Config, opts ...Option) (*rmi4test.Panel, *Service, <-chan Batch, context.CancelFunc) {
	t.Helper()
	panel := rmi4test.NewPanel()
	ctrl := controller.New(panel, cfg, zaptest.NewLogger(t))
	batches := make(chan Batch, 8)
	publish := func(ctx context.Context, b Batch) {
		batches <- b
	}
	svc := New("panel", ctrl, publish, zaptest.NewLogger(t), opts...)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("service failed: %v", err)
		}
	})
	return panel, svc, batches, cancel
}

func nextBatch(t *testing.T, batches <-chan Batch) Batch {
	t.Helper()
	select {
	case b := <-batches:
		return b
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for reports")
	}
	return Batch{}
}

func TestAttentionEdge(t *testing.T) {
	attn := &edgeAttention{edges: make(chan struct{})}
	started := make(chan controller.DeviceInfo, 1)
	panel, svc, batches, _ := start(t, controller.DefaultConfig(),
		WithAttention(attn),
		WithStartHook(func(info controller.DeviceInfo) { started <- info }))

	select {
	case info := <-started:
		if info.Sensor != "F12" {
			t.Errorf("unexpected device info %+v", info)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for start")
	}

	panel.Touch(0, 100, 200)
	panel.Interrupt(rmi4test.IRQTouch)
	attn.edges <- struct{}{}

	b := nextBatch(t, batches)
	if b.Device != "panel" || len(b.Reports) != 1 {
		t.Fatalf("unexpected batch %+v", b)
	}
	c := b.Reports[0].Touch.Contacts[0]
	if c.Status != report.ContactTip || c.X != 100 || c.Y != 200 {
		t.Errorf("unexpected contact %+v", c)
	}
	if got := svc.Counters(); got.Services != 1 || got.Reports != 1 {
		t.Errorf("unexpected counters %+v", got)
	}
}

func TestPollAndButtonTimer(t *testing.T) {
	cfg := controller.DefaultConfig()
	cfg.Buttons.LongPressMs = 20
	panel, _, batches, _ := start(t, cfg, WithPollInterval(5*time.Millisecond))

	panel.Buttons(0x02)
	panel.Interrupt(rmi4test.IRQButtons)

	b := nextBatch(t, batches)
	expected := []report.Report{
		report.KeyboardReport(report.ModifierLeftAlt, report.KeyTab),
		report.KeyboardReport(report.ModifierLeftAlt, report.KeyNone),
	}
	if len(b.Reports) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, b.Reports)
	}
	for i := range expected {
		if b.Reports[i] != expected[i] {
			t.Errorf("report %d: expected %s, got %s", i, expected[i], b.Reports[i])
		}
	}
}

func TestInputModeAndFlush(t *testing.T) {
	rec := &memRecorder{saved: make(chan devstore.Counters, 1)}
	panel, svc, batches, cancel := start(t, controller.DefaultConfig(),
		WithPollInterval(5*time.Millisecond),
		WithRecorder(rec, 0))

	svc.SetInputMode(report.InputModeMouse)
	if svc.InputMode() != report.InputModeMouse {
		t.Fatalf("expected mouse mode")
	}
	panel.Touch(0, 10, 10)
	panel.Interrupt(rmi4test.IRQTouch)
	deadline := time.After(5 * time.Second)
	for svc.Counters().Errors == 0 {
		select {
		case b := <-batches:
			t.Fatalf("unexpected batch %+v", b)
		case <-deadline:
			t.Fatalf("timed out waiting for service")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case c := <-rec.saved:
		if c.Errors == 0 {
			t.Errorf("expected the error to be recorded, got %+v", c)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for counters to be saved")
	}
}
