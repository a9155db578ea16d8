package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap/zaptest"

	"github.com/neuroplastio/rmi4touch/internal/configsvc"
	"github.com/neuroplastio/rmi4touch/internal/devstore"
	"github.com/neuroplastio/rmi4touch/rmi4/controller"
)

func newTestAgent(t *testing.T) *Agent {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.DataDir = dir
	cfg.DeviceConfig = filepath.Join(dir, "device.yml")
	cfg.Transport = TransportSimulated
	a, err := NewAgent(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("failed to create agent: %v", err)
	}
	t.Cleanup(func() {
		if err := a.Close(); err != nil {
			t.Errorf("failed to close agent: %v", err)
		}
	})
	return a
}

func TestScan(t *testing.T) {
	a := newTestAgent(t)
	info, err := a.Scan()
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if info.Sensor != "F12" || info.MaxFingers != 10 {
		t.Errorf("unexpected device info %+v", info)
	}
	store, err := a.Store()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, err := store.Get("touch0")
	if err != nil {
		t.Fatalf("device not recorded: %v", err)
	}
	if rec.Transport != TransportSimulated || rec.Info.Firmware.ProductID == "" {
		t.Errorf("unexpected record %+v", rec)
	}
	if err := a.Reset(); err != nil {
		t.Errorf("reset failed: %v", err)
	}
}

func TestDeviceConfig(t *testing.T) {
	a := newTestAgent(t)
	cfg, err := a.DeviceConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Screen != controller.DefaultConfig().Screen {
		t.Errorf("expected default screen props, got %+v", cfg.Screen)
	}

	yml := "screen:\n  displayViewableWidth: 0\n"
	if err := os.WriteFile(a.config.DeviceConfig, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := a.DeviceConfig(); err == nil {
		t.Errorf("expected invalid config to be rejected")
	}

	yml = "buttons:\n  longPressMs: 900\n"
	if err := os.WriteFile(a.config.DeviceConfig, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = a.DeviceConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Buttons.LongPressMs != 900 || cfg.Buttons.AltButton != 1 {
		t.Errorf("unexpected buttons config %+v", cfg.Buttons)
	}
	desc, err := a.Descriptor()
	if err != nil || len(desc) == 0 {
		t.Errorf("unexpected descriptor %d bytes, %v", len(desc), err)
	}
}

func TestSettings(t *testing.T) {
	cfg := controller.DefaultConfig()
	cfg.Device.InterruptEnable = 0x14
	settings, err := Settings(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	values := make(map[string]any, len(settings))
	for i, s := range settings {
		if i > 0 && settings[i-1].Key >= s.Key {
			t.Errorf("settings not sorted at %s", s.Key)
		}
		values[s.Key] = s.Value
	}
	if v, ok := values[`Device\InterruptEnable`]; !ok || v != float64(0x14) {
		t.Errorf("unexpected interrupt enable %v", v)
	}
	if v, ok := values[`Buttons\LongPressMs`]; !ok || v != float64(1500) {
		t.Errorf("unexpected long press %v", v)
	}
	if _, ok := values["ReportQueueSize"]; !ok {
		t.Errorf("missing top-level setting in %v", values)
	}
}

func TestRunConfigServiceFailure(t *testing.T) {
	a := newTestAgent(t)
	errWatcher := errors.New("inotify unavailable")
	configSvc := configsvc.New(zaptest.NewLogger(t), configsvc.WithWatcher(func() (*fsnotify.Watcher, error) {
		return nil, errWatcher
	}))

	done := make(chan error, 1)
	go func() {
		done <- a.container.Invoke(func(reports *reportBus, store *devstore.Store, tr Transport) error {
			return a.run(context.Background(), configSvc, reports, store, tr)
		})
	}()
	select {
	case err := <-done:
		if !errors.Is(err, errWatcher) {
			t.Errorf("expected watcher error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not return after the config service failed")
	}
}
