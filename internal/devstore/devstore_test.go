package devstore

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/neuroplastio/rmi4touch/rmi4/controller"
)

func TestStore(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store, err := Open(t.TempDir(), zaptest.NewLogger(t), func() time.Time { return now })
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	if _, err := store.Get("panel"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	info := controller.DeviceInfo{Sensor: "F12", MaxFingers: 10}
	rec, err := store.SaveDevice("panel", "i2c", info)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rec.FirstSeenAt.Equal(now) || rec.Info.MaxFingers != 10 {
		t.Errorf("unexpected record %+v", rec)
	}

	now = now.Add(time.Hour)
	status := controller.Status{ResetOccurred: true}
	if _, err := store.SaveCounters("panel", Counters{Services: 5, Reports: 3}, status); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, err = store.Get("panel")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Counters.Services != 5 || !rec.Info.Status.ResetOccurred || rec.Info.Sensor != "F12" {
		t.Errorf("unexpected record %+v", rec)
	}
	if !rec.LastSeenAt.Equal(now) || rec.FirstSeenAt.Equal(now) {
		t.Errorf("unexpected timestamps %v %v", rec.FirstSeenAt, rec.LastSeenAt)
	}

	if _, err := store.SaveDevice("spare", "simulated", info); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	records, err := store.List()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 || records[0].Name != "panel" || records[1].Name != "spare" {
		t.Errorf("unexpected records %+v", records)
	}
}
