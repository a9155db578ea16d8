package rmi4

import (
	"errors"
	"testing"

	"github.com/neuroplastio/rmi4touch/rmi4/rmi4test"
)

func TestSelectPageSkipsCurrentPage(t *testing.T) {
	dev := rmi4test.NewDevice()
	r := NewPageRouter(dev)
	if err := r.SelectPage(0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(dev.Writes()); n != 0 {
		t.Fatalf("expected no writes, got %d", n)
	}
	if err := r.SelectPage(2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.SelectPage(2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	writes := dev.WritesTo(0, PageSelectAddress)
	if len(writes) != 1 || writes[0].Data[0] != 2 {
		t.Fatalf("expected a single page select write, got %v", writes)
	}
	if r.Page() != 2 || dev.Page() != 2 {
		t.Errorf("expected page 2, router %d device %d", r.Page(), dev.Page())
	}
}

func TestSelectPageFailureKeepsCache(t *testing.T) {
	dev := rmi4test.NewDevice()
	errBus := errors.New("nack")
	fail := true
	dev.WriteHook = func(page, addr uint8, data []byte) error {
		if fail {
			return errBus
		}
		return nil
	}
	r := NewPageRouter(dev)
	if err := r.SelectPage(1); !errors.Is(err, errBus) {
		t.Fatalf("expected bus error, got %v", err)
	}
	if r.Page() != 0 {
		t.Fatalf("page must not change on failure, got %d", r.Page())
	}
	fail = false
	if err := r.SelectPage(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dev.Writes()) != 1 {
		t.Errorf("expected retry to write the page select register")
	}
}

func TestSelectPageOutOfRange(t *testing.T) {
	r := NewPageRouter(rmi4test.NewDevice())
	if err := r.SelectPage(MaxPages); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected invalid parameter, got %v", err)
	}
}
