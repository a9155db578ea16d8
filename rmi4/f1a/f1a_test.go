package f1a

import (
	"testing"

	"github.com/neuroplastio/rmi4touch/rmi4"
	"github.com/neuroplastio/rmi4touch/rmi4/rmi4test"
)

func TestParseQuery(t *testing.T) {
	q, err := ParseQuery([]byte{0x02, HasGeneralControl | HasFilterStrength})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.MaxButtonCount != 3 {
		t.Errorf("expected 3 buttons, got %d", q.MaxButtonCount)
	}
	if !q.Has(HasFilterStrength) || q.Has(HasTxRxMapping) {
		t.Errorf("unexpected capabilities %08b", q.Capabilities)
	}
	if _, err := ParseQuery([]byte{0x02}); err == nil {
		t.Errorf("expected error for short query")
	}
}

func TestButtons(t *testing.T) {
	panel := rmi4test.NewPanel()
	r := rmi4.NewPageRouter(panel)
	table, err := rmi4.BuildFunctionTable(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	desc, err := table.Lookup(rmi4.FunctionButtons)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b := New(desc)
	bit, err := b.Configure(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bit != rmi4test.IRQButtons {
		t.Errorf("expected interrupt bit %#x, got %#x", rmi4test.IRQButtons, bit)
	}
	if b.Query().MaxButtonCount != 3 {
		t.Errorf("unexpected query %+v", b.Query())
	}

	panel.Buttons(0x05)
	if err := r.SelectPage(0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, err := b.ReadData(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw != 0x05 {
		t.Errorf("expected 0x05, got %#x", raw)
	}
	if r.Page() != rmi4test.ButtonsPage {
		t.Errorf("expected page %d selected, got %d", rmi4test.ButtonsPage, r.Page())
	}
}
