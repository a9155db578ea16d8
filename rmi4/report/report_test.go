package report

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/neuroplastio/rmi4touch/pkg/hiddesc"
	"github.com/neuroplastio/rmi4touch/rmi4"
)

func TestMarshal(t *testing.T) {
	tests := []struct {
		name     string
		report   Report
		expected []byte
	}{
		{
			name: "touch",
			report: TouchReport(Touch{
				Contacts: [ContactsPerReport]Contact{
					{Status: ContactTip, ID: 3, X: 0x0102, Y: 0x0304},
				},
				ActualCount: 1,
				ScanTime:    0xABCD,
			}),
			expected: []byte{
				0x01,
				0x01, 0x03, 0x02, 0x01, 0x04, 0x03,
				0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
				0x01,
				0xCD, 0xAB,
			},
		},
		{
			name:     "keyboard",
			report:   KeyboardReport(ModifierLeftAlt, KeyTab),
			expected: []byte{0x04, 0x04, 0x2B},
		},
		{
			name:     "consumer",
			report:   ConsumerReport(ConsumerBack),
			expected: []byte{0x05, 0x02},
		},
	}
	for _, test := range tests {
		got := test.report.Marshal()
		if !bytes.Equal(got, test.expected) {
			t.Errorf("%s: expected % x, got % x", test.name, test.expected, got)
		}
		if got[0] != byte(test.report.ID()) {
			t.Errorf("%s: report ID mismatch", test.name)
		}
	}
}

func TestQueue(t *testing.T) {
	q := NewQueue(2)
	for i := 0; i < 2; i++ {
		if err := q.Push(ConsumerReport(0)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	err := q.Push(ConsumerReport(0))
	if !errors.Is(err, rmi4.ErrOutOfMemory) {
		t.Fatalf("expected out of memory, got %v", err)
	}
	if q.Len() != 2 || q.Dropped() != 1 {
		t.Errorf("expected 2 queued and 1 dropped, got %d and %d", q.Len(), q.Dropped())
	}
	if got := q.Drain(); len(got) != 2 {
		t.Errorf("expected 2 drained reports, got %d", len(got))
	}
	if q.Len() != 0 || q.Dropped() != 0 {
		t.Errorf("expected empty queue after drain")
	}
	if NewQueue(0).Limit() != DefaultQueueSize {
		t.Errorf("expected default limit")
	}
}

func TestFeature(t *testing.T) {
	f, err := ParseFeature(Feature{InputMode: InputModeMultiTouch, DeviceIndex: 1}.Marshal())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.InputMode != InputModeMultiTouch || f.DeviceIndex != 1 {
		t.Errorf("unexpected feature %+v", f)
	}
	if _, err := ParseFeature([]byte{byte(IDTouch), 2, 0}); !errors.Is(err, rmi4.ErrInvalidParameter) {
		t.Errorf("expected invalid parameter, got %v", err)
	}
}

func TestDescriptor(t *testing.T) {
	data, err := EncodeDescriptor(768, 1280)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := hiddesc.Dump(io.Discard, data); err != nil {
		t.Fatalf("malformed descriptor: %v", err)
	}
	items, err := hiddesc.Items(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var maxima []int32
	reportIDs := map[uint32]bool{}
	inputBits := map[uint32]uint32{}
	var size, count, id uint32
	for _, item := range items {
		switch item.Tag.TagPrefix() {
		case hiddesc.TagLogicalMaximum:
			maxima = append(maxima, item.Signed())
		case hiddesc.TagReportID:
			id = item.Unsigned()
			reportIDs[id] = true
		case hiddesc.TagReportSize:
			size = item.Unsigned()
		case hiddesc.TagReportCount:
			count = item.Unsigned()
		case hiddesc.TagInput:
			inputBits[id] += size * count
		}
	}
	if !contains(maxima, 768) || !contains(maxima, 1280) {
		t.Errorf("expected viewable size in logical maxima, got %v", maxima)
	}
	for _, id := range []ID{IDTouch, IDMaxCount, IDFeature, IDKeyboard, IDConsumer} {
		if !reportIDs[uint32(id)] {
			t.Errorf("report ID %d missing", id)
		}
	}
	sizes := map[ID]int{
		IDTouch:    TouchSize,
		IDKeyboard: KeyboardSize,
		IDConsumer: ConsumerSize,
	}
	for id, size := range sizes {
		if got := int(inputBits[uint32(id)])/8 + 1; got != size {
			t.Errorf("report %d: descriptor declares %d bytes, marshal writes %d", id, got, size)
		}
	}
}

func contains(s []int32, v int32) bool {
	for _, e := range s {
		if e == v {
			return true
		}
	}
	return false
}
