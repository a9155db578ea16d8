package bits

import (
	"testing"
)

type bitTestCase struct {
	bits  string
	count int
	set   []int
}

func TestBitSet(t *testing.T) {
	tests := []bitTestCase{
		{
			bits:  "00000000",
			count: 0,
			set:   nil,
		},
		{
			bits:  "00000101",
			count: 2,
			set:   []int{0, 2},
		},
		{
			bits:  "10000000 00000001",
			count: 2,
			set:   []int{7, 8},
		},
		{
			bits:  "00000000 00000000 00010000",
			count: 1,
			set:   []int{20},
		},
	}
	for i, test := range tests {
		b, err := NewBitSetFromString(test.bits)
		if err != nil {
			t.Fatalf("%d: failed to parse bits: %v", i, err)
		}
		if b.Count() != test.count {
			t.Errorf("%d: expected count %d, got %d", i, test.count, b.Count())
		}
		var got []int
		b.Each(func(bit int) bool {
			got = append(got, bit)
			return true
		})
		if len(got) != len(test.set) {
			t.Fatalf("%d: expected set bits %v, got %v", i, test.set, got)
		}
		for j := range got {
			if got[j] != test.set[j] {
				t.Errorf("%d: expected set bits %v, got %v", i, test.set, got)
			}
		}
		if b.String() != test.bits {
			t.Errorf("%d: expected %s, got %s", i, test.bits, b.String())
		}
	}
}

func TestSetClear(t *testing.T) {
	b := NewZero(10)
	if b.Len() != 16 {
		t.Fatalf("expected 16 bits, got %d", b.Len())
	}
	if !b.Set(9) {
		t.Errorf("expected Set to report a change")
	}
	if b.Set(9) {
		t.Errorf("expected second Set to be a no-op")
	}
	if !b.IsSet(9) || b.IsSet(8) {
		t.Errorf("unexpected bitmap %s", b)
	}
	if b.Set(16) {
		t.Errorf("out of range Set must be ignored")
	}
	if b.Next(0) != 9 || b.Next(10) != -1 {
		t.Errorf("unexpected Next results on %s", b)
	}
	clone := b.Clone()
	if !b.Clear(9) {
		t.Errorf("expected Clear to report a change")
	}
	if !b.IsEmpty() {
		t.Errorf("expected empty bitmap, got %s", b)
	}
	if !clone.IsSet(9) {
		t.Errorf("clone must not share storage")
	}
	if clone.Equal(b) {
		t.Errorf("expected clone to differ")
	}
}
