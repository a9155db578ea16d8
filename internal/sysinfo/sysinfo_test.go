package sysinfo

import "testing"

func TestDeviceName(t *testing.T) {
	tests := []struct {
		mfr, product string
		expected     string
	}{
		{"Synaptics", "Touch", "Synaptics Touch"},
		{"", "Touch", "Touch"},
		{"", "", "7379:726d"},
	}
	for _, test := range tests {
		if got := deviceName(test.mfr, test.product, 0x7379, 0x726D); got != test.expected {
			t.Errorf("expected %q, got %q", test.expected, got)
		}
	}
}
