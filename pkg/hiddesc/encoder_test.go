package hiddesc

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncode(t *testing.T) {
	desc := &ReportDescriptor{
		Collections: []Collection{
			{
				Type:      CollectionTypeApplication,
				UsagePage: 0x0C,
				UsageID:   0x01,
				Items: []MainItem{
					Input(DataItem{
						Flags:          DataFlagVariable,
						UsageIDs:       []uint16{0x221, 0x224},
						ReportID:       5,
						LogicalMaximum: 1,
						ReportCount:    2,
						ReportSize:     1,
					}),
					Input(DataItem{
						Flags:          DataFlagConstant | DataFlagVariable,
						ReportID:       5,
						LogicalMaximum: 1,
						ReportCount:    1,
						ReportSize:     6,
					}),
				},
			},
		},
	}
	got, err := Encode(desc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []byte{
		0x05, 0x0C, // usage page
		0x09, 0x01, // usage
		0xA1, 0x01, // collection
		0x0A, 0x21, 0x02,
		0x0A, 0x24, 0x02,
		0x25, 0x01, // logical maximum
		0x85, 0x05, // report id
		0x95, 0x02, // report count
		0x75, 0x01, // report size
		0x81, 0x02, // input
		0x95, 0x01,
		0x75, 0x06,
		0x81, 0x03,
		0xC0,
	}
	if !bytes.Equal(got, expected) {
		t.Errorf("expected % x, got % x", expected, got)
	}
}

func TestEncodeSignedValues(t *testing.T) {
	tests := []struct {
		value    int32
		expected []byte
	}{
		{value: 1, expected: []byte{0x25, 0x01}},
		{value: -1, expected: []byte{0x25, 0xFF}},
		{value: 0x2CE, expected: []byte{0x26, 0xCE, 0x02}},
		{value: 0xFFFF, expected: []byte{0x27, 0xFF, 0xFF, 0x00, 0x00}},
	}
	for _, test := range tests {
		buf := &bytes.Buffer{}
		e := NewDescriptorEncoder(buf, &ReportDescriptor{})
		if err := e.encodeTagi32(TagLogicalMaximum, test.value); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !bytes.Equal(buf.Bytes(), test.expected) {
			t.Errorf("%d: expected % x, got % x", test.value, test.expected, buf.Bytes())
		}
	}
}

func TestDump(t *testing.T) {
	data := []byte{0x05, 0x0D, 0x09, 0x04, 0xA1, 0x01, 0x55, 0x0E, 0x27, 0xFF, 0xFF, 0x00, 0x00, 0xC0}
	out := &strings.Builder{}
	if err := Dump(out, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := strings.Join([]string{
		"Usage Page (0x0d)",
		"Usage (0x04)",
		"Collection (0x01)",
		"  Unit Exponent (-2)",
		"  Logical Maximum (65535)",
		"End Collection",
		"",
	}, "\n")
	if out.String() != expected {
		t.Errorf("unexpected dump:\n%s", out.String())
	}
	if err := Dump(out, []byte{0xA1, 0x01}); err == nil {
		t.Errorf("expected error for unterminated collection")
	}
	if _, err := Items([]byte{0x26, 0x01}); err == nil {
		t.Errorf("expected error for truncated item")
	}
}
