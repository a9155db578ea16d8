// Package report defines the HID output reports produced by the
// controller and their wire encoding.
package report

import (
	"encoding/binary"
	"fmt"

	"github.com/neuroplastio/rmi4touch/rmi4"
)

// HID device attributes.
const (
	VendorID  = 0x7379
	ProductID = 0x726D
	Version   = 3200
)

// ID is the HID report ID.
type ID uint8

const (
	IDTouch    ID = 1
	IDMaxCount ID = 2
	IDFeature  ID = 3
	IDKeyboard ID = 4
	IDConsumer ID = 5
)

type Kind uint8

const (
	KindTouch Kind = iota
	KindKeyboard
	KindConsumer
)

func (k Kind) String() string {
	switch k {
	case KindTouch:
		return "touch"
	case KindKeyboard:
		return "keyboard"
	case KindConsumer:
		return "consumer"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ContactsPerReport is the number of contacts carried by one touch report.
const ContactsPerReport = 2

// Contact status bits.
const (
	ContactTip     uint8 = 0x01
	ContactInRange uint8 = 0x02
)

type Contact struct {
	Status uint8  `json:"status"`
	ID     uint8  `json:"id"`
	X      uint16 `json:"x"`
	Y      uint16 `json:"y"`
}

type Touch struct {
	Contacts [ContactsPerReport]Contact `json:"contacts"`
	// ActualCount is the number of contacts in the whole frame on the
	// first report of the frame and 0 on the following ones.
	ActualCount uint8  `json:"actualCount"`
	ScanTime    uint16 `json:"scanTime"`
}

// Keyboard modifier bits and key codes.
const (
	ModifierLeftCtrl  uint8 = 0x01
	ModifierLeftShift uint8 = 0x02
	ModifierLeftAlt   uint8 = 0x04
	ModifierLeftGUI   uint8 = 0x08

	KeyNone uint8 = 0x00
	KeyTab  uint8 = 0x2B
)

type Keyboard struct {
	Modifiers uint8 `json:"modifiers"`
	Key       uint8 `json:"key"`
}

// Consumer control bits.
const (
	ConsumerSearch uint8 = 0x01
	ConsumerBack   uint8 = 0x02
	ConsumerConfig uint8 = 0x04
)

type Consumer struct {
	Buttons uint8 `json:"buttons"`
}

// Report is a oneOf over the report kinds, selected by Kind.
type Report struct {
	Kind     Kind     `json:"kind"`
	Touch    Touch    `json:"touch"`
	Keyboard Keyboard `json:"keyboard"`
	Consumer Consumer `json:"consumer"`
}

func TouchReport(t Touch) Report {
	return Report{Kind: KindTouch, Touch: t}
}

func KeyboardReport(modifiers, key uint8) Report {
	return Report{Kind: KindKeyboard, Keyboard: Keyboard{Modifiers: modifiers, Key: key}}
}

func ConsumerReport(buttons uint8) Report {
	return Report{Kind: KindConsumer, Consumer: Consumer{Buttons: buttons}}
}

func (r Report) ID() ID {
	switch r.Kind {
	case KindKeyboard:
		return IDKeyboard
	case KindConsumer:
		return IDConsumer
	}
	return IDTouch
}

func (r Report) String() string {
	switch r.Kind {
	case KindTouch:
		return fmt.Sprintf("touch(count=%d, scan=%d, %+v, %+v)",
			r.Touch.ActualCount, r.Touch.ScanTime, r.Touch.Contacts[0], r.Touch.Contacts[1])
	case KindKeyboard:
		return fmt.Sprintf("keyboard(mods=%08b, key=%#02x)", r.Keyboard.Modifiers, r.Keyboard.Key)
	case KindConsumer:
		return fmt.Sprintf("consumer(%08b)", r.Consumer.Buttons)
	}
	return r.Kind.String()
}

const contactSize = 6

// Report sizes on the wire, including the report ID.
const (
	TouchSize    = 1 + ContactsPerReport*contactSize + 1 + 2
	KeyboardSize = 3
	ConsumerSize = 2
)

// Marshal encodes the report in the layout declared by Descriptor.
func (r Report) Marshal() []byte {
	switch r.Kind {
	case KindKeyboard:
		return []byte{byte(IDKeyboard), r.Keyboard.Modifiers, r.Keyboard.Key}
	case KindConsumer:
		return []byte{byte(IDConsumer), r.Consumer.Buttons & 0x07}
	}
	buf := make([]byte, TouchSize)
	buf[0] = byte(IDTouch)
	for i, c := range r.Touch.Contacts {
		b := buf[1+i*contactSize:]
		b[0] = c.Status & (ContactTip | ContactInRange)
		b[1] = c.ID
		binary.LittleEndian.PutUint16(b[2:], c.X)
		binary.LittleEndian.PutUint16(b[4:], c.Y)
	}
	off := 1 + ContactsPerReport*contactSize
	buf[off] = r.Touch.ActualCount
	binary.LittleEndian.PutUint16(buf[off+1:], r.Touch.ScanTime)
	return buf
}

// InputMode is the reporting mode selected by the host.
type InputMode uint8

const (
	InputModeMouse InputMode = iota
	InputModeSingleTouch
	InputModeMultiTouch
)

func (m InputMode) String() string {
	switch m {
	case InputModeMouse:
		return "mouse"
	case InputModeSingleTouch:
		return "single-touch"
	case InputModeMultiTouch:
		return "multi-touch"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// Feature is the configuration feature report.
type Feature struct {
	InputMode   InputMode
	DeviceIndex uint8
}

const FeatureSize = 3

func (f Feature) Marshal() []byte {
	return []byte{byte(IDFeature), byte(f.InputMode), f.DeviceIndex}
}

func ParseFeature(data []byte) (Feature, error) {
	if len(data) < FeatureSize || ID(data[0]) != IDFeature {
		return Feature{}, fmt.Errorf("malformed feature report % x: %w", data, rmi4.ErrInvalidParameter)
	}
	return Feature{
		InputMode:   InputMode(data[1]),
		DeviceIndex: data[2],
	}, nil
}

// MaxCount is the contact count feature report.
func MaxCount() []byte {
	return []byte{byte(IDMaxCount), ContactsPerReport}
}
