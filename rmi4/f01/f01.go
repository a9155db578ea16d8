// Package f01 implements the RMI4 device control function.
package f01

import (
	"fmt"
	"strings"

	"github.com/neuroplastio/rmi4touch/rmi4"
)

const (
	ControlSize = 5
	DataSize    = 2
	// QuerySize covers the query registers up to, not including, ProductID10.
	QuerySize = 20

	CommandReset = 0x01
)

// Settings is the logical form of the control registers. Every field is
// truncated to its physical width when written.
type Settings struct {
	SleepMode       uint32 `json:"sleepMode"`
	NoSleep         uint32 `json:"noSleep"`
	ReportRate      uint32 `json:"reportRate"`
	Configured      uint32 `json:"configured"`
	InterruptEnable uint32 `json:"interruptEnable"`
	DozeInterval    uint32 `json:"dozeInterval"`
	DozeThreshold   uint32 `json:"dozeThreshold"`
	DozeHoldoff     uint32 `json:"dozeHoldoff"`
}

// Control is the physical control register block.
type Control struct {
	DeviceControl   byte
	InterruptEnable byte
	DozeInterval    byte
	DozeThreshold   byte
	DozeHoldoff     byte
}

func (s Settings) Physical() Control {
	return Control{
		DeviceControl: byte(s.SleepMode&0x03) |
			byte(s.NoSleep&0x01)<<2 |
			byte(s.ReportRate&0x01)<<6 |
			byte(s.Configured&0x01)<<7,
		InterruptEnable: byte(s.InterruptEnable),
		DozeInterval:    byte(s.DozeInterval),
		DozeThreshold:   byte(s.DozeThreshold),
		DozeHoldoff:     byte(s.DozeHoldoff),
	}
}

func (c Control) Bytes() []byte {
	return []byte{c.DeviceControl, c.InterruptEnable, c.DozeInterval, c.DozeThreshold, c.DozeHoldoff}
}

func (c Control) SleepMode() uint8 {
	return c.DeviceControl & 0x03
}

// PowerState is inferred from the sleep mode bits.
func (c Control) PowerState() PowerState {
	if c.SleepMode() == 0 {
		return PowerOperating
	}
	return PowerSleeping
}

type PowerState uint8

const (
	PowerOperating PowerState = iota
	PowerSleeping
)

func (p PowerState) String() string {
	if p == PowerOperating {
		return "operating"
	}
	return "sleeping"
}

type StatusCode uint8

const (
	StatusOK StatusCode = iota
	StatusResetOccurred
	StatusInvalidConfig
	StatusDeviceFailure
	StatusConfigCRCFailure
	StatusFirmwareCRCFailure
	StatusCRCInProgress
)

func (c StatusCode) String() string {
	switch c {
	case StatusOK:
		return "ok"
	case StatusResetOccurred:
		return "reset occurred"
	case StatusInvalidConfig:
		return "invalid configuration"
	case StatusDeviceFailure:
		return "device failure"
	case StatusConfigCRCFailure:
		return "config crc failure"
	case StatusFirmwareCRCFailure:
		return "firmware crc failure"
	case StatusCRCInProgress:
		return "crc in progress"
	}
	return fmt.Sprintf("unknown(%d)", uint8(c))
}

type DeviceStatus struct {
	Code         StatusCode
	FlashProg    bool
	Unconfigured bool
}

func ParseDeviceStatus(b byte) DeviceStatus {
	return DeviceStatus{
		Code:         StatusCode(b & 0x0F),
		FlashProg:    b&0x40 != 0,
		Unconfigured: b&0x80 != 0,
	}
}

// Data is the device status register followed by the interrupt status.
type Data struct {
	Status     DeviceStatus
	Interrupts uint8
}

type Query struct {
	ManufacturerID    uint8    `json:"manufacturerId"`
	ProductProperties uint8    `json:"productProperties"`
	ProductInfo       [2]uint8 `json:"productInfo"`
	Date              [2]uint8 `json:"date"`
	WaferLotID        [5]uint8 `json:"waferLotId"`
	ProductID         string   `json:"productId"`
}

func ParseQuery(data []byte) (Query, error) {
	if len(data) < QuerySize {
		return Query{}, fmt.Errorf("short query (%d bytes): %w", len(data), rmi4.ErrInvalidParameter)
	}
	q := Query{
		ManufacturerID:    data[0],
		ProductProperties: data[1],
		ProductInfo:       [2]uint8{data[2], data[3]},
		Date:              [2]uint8{data[4], data[5]},
	}
	copy(q.WaferLotID[:], data[6:11])
	q.ProductID = strings.TrimRight(string(data[11:QuerySize]), "\x00")
	return q, nil
}

// Function drives an F01 instance discovered in the function table.
type Function struct {
	desc rmi4.Function
}

func New(desc rmi4.Function) *Function {
	return &Function{desc: desc}
}

func (f *Function) Descriptor() rmi4.Function {
	return f.desc
}

// Configure writes the physical form of s and returns the power state
// selected by it.
func (f *Function) Configure(r *rmi4.PageRouter, s Settings) (PowerState, error) {
	ctrl := s.Physical()
	if err := r.Write(f.desc.Page, f.desc.ControlBase, ctrl.Bytes()); err != nil {
		return 0, fmt.Errorf("failed to write F01 control: %w", err)
	}
	return ctrl.PowerState(), nil
}

func (f *Function) ReadData(r *rmi4.PageRouter) (Data, error) {
	buf := make([]byte, DataSize)
	if err := r.Read(f.desc.Page, f.desc.DataBase, buf); err != nil {
		return Data{}, fmt.Errorf("failed to read interrupt status: %w", err)
	}
	return Data{
		Status:     ParseDeviceStatus(buf[0]),
		Interrupts: buf[1],
	}, nil
}

func (f *Function) ReadQuery(r *rmi4.PageRouter) (Query, error) {
	buf := make([]byte, QuerySize)
	if err := r.Read(f.desc.Page, f.desc.QueryBase, buf); err != nil {
		return Query{}, fmt.Errorf("failed to read F01 query: %w", err)
	}
	return ParseQuery(buf)
}

// Reset issues a soft reset through the command register.
func (f *Function) Reset(r *rmi4.PageRouter) error {
	if err := r.Write(f.desc.Page, f.desc.CommandBase, []byte{CommandReset}); err != nil {
		return fmt.Errorf("failed to reset device: %w", err)
	}
	return nil
}
