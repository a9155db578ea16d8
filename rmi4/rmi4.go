// Package rmi4 implements the register-level protocol of RMI4 touch
// controllers: page routing, function discovery and register descriptor
// decoding.
package rmi4

import (
	"errors"
	"fmt"
)

const (
	// FirstFunctionAddress is the address of the topmost function
	// descriptor on every page. Descriptors are laid out downwards.
	FirstFunctionAddress = 0xE9
	// PageSelectAddress selects the active register page.
	PageSelectAddress = 0xFF
	// MaxPages is the number of addressable register pages.
	MaxPages = 4
	// MaxFunctions is the default function table capacity.
	MaxFunctions = 10
	// MaxTouches is the number of hardware finger slots.
	MaxTouches = 10
	// FunctionDescriptorSize is the size of one function descriptor record.
	FunctionDescriptorSize = 6
)

// Interrupt cause bits reported by the device control function.
const (
	InterruptTouch          uint8 = 0x04
	InterruptButton         uint8 = 0x10
	InterruptButtonReversed uint8 = 0x20

	InterruptMask = InterruptTouch | InterruptButton | InterruptButtonReversed
)

var (
	ErrInvalidDeviceState = errors.New("invalid device state")
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrResourceExhausted  = errors.New("resource exhausted")
	ErrNotImplemented     = errors.New("not implemented")
	ErrOutOfMemory        = errors.New("report queue full")
	ErrNoData             = errors.New("no data")
	ErrFunctionMissing    = fmt.Errorf("function missing: %w", ErrInvalidDeviceState)
)

// Bus is a synchronous register transport. Addresses are relative to the
// currently selected page.
type Bus interface {
	ReadRegisters(addr uint8, buf []byte) error
	WriteRegisters(addr uint8, buf []byte) error
}

// FunctionNumber identifies an RMI4 function.
type FunctionNumber uint8

const (
	FunctionDeviceControl FunctionNumber = 0x01
	Function2DLegacy      FunctionNumber = 0x11
	Function2D            FunctionNumber = 0x12
	FunctionButtons       FunctionNumber = 0x1A
	FunctionFlash         FunctionNumber = 0x34
	FunctionTestReporting FunctionNumber = 0x54
)

func (n FunctionNumber) String() string {
	switch n {
	case FunctionDeviceControl:
		return "F01"
	case Function2DLegacy:
		return "F11"
	case Function2D:
		return "F12"
	case FunctionButtons:
		return "F1A"
	case FunctionFlash:
		return "F34"
	case FunctionTestReporting:
		return "F54"
	}
	return fmt.Sprintf("F%02X", uint8(n))
}

// FunctionDescriptor mirrors the 6-byte on-chip descriptor record.
type FunctionDescriptor struct {
	QueryBase      uint8          `json:"queryBase"`
	CommandBase    uint8          `json:"commandBase"`
	ControlBase    uint8          `json:"controlBase"`
	DataBase       uint8          `json:"dataBase"`
	InterruptCount uint8          `json:"interruptCount"`
	Version        uint8          `json:"version"`
	Number         FunctionNumber `json:"number"`
}

// ParseFunctionDescriptor decodes a raw descriptor record.
func ParseFunctionDescriptor(data []byte) (FunctionDescriptor, error) {
	if len(data) < FunctionDescriptorSize {
		return FunctionDescriptor{}, fmt.Errorf("short function descriptor (%d bytes): %w", len(data), ErrInvalidParameter)
	}
	return FunctionDescriptor{
		QueryBase:      data[0],
		CommandBase:    data[1],
		ControlBase:    data[2],
		DataBase:       data[3],
		InterruptCount: data[4] & 0x07,
		Version:        (data[4] >> 5) & 0x03,
		Number:         FunctionNumber(data[5]),
	}, nil
}

// Bytes encodes the descriptor in its on-chip layout.
func (d FunctionDescriptor) Bytes() []byte {
	return []byte{
		d.QueryBase,
		d.CommandBase,
		d.ControlBase,
		d.DataBase,
		d.InterruptCount&0x07 | (d.Version&0x03)<<5,
		uint8(d.Number),
	}
}
