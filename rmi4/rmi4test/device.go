// Package rmi4test provides an in-memory paged register file that
// behaves like an RMI4 device on the register bus.
package rmi4test

import (
	"errors"
	"fmt"
	"sync"
)

const (
	pageSelectAddress = 0xFF
	pageCount         = 4
	pageSize          = 256
)

var ErrOutOfRange = errors.New("register access out of range")

// Access records a single bus transfer.
type Access struct {
	Page uint8
	Addr uint8
	Data []byte
}

func (a Access) String() string {
	return fmt.Sprintf("%d:%02x % x", a.Page, a.Addr, a.Data)
}

// Device is a simulated register file with four pages. Writes to 0xFF
// select the page for subsequent accesses.
type Device struct {
	mu          sync.Mutex
	pages       [pageCount][pageSize]byte
	page        uint8
	writes      []Access
	reads       []Access
	clearOnRead map[uint16]struct{}
	packets     map[uint16][]byte

	// ReadHook, when set, may fail a read before it is served.
	ReadHook func(page, addr uint8, n int) error
	// WriteHook, when set, may fail a write before it is applied.
	WriteHook func(page, addr uint8, data []byte) error
}

func NewDevice() *Device {
	return &Device{
		clearOnRead: make(map[uint16]struct{}),
		packets:     make(map[uint16][]byte),
	}
}

func (d *Device) ReadRegisters(addr uint8, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ReadHook != nil {
		if err := d.ReadHook(d.page, addr, len(buf)); err != nil {
			return err
		}
	}
	if packet, ok := d.packets[uint16(d.page)<<8|uint16(addr)]; ok {
		clear(buf)
		copy(buf, packet)
	} else {
		if int(addr)+len(buf) > pageSize {
			return fmt.Errorf("read %d bytes at %02x: %w", len(buf), addr, ErrOutOfRange)
		}
		copy(buf, d.pages[d.page][addr:])
	}
	data := make([]byte, len(buf))
	copy(data, buf)
	d.reads = append(d.reads, Access{Page: d.page, Addr: addr, Data: data})
	for i := range buf {
		key := uint16(d.page)<<8 | uint16(addr) + uint16(i)
		if _, ok := d.clearOnRead[key]; ok {
			d.pages[d.page][int(addr)+i] = 0
		}
	}
	return nil
}

func (d *Device) WriteRegisters(addr uint8, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.WriteHook != nil {
		if err := d.WriteHook(d.page, addr, buf); err != nil {
			return err
		}
	}
	if int(addr)+len(buf) > pageSize {
		return fmt.Errorf("write %d bytes at %02x: %w", len(buf), addr, ErrOutOfRange)
	}
	data := make([]byte, len(buf))
	copy(data, buf)
	d.writes = append(d.writes, Access{Page: d.page, Addr: addr, Data: data})
	if addr == pageSelectAddress && len(buf) == 1 {
		if buf[0] >= pageCount {
			return fmt.Errorf("page %d: %w", buf[0], ErrOutOfRange)
		}
		d.page = buf[0]
		return nil
	}
	copy(d.pages[d.page][addr:], buf)
	return nil
}

// Set stores data at addr on page without recording a write.
func (d *Device) Set(page, addr uint8, data ...byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	copy(d.pages[page][addr:], data)
}

// SetPacket makes addr on page a packet register: a read at addr returns
// data regardless of the requested length, padded with zeros.
func (d *Device) SetPacket(page, addr uint8, data ...byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.packets[uint16(page)<<8|uint16(addr)] = append([]byte(nil), data...)
}

// Get returns n bytes from addr on page.
func (d *Device) Get(page, addr uint8, n int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]byte, n)
	copy(out, d.pages[page][addr:])
	return out
}

// ClearOnRead makes n registers starting at addr reset to zero after
// they are read, like interrupt status registers do.
func (d *Device) ClearOnRead(page, addr uint8, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := 0; i < n; i++ {
		d.clearOnRead[uint16(page)<<8|uint16(addr)+uint16(i)] = struct{}{}
	}
}

// Page returns the currently selected page.
func (d *Device) Page() uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.page
}

// Writes returns a copy of all recorded writes, page selects included.
func (d *Device) Writes() []Access {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Access(nil), d.writes...)
}

// WritesTo returns the recorded writes addressed to addr on page.
func (d *Device) WritesTo(page, addr uint8) []Access {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Access
	for _, w := range d.writes {
		if w.Page == page && w.Addr == addr {
			out = append(out, w)
		}
	}
	return out
}

// Reads returns a copy of all recorded reads.
func (d *Device) Reads() []Access {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Access(nil), d.reads...)
}

// ResetLog forgets recorded reads and writes.
func (d *Device) ResetLog() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes = nil
	d.reads = nil
}
