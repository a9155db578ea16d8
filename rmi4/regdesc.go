package rmi4

import (
	"fmt"

	"github.com/neuroplastio/rmi4touch/pkg/bits"
)

const (
	// MaxPresenceSize is the largest accepted presence register.
	MaxPresenceSize = 35
	// MaxPresenceBits caps the number of register ids in a descriptor.
	MaxPresenceBits = 256
)

// RegisterDescItem describes one present register of a register group.
type RegisterDescItem struct {
	Register     int       `json:"register"`
	Size         uint32    `json:"size"`
	SubPackets   int       `json:"subPackets"`
	SubPacketMap bits.Bits `json:"-"`
}

// RegisterDescriptor is the decoded layout of a query, control or data
// register group of a self-describing function.
type RegisterDescriptor struct {
	StructSize int                `json:"structSize"`
	Presence   bits.Bits          `json:"-"`
	Items      []RegisterDescItem `json:"items"`
}

// Item returns the descriptor entry of register reg.
func (d *RegisterDescriptor) Item(reg int) (RegisterDescItem, bool) {
	if i := d.Index(reg); i >= 0 {
		return d.Items[i], true
	}
	return RegisterDescItem{}, false
}

// Index returns the position of reg among the present registers, or -1.
func (d *RegisterDescriptor) Index(reg int) int {
	for i, item := range d.Items {
		if item.Register == reg {
			return i
		}
	}
	return -1
}

// Offset returns the byte offset of reg within the packed register group.
func (d *RegisterDescriptor) Offset(reg int) (int, bool) {
	offset := 0
	for _, item := range d.Items {
		if item.Register == reg {
			return offset, true
		}
		offset += int(item.Size)
	}
	return 0, false
}

// Size is the total byte size of all present registers.
func (d *RegisterDescriptor) Size() int {
	size := 0
	for _, item := range d.Items {
		size += int(item.Size)
	}
	return size
}

// ReadRegisterDescriptor reads a register descriptor whose presence
// register size lives at addr, presence register at addr+1 and register
// structure at addr+2.
func ReadRegisterDescriptor(bus Bus, addr uint8) (*RegisterDescriptor, error) {
	size := []byte{0}
	if err := bus.ReadRegisters(addr, size); err != nil {
		return nil, fmt.Errorf("failed to read presence size: %w", err)
	}
	if size[0] > MaxPresenceSize {
		return nil, fmt.Errorf("presence size %d exceeds %d: %w", size[0], MaxPresenceSize, ErrInvalidParameter)
	}
	presence := make([]byte, size[0])
	if len(presence) > 0 {
		if err := bus.ReadRegisters(addr+1, presence); err != nil {
			return nil, fmt.Errorf("failed to read presence register: %w", err)
		}
	}
	structSize, _ := parsePresence(presence)
	structBuf := make([]byte, structSize)
	if structSize > 0 {
		if err := bus.ReadRegisters(addr+2, structBuf); err != nil {
			return nil, fmt.Errorf("failed to read register structure: %w", err)
		}
	}
	return DecodeRegisterDescriptor(presence, structBuf)
}

// parsePresence splits a presence register into the structure size and
// the presence bitmap. A leading zero byte escapes to a 16-bit size.
func parsePresence(presence []byte) (int, bits.Bits) {
	padded := make([]byte, max(len(presence), 3))
	copy(padded, presence)
	structSize := int(padded[0])
	start := 1
	if padded[0] == 0 {
		structSize = int(padded[1]) | int(padded[2])<<8
		start = 3
	}
	if start > len(presence) {
		return structSize, bits.NewZero(0)
	}
	bitmap := presence[start:]
	if len(bitmap)*8 > MaxPresenceBits {
		bitmap = bitmap[:MaxPresenceBits/8]
	}
	return structSize, bits.New(bitmap).Clone()
}

// DecodeRegisterDescriptor decodes a presence register and its register
// structure buffer.
func DecodeRegisterDescriptor(presence, structBuf []byte) (*RegisterDescriptor, error) {
	if len(presence) > MaxPresenceSize {
		return nil, fmt.Errorf("presence size %d exceeds %d: %w", len(presence), MaxPresenceSize, ErrInvalidParameter)
	}
	structSize, bitmap := parsePresence(presence)
	desc := &RegisterDescriptor{
		StructSize: structSize,
		Presence:   bitmap,
		Items:      make([]RegisterDescItem, 0, bitmap.Count()),
	}
	if len(structBuf) > structSize {
		structBuf = structBuf[:structSize]
	}
	r := structReader{buf: structBuf}
	var err error
	bitmap.Each(func(reg int) bool {
		var item RegisterDescItem
		item, err = r.item(reg)
		if err != nil {
			return false
		}
		desc.Items = append(desc.Items, item)
		return true
	})
	if err != nil {
		return nil, err
	}
	return desc, nil
}

type structReader struct {
	buf    []byte
	offset int
}

func (r *structReader) next(n int) ([]byte, error) {
	if r.offset+n > len(r.buf) {
		return nil, fmt.Errorf("register structure truncated at byte %d: %w", r.offset, ErrInvalidDeviceState)
	}
	b := r.buf[r.offset : r.offset+n]
	r.offset += n
	return b, nil
}

func (r *structReader) item(reg int) (RegisterDescItem, error) {
	item := RegisterDescItem{Register: reg}
	b, err := r.next(1)
	if err != nil {
		return item, err
	}
	item.Size = uint32(b[0])
	if item.Size == 0 {
		if b, err = r.next(2); err != nil {
			return item, err
		}
		item.Size = uint32(b[0]) | uint32(b[1])<<8
	}
	if item.Size == 0 {
		if b, err = r.next(4); err != nil {
			return item, err
		}
		item.Size = uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	}
	if item.Size == 0 {
		return item, fmt.Errorf("register %d has zero size: %w", reg, ErrInvalidDeviceState)
	}
	var chain []byte
	for {
		if b, err = r.next(1); err != nil {
			return item, err
		}
		chain = append(chain, b[0])
		if b[0]&0x80 == 0 {
			break
		}
	}
	item.SubPacketMap = bits.NewZero(len(chain) * 7)
	for i, v := range chain {
		for bit := 0; bit < 7; bit++ {
			if v&(1<<bit) != 0 {
				item.SubPacketMap.Set(i*7 + bit)
			}
		}
	}
	item.SubPackets = item.SubPacketMap.Count()
	return item, nil
}
