// Package bits implements little-endian bitmaps over byte buffers.
// Bit 0 is the least significant bit of the first byte, matching the
// presence and subpacket maps reported by RMI4 register descriptors.
package bits

import (
	"errors"
	"fmt"
	mathbits "math/bits"
	"strconv"
	"strings"
)

type Bits struct {
	bytes []byte
}

// New wraps data without copying it.
func New(data []byte) Bits {
	return Bits{bytes: data}
}

// NewZero allocates a bitmap able to hold n bits.
func NewZero(n int) Bits {
	return Bits{bytes: make([]byte, (n+7)/8)}
}

func (b Bits) String() string {
	parts := make([]string, len(b.bytes))
	for i, v := range b.bytes {
		parts[i] = fmt.Sprintf("%08b", v)
	}
	return strings.Join(parts, " ")
}

func (b Bits) Bytes() []byte {
	return b.bytes
}

func (b Bits) Len() int {
	return len(b.bytes) * 8
}

func (b Bits) IsSet(bit int) bool {
	if bit < 0 || bit >= b.Len() {
		return false
	}
	return b.bytes[bit/8]&(1<<(bit%8)) != 0
}

func (b Bits) Set(bit int) bool {
	if bit < 0 || bit >= b.Len() {
		return false
	}
	changed := b.bytes[bit/8]&(1<<(bit%8)) == 0
	b.bytes[bit/8] |= 1 << (bit % 8)
	return changed
}

func (b Bits) Clear(bit int) bool {
	if bit < 0 || bit >= b.Len() {
		return false
	}
	changed := b.bytes[bit/8]&(1<<(bit%8)) != 0
	b.bytes[bit/8] &^= 1 << (bit % 8)
	return changed
}

func (b Bits) ClearAll() bool {
	changed := false
	for i := range b.bytes {
		if b.bytes[i] != 0 {
			changed = true
		}
		b.bytes[i] = 0
	}
	return changed
}

func (b Bits) IsEmpty() bool {
	for _, v := range b.bytes {
		if v != 0 {
			return false
		}
	}
	return true
}

// Count returns the number of set bits.
func (b Bits) Count() int {
	n := 0
	for _, v := range b.bytes {
		n += mathbits.OnesCount8(v)
	}
	return n
}

// Next returns the first set bit at or after from, or -1.
func (b Bits) Next(from int) int {
	if from < 0 {
		from = 0
	}
	for bit := from; bit < b.Len(); bit++ {
		if b.bytes[bit/8] == 0 {
			bit |= 7
			continue
		}
		if b.IsSet(bit) {
			return bit
		}
	}
	return -1
}

// Each calls f for every set bit in ascending order until f returns false.
func (b Bits) Each(f func(bit int) bool) {
	for bit := b.Next(0); bit >= 0; bit = b.Next(bit + 1) {
		if !f(bit) {
			return
		}
	}
}

func (b Bits) Clone() Bits {
	bytes := make([]byte, len(b.bytes))
	copy(bytes, b.bytes)
	return Bits{bytes: bytes}
}

func (b Bits) Equal(other Bits) bool {
	if len(b.bytes) != len(other.bytes) {
		return false
	}
	for i, v := range b.bytes {
		if v != other.bytes[i] {
			return false
		}
	}
	return true
}

// NewBitSetFromString parses the String format: space separated bytes,
// each written most significant bit first.
func NewBitSetFromString(s string) (Bits, error) {
	byteStrs := strings.Fields(s)
	b := Bits{
		bytes: make([]byte, len(byteStrs)),
	}
	for i, byteStr := range byteStrs {
		if len(byteStr) != 8 {
			return Bits{}, errors.New("incomplete byte")
		}
		byteVal, err := strconv.ParseUint(byteStr, 2, 8)
		if err != nil {
			return Bits{}, errors.New("invalid byte value")
		}
		b.bytes[i] = byte(byteVal)
	}
	return b, nil
}
