package hiddesc

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// Item is one short item of a binary report descriptor.
type Item struct {
	Tag  Tag
	Data []byte
}

// Unsigned returns the payload as a little-endian unsigned value.
func (i Item) Unsigned() uint32 {
	switch len(i.Data) {
	case 1:
		return uint32(i.Data[0])
	case 2:
		return uint32(binary.LittleEndian.Uint16(i.Data))
	case 4:
		return binary.LittleEndian.Uint32(i.Data)
	}
	return 0
}

// Signed returns the payload as a sign-extended value.
func (i Item) Signed() int32 {
	switch len(i.Data) {
	case 1:
		return int32(int8(i.Data[0]))
	case 2:
		return int32(int16(binary.LittleEndian.Uint16(i.Data)))
	case 4:
		return int32(binary.LittleEndian.Uint32(i.Data))
	}
	return 0
}

func (i Item) String() string {
	switch i.Tag.TagPrefix() {
	case TagEndCollection, TagPush, TagPop:
		return i.Tag.String()
	case TagLogicalMinimum, TagLogicalMaximum, TagPhysicalMinimum, TagPhysicalMaximum:
		return fmt.Sprintf("%s (%d)", i.Tag, i.Signed())
	case TagUnitExponent:
		v := int8(i.Unsigned()<<4) >> 4
		return fmt.Sprintf("%s (%d)", i.Tag, v)
	case TagReportSize, TagReportCount, TagReportID:
		return fmt.Sprintf("%s (%d)", i.Tag, i.Unsigned())
	}
	return fmt.Sprintf("%s (0x%02x)", i.Tag, i.Unsigned())
}

// Items splits a binary report descriptor into short items. Long items
// are not supported.
func Items(data []byte) ([]Item, error) {
	var items []Item
	for len(data) > 0 {
		tag := Tag(data[0])
		if data[0] == 0xFE {
			return nil, fmt.Errorf("long items are not supported")
		}
		n := tag.PayloadLen()
		if len(data) < 1+n {
			return nil, fmt.Errorf("truncated %s item", tag)
		}
		items = append(items, Item{Tag: tag, Data: data[1 : 1+n]})
		data = data[1+n:]
	}
	return items, nil
}

// Dump writes one item per line, indented by collection depth.
func Dump(w io.Writer, data []byte) error {
	items, err := Items(data)
	if err != nil {
		return err
	}
	depth := 0
	for _, item := range items {
		if item.Tag.TagPrefix() == TagEndCollection && depth > 0 {
			depth--
		}
		if _, err := fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), item); err != nil {
			return err
		}
		if item.Tag.TagPrefix() == TagCollection {
			depth++
		}
	}
	if depth != 0 {
		return fmt.Errorf("%d unterminated collections", depth)
	}
	return nil
}
