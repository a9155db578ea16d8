package hiddesc

// Main items: xxxx 00 xx
// Global items: xxxx 01 xx
// Local items: xxxx 10 xx
// These constants only contain first 6 bits. Size is determined by last two bits.
const (
	TagInput         Tag = 0x80 // 1000 00xx + DataFlags
	TagOutput        Tag = 0x90 // 1001 00xx + DataFlags
	TagFeature       Tag = 0xB0 // 1011 00xx + DataFlags
	TagCollection    Tag = 0xA0 // 1010 00xx + CollectionType
	TagEndCollection Tag = 0xC0 // 1100 0000

	TagUsagePage       Tag = 0x04 // 0000 01xx + UsagePage
	TagLogicalMinimum  Tag = 0x14 // 0001 01xx + int
	TagLogicalMaximum  Tag = 0x24 // 0010 01xx + int
	TagPhysicalMinimum Tag = 0x34 // 0011 01xx + int
	TagPhysicalMaximum Tag = 0x44 // 0100 01xx + int
	TagUnitExponent    Tag = 0x54 // 0101 01xx + int
	TagUnit            Tag = 0x64 // 0110 01xx + int
	TagReportSize      Tag = 0x74 // 0111 01xx + int
	TagReportID        Tag = 0x84 // 1000 01xx + int
	TagReportCount     Tag = 0x94 // 1001 01xx + int
	TagPush            Tag = 0xA4 // 1010 0100
	TagPop             Tag = 0xB4 // 1011 0100

	TagUsage         Tag = 0x08 // 0000 10xx + UsageID
	TagUsageMinimum  Tag = 0x18 // 0001 10xx + int
	TagUsageMaximum  Tag = 0x28 // 0010 10xx + int
	TagStringIndex   Tag = 0x68 // 0110 10xx + int
	TagStringMinimum Tag = 0x78 // 0111 10xx + int
	TagStringMaximum Tag = 0x88 // 1000 10xx + int
	TagDelimiter     Tag = 0xA8 // 1010 10xx + 0/1
)

type Tag uint8

type TagItemSize uint8

const (
	TagItemSize0 TagItemSize = iota
	TagItemSize8
	TagItemSize16
	TagItemSize32
)

func (t Tag) PayloadSize() TagItemSize {
	return TagItemSize(t & 0x03)
}

// PayloadLen is the payload length in bytes.
func (t Tag) PayloadLen() int {
	switch t.PayloadSize() {
	case TagItemSize8:
		return 1
	case TagItemSize16:
		return 2
	case TagItemSize32:
		return 4
	}
	return 0
}

func (t Tag) WithItemSize(size TagItemSize) Tag {
	return t.TagPrefix() | Tag(size)
}

type TagItemType uint8

const (
	TagItemTypeMain TagItemType = iota
	TagItemTypeGlobal
	TagItemTypeLocal
)

func (t Tag) ItemType() TagItemType {
	return TagItemType((t & 0x0C) >> 2)
}

func (t Tag) TagPrefix() Tag {
	return t & 0xFC
}

var tagNames = map[Tag]string{
	TagInput:           "Input",
	TagOutput:          "Output",
	TagFeature:         "Feature",
	TagCollection:      "Collection",
	TagEndCollection:   "End Collection",
	TagUsagePage:       "Usage Page",
	TagLogicalMinimum:  "Logical Minimum",
	TagLogicalMaximum:  "Logical Maximum",
	TagPhysicalMinimum: "Physical Minimum",
	TagPhysicalMaximum: "Physical Maximum",
	TagUnitExponent:    "Unit Exponent",
	TagUnit:            "Unit",
	TagReportSize:      "Report Size",
	TagReportID:        "Report ID",
	TagReportCount:     "Report Count",
	TagPush:            "Push",
	TagPop:             "Pop",
	TagUsage:           "Usage",
	TagUsageMinimum:    "Usage Minimum",
	TagUsageMaximum:    "Usage Maximum",
	TagStringIndex:     "String Index",
	TagStringMinimum:   "String Minimum",
	TagStringMaximum:   "String Maximum",
	TagDelimiter:       "Delimiter",
}

func (t Tag) String() string {
	if name, ok := tagNames[t.TagPrefix()]; ok {
		return name
	}
	return "Reserved"
}
