// Package hiddesc models and encodes HID report descriptors.
package hiddesc

type ReportDescriptor struct {
	// Top-level Application Collections
	Collections []Collection
}

type CollectionType uint8

const (
	CollectionTypePhysical CollectionType = iota
	CollectionTypeApplication
	CollectionTypeLogical
	CollectionTypeReport
	CollectionTypeNamedArray
	CollectionTypeUsageSwitch
	CollectionTypeUsageModifier
)

// A Collection groups main items. A zero UsagePage inherits the current
// usage page and a zero UsageID emits no usage.
type Collection struct {
	Type      CollectionType
	UsagePage uint16
	UsageID   uint16
	// Items contains ordered list of Main Items, including nested collections.
	Items []MainItem
}

type DataFlags uint32

const (
	DataFlagConstant      DataFlags = 1 << iota // 0 = Data is variable, 1 = Data is constant
	DataFlagVariable                            // 0 = Array, 1 = Variable
	DataFlagRelative                            // 0 = Absolute, 1 = Relative
	DataFlagWrap                                // 0 = No wrap, 1 = Wrap
	DataFlagNonLinear                           // 0 = Linear, 1 = Non-linear
	DataFlagNoPreferred                         // 0 = Preferred state, 1 = No preferred
	DataFlagNullState                           // 0 = No null position, 1 = Null state
	DataFlagVolatile                            // 0 = Non-volatile, 1 = Volatile, not applicable to Input
	DataFlagBufferedBytes                       // 0 = Bit field, 1 = Buffered bytes
)

// MainItemType is an internal abstraction over input, output, feature and
// collection items.
type MainItemType uint8

const (
	MainItemTypeInput MainItemType = iota
	MainItemTypeOutput
	MainItemTypeFeature
	MainItemTypeCollection
)

// MainItem is a oneOf type.
type MainItem struct {
	Type       MainItemType
	DataItem   *DataItem
	Collection *Collection
}

// DataItem describes ReportCount fields of ReportSize bits sharing one
// format. Global values are only emitted when they differ from the
// previous item.
type DataItem struct {
	Flags        DataFlags
	UsagePage    uint16
	UsageIDs     []uint16
	UsageMinimum uint16
	UsageMaximum uint16
	ReportID     uint8
	ReportCount  uint32
	ReportSize   uint32

	LogicalMinimum  int32
	LogicalMaximum  int32
	PhysicalMinimum int32
	PhysicalMaximum int32
	// UnitExponent is encoded as a 4-bit two's complement nibble.
	UnitExponent int8
	Unit         uint32
}

func Input(item DataItem) MainItem {
	return MainItem{Type: MainItemTypeInput, DataItem: &item}
}

func Feature(item DataItem) MainItem {
	return MainItem{Type: MainItemTypeFeature, DataItem: &item}
}

func Nested(c Collection) MainItem {
	return MainItem{Type: MainItemTypeCollection, Collection: &c}
}
