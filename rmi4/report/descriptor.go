package report

import (
	"github.com/neuroplastio/rmi4touch/pkg/hiddesc"
	"github.com/neuroplastio/rmi4touch/rmi4"
)

// Usage pages and usages of the report descriptor.
const (
	pageGenericDesktop = 0x01
	pageKeyboard       = 0x07
	pageDigitizer      = 0x0D
	pageConsumer       = 0x0C

	usageTouchScreen   = 0x04
	usageConfiguration = 0x0E
	usageFinger        = 0x22
	usageInRange       = 0x32
	usageTipSwitch     = 0x42
	usageContactID     = 0x51
	usageInputMode     = 0x52
	usageDeviceIndex   = 0x53
	usageContactCount  = 0x54
	usageMaxCount      = 0x55
	usageScanTime      = 0x56
	usageX             = 0x30
	usageY             = 0x31
	usageKeyboard      = 0x06
	usageConsumer      = 0x01
	usageSearch        = 0x221
	usageBack          = 0x224
	usageConfigControl = 0x183

	unitCentimeter = 0x11
	unitSecond     = 0x1001
)

const (
	dataVar   = hiddesc.DataFlagVariable
	constVar  = hiddesc.DataFlagConstant | hiddesc.DataFlagVariable
	maxInputs = 10
)

func finger(width, height uint16) hiddesc.MainItem {
	return hiddesc.Nested(hiddesc.Collection{
		Type:      hiddesc.CollectionTypeLogical,
		UsagePage: pageDigitizer,
		Items: []hiddesc.MainItem{
			hiddesc.Input(hiddesc.DataItem{
				Flags:          dataVar,
				UsageIDs:       []uint16{usageTipSwitch},
				ReportID:       uint8(IDTouch),
				LogicalMaximum: 1,
				ReportCount:    1,
				ReportSize:     1,
			}),
			hiddesc.Input(hiddesc.DataItem{
				Flags:          dataVar,
				UsageIDs:       []uint16{usageInRange},
				ReportID:       uint8(IDTouch),
				LogicalMaximum: 1,
				ReportCount:    1,
				ReportSize:     1,
			}),
			hiddesc.Input(hiddesc.DataItem{
				Flags:          constVar,
				ReportID:       uint8(IDTouch),
				LogicalMaximum: 1,
				ReportCount:    6,
				ReportSize:     1,
			}),
			hiddesc.Input(hiddesc.DataItem{
				Flags:          dataVar,
				UsageIDs:       []uint16{usageContactID},
				ReportID:       uint8(IDTouch),
				LogicalMaximum: rmi4.MaxTouches - 1,
				ReportCount:    1,
				ReportSize:     8,
			}),
			hiddesc.Input(hiddesc.DataItem{
				Flags:           dataVar,
				UsagePage:       pageGenericDesktop,
				UsageIDs:        []uint16{usageX},
				ReportID:        uint8(IDTouch),
				LogicalMaximum:  int32(width),
				PhysicalMaximum: 0x02CE,
				UnitExponent:    -2,
				Unit:            unitCentimeter,
				ReportCount:     1,
				ReportSize:      16,
			}),
			hiddesc.Input(hiddesc.DataItem{
				Flags:           dataVar,
				UsagePage:       pageGenericDesktop,
				UsageIDs:        []uint16{usageY},
				ReportID:        uint8(IDTouch),
				LogicalMaximum:  int32(height),
				PhysicalMaximum: 0x04EB,
				UnitExponent:    -2,
				Unit:            unitCentimeter,
				ReportCount:     1,
				ReportSize:      16,
			}),
		},
	})
}

// Descriptor builds the HID report descriptor. The X and Y logical
// maxima are the viewable display size.
func Descriptor(width, height uint16) *hiddesc.ReportDescriptor {
	touch := hiddesc.Collection{
		Type:      hiddesc.CollectionTypeApplication,
		UsagePage: pageDigitizer,
		UsageID:   usageTouchScreen,
	}
	for i := 0; i < ContactsPerReport; i++ {
		touch.Items = append(touch.Items, finger(width, height))
	}
	touch.Items = append(touch.Items,
		hiddesc.Input(hiddesc.DataItem{
			Flags:          dataVar,
			UsagePage:      pageDigitizer,
			UsageIDs:       []uint16{usageContactCount},
			ReportID:       uint8(IDTouch),
			LogicalMaximum: rmi4.MaxTouches,
			ReportCount:    1,
			ReportSize:     8,
		}),
		hiddesc.Input(hiddesc.DataItem{
			Flags:           dataVar,
			UsageIDs:        []uint16{usageScanTime},
			ReportID:        uint8(IDTouch),
			LogicalMaximum:  0xFFFF,
			PhysicalMaximum: 0xFFFF,
			UnitExponent:    -4,
			Unit:            unitSecond,
			ReportCount:     1,
			ReportSize:      16,
		}),
		hiddesc.Feature(hiddesc.DataItem{
			Flags:          dataVar,
			UsageIDs:       []uint16{usageMaxCount},
			ReportID:       uint8(IDMaxCount),
			LogicalMaximum: ContactsPerReport,
			ReportCount:    1,
			ReportSize:     8,
		}),
	)

	config := hiddesc.Collection{
		Type:      hiddesc.CollectionTypeApplication,
		UsagePage: pageDigitizer,
		UsageID:   usageConfiguration,
		Items: []hiddesc.MainItem{
			hiddesc.Nested(hiddesc.Collection{
				Type:    hiddesc.CollectionTypePhysical,
				UsageID: usageFinger,
				Items: []hiddesc.MainItem{
					hiddesc.Feature(hiddesc.DataItem{
						Flags:          dataVar,
						UsageIDs:       []uint16{usageInputMode, usageDeviceIndex},
						ReportID:       uint8(IDFeature),
						LogicalMaximum: maxInputs,
						ReportCount:    2,
						ReportSize:     8,
					}),
				},
			}),
		},
	}

	keyboard := hiddesc.Collection{
		Type:      hiddesc.CollectionTypeApplication,
		UsagePage: pageGenericDesktop,
		UsageID:   usageKeyboard,
		Items: []hiddesc.MainItem{
			hiddesc.Input(hiddesc.DataItem{
				Flags:          dataVar,
				UsagePage:      pageKeyboard,
				UsageMinimum:   0xE0,
				UsageMaximum:   0xE7,
				ReportID:       uint8(IDKeyboard),
				LogicalMaximum: 1,
				ReportCount:    8,
				ReportSize:     1,
			}),
			hiddesc.Input(hiddesc.DataItem{
				UsagePage:      pageKeyboard,
				UsageMinimum:   0x00,
				UsageMaximum:   0x65,
				ReportID:       uint8(IDKeyboard),
				LogicalMaximum: 0x65,
				ReportCount:    1,
				ReportSize:     8,
			}),
		},
	}

	consumer := hiddesc.Collection{
		Type:      hiddesc.CollectionTypeApplication,
		UsagePage: pageConsumer,
		UsageID:   usageConsumer,
		Items: []hiddesc.MainItem{
			hiddesc.Input(hiddesc.DataItem{
				Flags:          dataVar,
				UsageIDs:       []uint16{usageSearch, usageBack, usageConfigControl},
				ReportID:       uint8(IDConsumer),
				LogicalMaximum: 1,
				ReportCount:    3,
				ReportSize:     1,
			}),
			hiddesc.Input(hiddesc.DataItem{
				Flags:          constVar,
				ReportID:       uint8(IDConsumer),
				LogicalMaximum: 1,
				ReportCount:    1,
				ReportSize:     5,
			}),
		},
	}

	return &hiddesc.ReportDescriptor{
		Collections: []hiddesc.Collection{touch, config, keyboard, consumer},
	}
}

// EncodeDescriptor returns the binary report descriptor.
func EncodeDescriptor(width, height uint16) ([]byte, error) {
	return hiddesc.Encode(Descriptor(width, height))
}
