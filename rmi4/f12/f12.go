// Package f12 implements the self-describing RMI4 2D sensor function.
package f12

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/neuroplastio/rmi4touch/rmi4"
	"github.com/neuroplastio/rmi4touch/rmi4/touch"
)

const (
	// BytesPerObject is the size of one object in data register 1.
	BytesPerObject = 8
	// DescriptorStride separates the query, control and data register
	// descriptors.
	DescriptorStride = 3

	RegisterObjects          = 1
	RegisterReportingControl = 20
	ReportingControlSize     = 3

	queryHasRegisterDescriptors = 0x01
)

type ReportingMode uint8

const (
	ReportingContinuous ReportingMode = 0
	ReportingReduced    ReportingMode = 1

	reportingModeMask = 0x07
)

type ObjectType uint8

const (
	ObjectNone         ObjectType = 0x00
	ObjectFinger       ObjectType = 0x01
	ObjectStylus       ObjectType = 0x02
	ObjectPalm         ObjectType = 0x03
	ObjectUnclassified ObjectType = 0x04
	ObjectGlovedFinger ObjectType = 0x06
	ObjectNarrow       ObjectType = 0x07
	ObjectHandEdge     ObjectType = 0x08
	ObjectCover        ObjectType = 0x0A
	ObjectStylus2      ObjectType = 0x0B
	ObjectEraser       ObjectType = 0x0C
	ObjectSmall        ObjectType = 0x0D
)

// Present reports whether the object counts as a contact.
func (t ObjectType) Present() bool {
	return t == ObjectFinger || t == ObjectStylus
}

// Layout is the register layout negotiated with the sensor.
type Layout struct {
	Control     *rmi4.RegisterDescriptor `json:"control"`
	Data        *rmi4.RegisterDescriptor `json:"data"`
	PacketSize  int                      `json:"packetSize"`
	Data1Offset int                      `json:"data1Offset"`
	MaxFingers  int                      `json:"maxFingers"`
}

// Sensor drives an F12 instance.
type Sensor struct {
	log    *zap.Logger
	desc   rmi4.Function
	layout Layout
}

func New(desc rmi4.Function, log *zap.Logger) *Sensor {
	return &Sensor{
		log:  log,
		desc: desc,
	}
}

func (s *Sensor) Number() rmi4.FunctionNumber {
	return rmi4.Function2D
}

func (s *Sensor) Descriptor() rmi4.Function {
	return s.desc
}

func (s *Sensor) MaxFingers() int {
	return s.layout.MaxFingers
}

func (s *Sensor) Layout() Layout {
	return s.layout
}

// Configure reads the register descriptors, derives the data layout and
// tries to select continuous reporting. It returns the interrupt enable
// bit of the function.
func (s *Sensor) Configure(r *rmi4.PageRouter) (uint8, error) {
	if err := r.SelectPage(s.desc.Page); err != nil {
		return 0, err
	}
	bus := r.Bus()
	query := []byte{0}
	if err := bus.ReadRegisters(s.desc.QueryBase, query); err != nil {
		return 0, fmt.Errorf("failed to read F12 query: %w", err)
	}
	if query[0]&queryHasRegisterDescriptors == 0 {
		return 0, fmt.Errorf("F12 without register descriptors: %w", rmi4.ErrInvalidParameter)
	}
	// The query register descriptor comes first and is not needed.
	addr := s.desc.QueryBase + 1 + DescriptorStride
	control, err := rmi4.ReadRegisterDescriptor(bus, addr)
	if err != nil {
		return 0, fmt.Errorf("failed to read control register descriptor: %w", err)
	}
	addr += DescriptorStride
	data, err := rmi4.ReadRegisterDescriptor(bus, addr)
	if err != nil {
		return 0, fmt.Errorf("failed to read data register descriptor: %w", err)
	}
	layout, err := NewLayout(control, data)
	if err != nil {
		return 0, err
	}
	s.layout = layout
	s.log.Debug("F12 layout",
		zap.Int("packetSize", layout.PacketSize),
		zap.Int("data1Offset", layout.Data1Offset),
		zap.Int("maxFingers", layout.MaxFingers))

	if err := s.SetReportingMode(r, ReportingContinuous); err != nil {
		s.log.Warn("Failed to set continuous reporting mode", zap.Error(err))
	}
	return s.desc.InterruptBit(), nil
}

// NewLayout derives packet size, object offset and finger capacity from
// the control and data register descriptors.
func NewLayout(control, data *rmi4.RegisterDescriptor) (Layout, error) {
	l := Layout{
		Control:    control,
		Data:       data,
		PacketSize: data.Size(),
	}
	if item, ok := data.Item(0); ok {
		l.Data1Offset = int(item.Size)
	}
	objects, ok := data.Item(RegisterObjects)
	if !ok {
		return Layout{}, fmt.Errorf("F12 data register %d missing: %w", RegisterObjects, rmi4.ErrInvalidDeviceState)
	}
	l.MaxFingers = objects.SubPackets
	if room := (l.PacketSize - l.Data1Offset) / BytesPerObject; l.MaxFingers > room {
		l.MaxFingers = room
	}
	if l.MaxFingers > rmi4.MaxTouches {
		l.MaxFingers = rmi4.MaxTouches
	}
	return l, nil
}

// SetReportingMode rewrites the mode bits of control register 20.
func (s *Sensor) SetReportingMode(r *rmi4.PageRouter, mode ReportingMode) error {
	if s.layout.Control == nil {
		return fmt.Errorf("F12 not configured: %w", rmi4.ErrInvalidDeviceState)
	}
	index := s.layout.Control.Index(RegisterReportingControl)
	if index < 0 {
		return fmt.Errorf("F12 control register %d missing: %w", RegisterReportingControl, rmi4.ErrInvalidDeviceState)
	}
	if size := s.layout.Control.Items[index].Size; size != ReportingControlSize {
		return fmt.Errorf("unexpected F12 control register %d size %d: %w", RegisterReportingControl, size, rmi4.ErrInvalidDeviceState)
	}
	addr := s.desc.ControlBase + uint8(index)
	buf := make([]byte, ReportingControlSize)
	if err := r.Read(s.desc.Page, addr, buf); err != nil {
		return fmt.Errorf("failed to read reporting control: %w", err)
	}
	buf[0] = buf[0]&^reportingModeMask | uint8(mode)&reportingModeMask
	if err := r.Write(s.desc.Page, addr, buf); err != nil {
		return fmt.Errorf("failed to write reporting control: %w", err)
	}
	return nil
}

// Read fetches one data packet and decodes the object list.
func (s *Sensor) Read(r *rmi4.PageRouter, _ *touch.Cache) (touch.Scan, error) {
	scan := touch.Scan{HoldPosition: true}
	if s.layout.PacketSize == 0 {
		return scan, fmt.Errorf("F12 not configured: %w", rmi4.ErrInvalidDeviceState)
	}
	buf := make([]byte, s.layout.PacketSize)
	if err := r.Read(s.desc.Page, s.desc.DataBase, buf); err != nil {
		return scan, fmt.Errorf("failed to read F12 data: %w", err)
	}
	objects := buf[s.layout.Data1Offset:]
	for slot := 0; slot < s.layout.MaxFingers; slot++ {
		obj := objects[slot*BytesPerObject : (slot+1)*BytesPerObject]
		if ObjectType(obj[0]).Present() {
			scan.Slots[slot].Status = touch.StatusAccurate
		}
		scan.Slots[slot].X = uint16(obj[1]) | uint16(obj[2])<<8
		scan.Slots[slot].Y = uint16(obj[3]) | uint16(obj[4])<<8
	}
	return scan, nil
}
