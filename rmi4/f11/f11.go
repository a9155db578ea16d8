// Package f11 implements the legacy RMI4 2D sensor function.
package f11

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/neuroplastio/rmi4touch/rmi4"
	"github.com/neuroplastio/rmi4touch/rmi4/touch"
)

const (
	Query0Size   = 1
	Query1Size   = 6
	ControlSize  = 38
	PositionSize = 5
)

// Query1 is the first sensor query block.
type Query1 struct {
	NumberOfFingers uint8 `json:"numberOfFingers"`
	HasRelative     bool  `json:"hasRelative"`
	HasAbsolute     bool  `json:"hasAbsolute"`
	HasGestures     bool  `json:"hasGestures"`
	HasSensitivity  bool  `json:"hasSensitivity"`
	Configurable    bool  `json:"configurable"`
	NumXElectrodes  uint8 `json:"numXElectrodes"`
	NumYElectrodes  uint8 `json:"numYElectrodes"`
	MaxElectrodes   uint8 `json:"maxElectrodes"`
	AbsDataSize     uint8 `json:"absDataSize"`
	HasDribble      bool  `json:"hasDribble"`
	Tuning          uint8 `json:"tuning"`
}

func ParseQuery1(b []byte) (Query1, error) {
	if len(b) < Query1Size {
		return Query1{}, fmt.Errorf("short F11 query (%d bytes): %w", len(b), rmi4.ErrInvalidParameter)
	}
	return Query1{
		NumberOfFingers: b[0] & 0x07,
		HasRelative:     b[0]&0x08 != 0,
		HasAbsolute:     b[0]&0x10 != 0,
		HasGestures:     b[0]&0x20 != 0,
		HasSensitivity:  b[0]&0x40 != 0,
		Configurable:    b[0]&0x80 != 0,
		NumXElectrodes:  b[1],
		NumYElectrodes:  b[2],
		MaxElectrodes:   b[3],
		AbsDataSize:     b[4] & 0x03,
		HasDribble:      b[4]&0x10 != 0,
		Tuning:          b[5],
	}, nil
}

// MaxFingers decodes the finger capacity. ok is false for encodings
// outside the defined range, which fall back to rmi4.MaxTouches.
func (q Query1) MaxFingers() (n int, ok bool) {
	switch {
	case q.NumberOfFingers < 5:
		return int(q.NumberOfFingers) + 1, true
	case q.NumberOfFingers == 5:
		return 10, true
	}
	return rmi4.MaxTouches, false
}

// Settings is the logical form of the control block.
type Settings struct {
	ReportingMode           uint32 `json:"reportingMode"`
	AbsPosFilt              uint32 `json:"absPosFilt"`
	RelPosFilt              uint32 `json:"relPosFilt"`
	RelBallistics           uint32 `json:"relBallistics"`
	Dribble                 uint32 `json:"dribble"`
	PalmDetectThreshold     uint32 `json:"palmDetectThreshold"`
	MotionSensitivity       uint32 `json:"motionSensitivity"`
	ManTrackEn              uint32 `json:"manTrackEn"`
	ManTrackedFinger        uint32 `json:"manTrackedFinger"`
	DeltaXPosThreshold      uint32 `json:"deltaXPosThreshold"`
	DeltaYPosThreshold      uint32 `json:"deltaYPosThreshold"`
	Velocity                uint32 `json:"velocity"`
	Acceleration            uint32 `json:"acceleration"`
	SensorMaxXPos           uint32 `json:"sensorMaxXPos"`
	SensorMaxYPos           uint32 `json:"sensorMaxYPos"`
	ZTouchThreshold         uint32 `json:"zTouchThreshold"`
	ZHysteresis             uint32 `json:"zHysteresis"`
	SmallZThreshold         uint32 `json:"smallZThreshold"`
	SmallZScaleFactor       uint32 `json:"smallZScaleFactor"`
	LargeZScaleFactor       uint32 `json:"largeZScaleFactor"`
	AlgorithmSelection      uint32 `json:"algorithmSelection"`
	WxScaleFactor           uint32 `json:"wxScaleFactor"`
	WxOffset                uint32 `json:"wxOffset"`
	WyScaleFactor           uint32 `json:"wyScaleFactor"`
	WyOffset                uint32 `json:"wyOffset"`
	XPitch                  uint32 `json:"xPitch"`
	YPitch                  uint32 `json:"yPitch"`
	FingerWidthX            uint32 `json:"fingerWidthX"`
	FingerWidthY            uint32 `json:"fingerWidthY"`
	ReportMeasuredSize      uint32 `json:"reportMeasuredSize"`
	SegmentationSensitivity uint32 `json:"segmentationSensitivity"`
	XClipLo                 uint32 `json:"xClipLo"`
	XClipHi                 uint32 `json:"xClipHi"`
	YClipLo                 uint32 `json:"yClipLo"`
	YClipHi                 uint32 `json:"yClipHi"`
	MinFingerSeparation     uint32 `json:"minFingerSeparation"`
	MaxFingerMovement       uint32 `json:"maxFingerMovement"`
}

// Control is the physical control block.
type Control [ControlSize]byte

func (s Settings) Physical() Control {
	var c Control
	c[0] = byte(s.ReportingMode&0x07) |
		byte(s.AbsPosFilt&0x01)<<3 |
		byte(s.RelPosFilt&0x01)<<4 |
		byte(s.RelBallistics&0x01)<<5 |
		byte(s.Dribble&0x01)<<6
	c[1] = byte(s.PalmDetectThreshold&0x0F) |
		byte(s.MotionSensitivity&0x03)<<4 |
		byte(s.ManTrackEn&0x01)<<6 |
		byte(s.ManTrackedFinger&0x01)<<7
	c[2] = byte(s.DeltaXPosThreshold)
	c[3] = byte(s.DeltaYPosThreshold)
	c[4] = byte(s.Velocity)
	c[5] = byte(s.Acceleration)
	c[6] = byte(s.SensorMaxXPos)
	c[7] = byte((s.SensorMaxXPos & 0xF00) >> 8)
	c[8] = byte(s.SensorMaxYPos)
	c[9] = byte((s.SensorMaxYPos & 0xF00) >> 8)
	c[10] = byte(s.ZTouchThreshold)
	c[11] = byte(s.ZHysteresis)
	c[12] = byte(s.SmallZThreshold)
	putUint16(c[13:], s.SmallZScaleFactor)
	putUint16(c[15:], s.LargeZScaleFactor)
	c[17] = byte(s.AlgorithmSelection)
	c[18] = byte(s.WxScaleFactor)
	c[19] = byte(s.WxOffset)
	c[20] = byte(s.WyScaleFactor)
	c[21] = byte(s.WyOffset)
	putUint16(c[22:], s.XPitch)
	putUint16(c[24:], s.YPitch)
	putUint16(c[26:], s.FingerWidthX)
	putUint16(c[28:], s.FingerWidthY)
	c[30] = byte(s.ReportMeasuredSize)
	c[31] = byte(s.SegmentationSensitivity)
	c[32] = byte(s.XClipLo)
	c[33] = byte(s.XClipHi)
	c[34] = byte(s.YClipLo)
	c[35] = byte(s.YClipHi)
	c[36] = byte(s.MinFingerSeparation)
	c[37] = byte(s.MaxFingerMovement)
	return c
}

func putUint16(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

// Sensor drives an F11 instance.
type Sensor struct {
	log        *zap.Logger
	desc       rmi4.Function
	query      Query1
	maxFingers int
}

func New(desc rmi4.Function, log *zap.Logger) *Sensor {
	return &Sensor{
		log:        log,
		desc:       desc,
		maxFingers: rmi4.MaxTouches,
	}
}

func (s *Sensor) Number() rmi4.FunctionNumber {
	return rmi4.Function2DLegacy
}

func (s *Sensor) Descriptor() rmi4.Function {
	return s.desc
}

func (s *Sensor) MaxFingers() int {
	return s.maxFingers
}

func (s *Sensor) Query() Query1 {
	return s.query
}

// Configure reads the sensor query, writes the control block and
// returns the interrupt enable bit of the function.
func (s *Sensor) Configure(r *rmi4.PageRouter, settings Settings) (uint8, error) {
	s.maxFingers = rmi4.MaxTouches
	buf := make([]byte, Query1Size)
	if err := r.Read(s.desc.Page, s.desc.QueryBase+Query0Size, buf); err != nil {
		return 0, fmt.Errorf("failed to read F11 query: %w", err)
	}
	q, err := ParseQuery1(buf)
	if err != nil {
		return 0, err
	}
	s.query = q
	n, ok := q.MaxFingers()
	if !ok {
		s.log.Warn("Unexpected finger count encoding, using default",
			zap.Uint8("encoded", q.NumberOfFingers),
			zap.Int("maxFingers", n))
	}
	s.maxFingers = n
	s.log.Debug("F11 max fingers", zap.Int("maxFingers", n))

	ctrl := settings.Physical()
	if err := r.Write(s.desc.Page, s.desc.ControlBase, ctrl[:]); err != nil {
		return 0, fmt.Errorf("failed to write F11 control: %w", err)
	}
	return s.desc.InterruptBit(), nil
}

func (s *Sensor) statusSize() int {
	return (s.maxFingers + 3) / 4
}

// Read fetches finger states and the positions of every slot up to the
// highest one that is tracked or newly reported.
func (s *Sensor) Read(r *rmi4.PageRouter, cache *touch.Cache) (touch.Scan, error) {
	var scan touch.Scan
	statusBuf := make([]byte, s.statusSize())
	if err := r.Read(s.desc.Page, s.desc.DataBase, statusBuf); err != nil {
		return scan, fmt.Errorf("failed to read finger status: %w", err)
	}
	var states uint32
	for i, b := range statusBuf {
		states |= uint32(b) << (8 * i)
	}
	state := func(slot int) touch.Status {
		return touch.Status(states >> (2 * slot) & 0x03)
	}
	highest := 0
	for slot := 0; slot < s.maxFingers; slot++ {
		if cache.Valid.IsSet(slot) {
			highest = slot
		}
	}
	for slot := highest + 1; slot < s.maxFingers; slot++ {
		if state(slot).Present() {
			highest = slot
		}
	}
	posBuf := make([]byte, PositionSize*(highest+1))
	if err := r.Read(s.desc.Page, s.desc.DataBase+uint8(len(statusBuf)), posBuf); err != nil {
		return scan, fmt.Errorf("failed to read finger positions: %w", err)
	}
	for slot := 0; slot < s.maxFingers; slot++ {
		scan.Slots[slot].Status = state(slot)
		if slot > highest {
			continue
		}
		pos := posBuf[slot*PositionSize:]
		scan.Slots[slot].X = uint16(pos[2]&0x0F) | uint16(pos[0])<<4
		scan.Slots[slot].Y = uint16(pos[2]>>4) | uint16(pos[1])<<4
	}
	return scan, nil
}
