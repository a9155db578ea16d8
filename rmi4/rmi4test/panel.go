package rmi4test

// Register map of the simulated panel. Page 0 carries F34, F01 and the 2D
// sensor; page 1 carries F54 and F1A so button service crosses pages.
const (
	F01Data    = 0x00
	F01Control = 0x58
	F01Command = 0x5D
	F01Query   = 0xB0

	SensorQuery   = 0x60
	SensorControl = 0x70
	SensorData    = 0x06

	ButtonsPage    = 1
	ButtonsQuery   = 0x00
	ButtonsControl = 0x02
	ButtonsData    = 0x10

	// F12 control register 20 is the second present control register.
	ReportingControl = SensorControl + 1

	IRQTouch   = 0x04
	IRQButtons = 0x10

	ProductID = "s3203"
)

type panelOptions struct {
	legacy     bool
	maxFingers int
}

type PanelOption func(*panelOptions)

// WithLegacySensor lays out an F11 sensor instead of F12.
func WithLegacySensor() PanelOption {
	return func(o *panelOptions) {
		o.legacy = true
	}
}

// WithMaxFingers sets the finger capacity reported by the sensor query.
func WithMaxFingers(n int) PanelOption {
	return func(o *panelOptions) {
		o.maxFingers = n
	}
}

// Panel is a Device programmed with a complete function table.
type Panel struct {
	*Device
	legacy     bool
	maxFingers int
}

func NewPanel(opts ...PanelOption) *Panel {
	o := panelOptions{maxFingers: 10}
	for _, opt := range opts {
		opt(&o)
	}
	p := &Panel{
		Device:     NewDevice(),
		legacy:     o.legacy,
		maxFingers: o.maxFingers,
	}
	sensor := byte(0x12)
	if o.legacy {
		sensor = 0x11
	}
	// Page 0, descending from 0xE9.
	p.Set(0, 0xE9, 0xC8, 0xCA, 0xCC, 0xCE, 0x02, 0x34)
	p.Set(0, 0xE3, F01Query, F01Command, F01Control, F01Data, 0x02, 0x01)
	p.Set(0, 0xDD, SensorQuery, 0x00, SensorControl, SensorData, 0x01, sensor)
	// Page 1.
	p.Set(1, 0xE9, 0x40, 0x48, 0x50, 0x58, 0x01, 0x54)
	p.Set(1, 0xE3, ButtonsQuery, 0x00, ButtonsControl, ButtonsData, 0x01, 0x1A)

	query := []byte{
		0x01,       // manufacturer
		0x00,       // properties
		0x21, 0x32, // product info
		0x0C, 0x11, // date
		0x01, 0x00, 0x02, 0x00, 0x03,
	}
	query = append(query, []byte(ProductID)...)
	p.Set(0, F01Query, query...)
	p.ClearOnRead(0, F01Data+1, 1)

	if o.legacy {
		p.setupLegacy()
	} else {
		p.setupSensor()
	}
	// F1A: three buttons.
	p.Set(ButtonsPage, ButtonsQuery, 0x02, 0x01)
	return p
}

func (p *Panel) setupLegacy() {
	var fingers byte
	switch {
	case p.maxFingers >= 10:
		fingers = 5
	case p.maxFingers > 0:
		fingers = byte(p.maxFingers - 1)
	}
	p.Set(0, SensorQuery, 0x00)
	// Query1: absolute reporting, 15x25 electrodes.
	p.Set(0, SensorQuery+1, fingers|0x10, 15, 25, 40, 0x00, 0x00)
}

func (p *Panel) setupSensor() {
	p.Set(0, SensorQuery, 0x01)
	// Query descriptor: empty.
	p.SetPacket(0, SensorQuery+1, 0x00)
	// Control descriptor: registers 8, 20 and 23.
	p.SetPacket(0, SensorQuery+4, 0x04)
	p.SetPacket(0, SensorQuery+5, 0x06, 0x00, 0x01, 0x90)
	p.SetPacket(0, SensorQuery+6, 14, 0x01, 3, 0x01, 5, 0x01)
	// Data descriptor: register 1 with one subpacket per finger and
	// register 15.
	subpackets := []byte{0x7F, 0x07}
	if p.maxFingers < 7 {
		subpackets = []byte{byte(1<<p.maxFingers - 1)}
	} else {
		subpackets[0] |= 0x80
		subpackets[1] = byte(1<<(p.maxFingers-7) - 1)
	}
	structBuf := append([]byte{byte(8 * p.maxFingers)}, subpackets...)
	structBuf = append(structBuf, 2, 0x01)
	p.SetPacket(0, SensorQuery+7, 0x03)
	p.SetPacket(0, SensorQuery+8, byte(len(structBuf)), 0x02, 0x80)
	p.SetPacket(0, SensorQuery+9, structBuf...)
	p.Set(0, ReportingControl, 0x01, 0x10, 0x10)
}

// Touch reports a finger in slot at x, y on the next scan.
func (p *Panel) Touch(slot int, x, y uint16) {
	if p.legacy {
		p.setLegacyState(slot, 1)
		base := SensorData + (p.maxFingers+3)/4 + slot*5
		p.Set(0, uint8(base),
			byte(x>>4), byte(y>>4), byte(x&0x0F)|byte(y&0x0F)<<4, 0x33, 0x40)
		return
	}
	base := SensorData + slot*8
	p.Set(0, uint8(base), 0x01, byte(x), byte(x>>8), byte(y), byte(y>>8), 0x40, 0x03, 0x03)
}

// Lift reports slot as not present on the next scan.
func (p *Panel) Lift(slot int) {
	if p.legacy {
		p.setLegacyState(slot, 0)
		return
	}
	p.Set(0, uint8(SensorData+slot*8), 0x00)
}

func (p *Panel) setLegacyState(slot int, state byte) {
	addr := uint8(SensorData + slot/4)
	shift := uint(slot%4) * 2
	v := p.Get(0, addr, 1)[0]
	v = v&^(0x03<<shift) | state<<shift
	p.Set(0, addr, v)
}

// Buttons sets the raw F1A button bitmap.
func (p *Panel) Buttons(mask byte) {
	p.Set(ButtonsPage, ButtonsData, mask)
}

// Interrupt raises interrupt cause bits in the F01 interrupt status.
func (p *Panel) Interrupt(causes byte) {
	v := p.Get(0, F01Data+1, 1)[0]
	p.Set(0, F01Data+1, v|causes)
}

// Status sets the F01 device status register.
func (p *Panel) Status(status byte) {
	p.Set(0, F01Data, status)
}
