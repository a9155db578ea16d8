// Package screen maps sensor coordinates onto the display.
package screen

const (
	DefaultWidth  = 768
	DefaultHeight = 1280
)

// Props describes how the touch sensor is mounted over the display.
type Props struct {
	TouchSwapAxes       bool   `json:"touchSwapAxes"`
	TouchInvertXAxis    bool   `json:"touchInvertXAxis"`
	TouchInvertYAxis    bool   `json:"touchInvertYAxis"`
	TouchPhysicalWidth  uint32 `json:"touchPhysicalWidth"`
	TouchPhysicalHeight uint32 `json:"touchPhysicalHeight"`

	DisplayViewableWidth   uint32 `json:"displayViewableWidth"`
	DisplayViewableHeight  uint32 `json:"displayViewableHeight"`
	DisplayViewableOffsetX uint32 `json:"displayViewableOffsetX"`
	DisplayViewableOffsetY uint32 `json:"displayViewableOffsetY"`
}

func DefaultProps() Props {
	return Props{
		TouchPhysicalWidth:    DefaultWidth,
		TouchPhysicalHeight:   DefaultHeight,
		DisplayViewableWidth:  DefaultWidth,
		DisplayViewableHeight: DefaultHeight,
	}
}

// orient applies axis swap and inversion in sensor space.
func (p Props) orient(x, y uint32) (uint32, uint32) {
	if p.TouchSwapAxes {
		x, y = y, x
	}
	if p.TouchInvertXAxis && p.TouchPhysicalWidth > 0 {
		if x >= p.TouchPhysicalWidth {
			x = p.TouchPhysicalWidth - 1
		}
		x = p.TouchPhysicalWidth - x - 1
	}
	if p.TouchInvertYAxis && p.TouchPhysicalHeight > 0 {
		if y >= p.TouchPhysicalHeight {
			y = p.TouchPhysicalHeight - 1
		}
		y = p.TouchPhysicalHeight - y - 1
	}
	return x, y
}

func scale(v, from, to uint32) uint32 {
	if from == 0 || to == 0 || from == to {
		return v
	}
	if v >= from {
		v = from - 1
	}
	return uint32(uint64(v) * uint64(to) / uint64(from))
}

// Translate converts a sensor position into display coordinates.
func (p Props) Translate(x, y uint16) (uint16, uint16) {
	ox, oy := p.orient(uint32(x), uint32(y))
	ox = scale(ox, p.TouchPhysicalWidth, p.DisplayViewableWidth) + p.DisplayViewableOffsetX
	oy = scale(oy, p.TouchPhysicalHeight, p.DisplayViewableHeight) + p.DisplayViewableOffsetY
	return uint16(ox), uint16(oy)
}
