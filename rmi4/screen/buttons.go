package screen

// Button is a capacitive key emulated by a screen region.
type Button uint8

const (
	ButtonNone Button = iota
	ButtonBack
	ButtonStart
	ButtonSearch
	ButtonUnknown
)

func (b Button) String() string {
	switch b {
	case ButtonNone:
		return "none"
	case ButtonBack:
		return "back"
	case ButtonStart:
		return "start"
	case ButtonSearch:
		return "search"
	}
	return "unknown"
}

type area struct {
	xMin, yMin, xMax, yMax uint32
}

// contains uses exclusive bounds on every edge.
func (a area) contains(x, y uint32) bool {
	return x > a.xMin && x < a.xMax && y > a.yMin && y < a.yMax
}

var (
	buttonArea = area{0, 1280, 768, 1390}
	backArea   = area{0, 1300, 216, 1390}
	startArea  = area{297, 1300, 472, 1390}
	searchArea = area{553, 1300, 768, 1390}
)

// ButtonAt classifies a sensor position against the key strip below the
// display. Positions outside the strip return ButtonNone.
func (p Props) ButtonAt(x, y uint16) Button {
	ox, oy := p.orient(uint32(x), uint32(y))
	if !buttonArea.contains(ox, oy) {
		return ButtonNone
	}
	switch {
	case backArea.contains(ox, oy):
		return ButtonBack
	case startArea.contains(ox, oy):
		return ButtonStart
	case searchArea.contains(ox, oy):
		return ButtonSearch
	}
	return ButtonUnknown
}
