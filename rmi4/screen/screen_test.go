package screen

import "testing"

func TestTranslate(t *testing.T) {
	tests := []struct {
		name  string
		props Props
		x, y  uint16
		wx    uint16
		wy    uint16
	}{
		{
			name:  "identity",
			props: DefaultProps(),
			x:     100,
			y:     200,
			wx:    100,
			wy:    200,
		},
		{
			name: "swap and invert",
			props: Props{
				TouchSwapAxes:         true,
				TouchInvertXAxis:      true,
				TouchPhysicalWidth:    1000,
				TouchPhysicalHeight:   2000,
				DisplayViewableWidth:  1000,
				DisplayViewableHeight: 2000,
			},
			x:  100,
			y:  300,
			wx: 699,
			wy: 100,
		},
		{
			name: "invert clamps",
			props: Props{
				TouchInvertYAxis:    true,
				TouchPhysicalWidth:  100,
				TouchPhysicalHeight: 100,
			},
			x:  5,
			y:  250,
			wx: 5,
			wy: 0,
		},
		{
			name: "scale with offset",
			props: Props{
				TouchPhysicalWidth:     2000,
				TouchPhysicalHeight:    4000,
				DisplayViewableWidth:   1000,
				DisplayViewableHeight:  1000,
				DisplayViewableOffsetX: 10,
				DisplayViewableOffsetY: 20,
			},
			x:  1000,
			y:  4000,
			wx: 510,
			wy: 1019,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			x, y := test.props.Translate(test.x, test.y)
			if x != test.wx || y != test.wy {
				t.Errorf("expected (%d,%d), got (%d,%d)", test.wx, test.wy, x, y)
			}
		})
	}
}

func TestButtonAt(t *testing.T) {
	p := DefaultProps()
	tests := []struct {
		x, y uint16
		want Button
	}{
		{100, 1350, ButtonBack},
		{400, 1350, ButtonStart},
		{600, 1350, ButtonSearch},
		{250, 1350, ButtonUnknown},
		{100, 1290, ButtonUnknown},
		{100, 1280, ButtonNone},
		{0, 1350, ButtonNone},
		{400, 600, ButtonNone},
	}
	for _, test := range tests {
		if got := p.ButtonAt(test.x, test.y); got != test.want {
			t.Errorf("(%d,%d): expected %s, got %s", test.x, test.y, test.want, got)
		}
	}
}
