// Package f1a drives the 0D capacitive button function.
package f1a

import (
	"fmt"

	"github.com/neuroplastio/rmi4touch/rmi4"
)

const QuerySize = 2

// Capability flags of query register 1.
const (
	HasGeneralControl uint8 = 1 << iota
	HasInterruptEnable
	HasMultiButtonSelect
	HasTxRxMapping
	HasPerButtonThreshold
	HasReleaseThreshold
	HasStrongButtonHysteresis
	HasFilterStrength
)

type Query struct {
	MaxButtonCount int   `json:"maxButtonCount"`
	Capabilities   uint8 `json:"capabilities"`
}

func ParseQuery(b []byte) (Query, error) {
	if len(b) < QuerySize {
		return Query{}, fmt.Errorf("short F1A query (%d bytes): %w", len(b), rmi4.ErrInvalidParameter)
	}
	return Query{
		MaxButtonCount: int(b[0]&0x07) + 1,
		Capabilities:   b[1],
	}, nil
}

func (q Query) Has(flag uint8) bool {
	return q.Capabilities&flag != 0
}

// Buttons drives an F1A instance.
type Buttons struct {
	desc  rmi4.Function
	query Query
}

func New(desc rmi4.Function) *Buttons {
	return &Buttons{desc: desc}
}

func (b *Buttons) Descriptor() rmi4.Function {
	return b.desc
}

func (b *Buttons) Query() Query {
	return b.query
}

// Configure reads the button query and returns the interrupt enable bit
// of the function.
func (b *Buttons) Configure(r *rmi4.PageRouter) (uint8, error) {
	buf := make([]byte, QuerySize)
	if err := r.Read(b.desc.Page, b.desc.QueryBase, buf); err != nil {
		return 0, fmt.Errorf("failed to read F1A query: %w", err)
	}
	q, err := ParseQuery(buf)
	if err != nil {
		return 0, err
	}
	b.query = q
	return b.desc.InterruptBit(), nil
}

// ReadData returns the raw button bitmap, button 0 in bit 0.
func (b *Buttons) ReadData(r *rmi4.PageRouter) (uint8, error) {
	buf := []byte{0}
	if err := r.Read(b.desc.Page, b.desc.DataBase, buf); err != nil {
		return 0, fmt.Errorf("failed to read F1A data: %w", err)
	}
	return buf[0], nil
}
