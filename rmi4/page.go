package rmi4

import "fmt"

// PageRouter tracks the selected register page and switches it only
// when an access targets another page.
type PageRouter struct {
	bus  Bus
	page uint8
}

func NewPageRouter(bus Bus) *PageRouter {
	return &PageRouter{bus: bus}
}

func (r *PageRouter) Bus() Bus {
	return r.bus
}

// Page returns the last page that was selected successfully.
func (r *PageRouter) Page() uint8 {
	return r.page
}

// SelectPage writes the page select register unless page is already
// selected. The cached page changes only after a successful write.
func (r *PageRouter) SelectPage(page uint8) error {
	if page == r.page {
		return nil
	}
	if page >= MaxPages {
		return fmt.Errorf("page %d out of range: %w", page, ErrInvalidParameter)
	}
	if err := r.bus.WriteRegisters(PageSelectAddress, []byte{page}); err != nil {
		return fmt.Errorf("failed to select page %d: %w", page, err)
	}
	r.page = page
	return nil
}

// Read selects page and reads len(buf) registers starting at addr.
func (r *PageRouter) Read(page, addr uint8, buf []byte) error {
	if err := r.SelectPage(page); err != nil {
		return err
	}
	return r.bus.ReadRegisters(addr, buf)
}

// Write selects page and writes buf starting at addr.
func (r *PageRouter) Write(page, addr uint8, buf []byte) error {
	if err := r.SelectPage(page); err != nil {
		return err
	}
	return r.bus.WriteRegisters(addr, buf)
}
