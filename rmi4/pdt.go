package rmi4

import "fmt"

// Function is a discovered function descriptor together with the page it
// lives on and its position in the table.
type Function struct {
	FunctionDescriptor
	Page  uint8 `json:"page"`
	Index int   `json:"index"`
}

func (f Function) String() string {
	return fmt.Sprintf("%s@%d", f.Number, f.Page)
}

// InterruptBit is the bit assigned to this function in the device
// control interrupt enable mask.
func (f Function) InterruptBit() uint8 {
	return 1 << f.Index
}

type FunctionTable struct {
	functions []Function
}

func NewFunctionTable(functions ...Function) *FunctionTable {
	t := &FunctionTable{}
	for _, f := range functions {
		f.Index = len(t.functions)
		t.functions = append(t.functions, f)
	}
	return t
}

func (t *FunctionTable) Len() int {
	return len(t.functions)
}

func (t *FunctionTable) Functions() []Function {
	return t.functions
}

// Find returns the first function with the given number.
func (t *FunctionTable) Find(number FunctionNumber) (Function, bool) {
	for _, f := range t.functions {
		if f.Number == number {
			return f, true
		}
	}
	return Function{}, false
}

// Lookup is Find returning ErrFunctionMissing for absent functions.
func (t *FunctionTable) Lookup(number FunctionNumber) (Function, error) {
	f, ok := t.Find(number)
	if !ok {
		return Function{}, fmt.Errorf("%s: %w", number, ErrFunctionMissing)
	}
	return f, nil
}

type tableOptions struct {
	capacity int
}

type TableOption func(*tableOptions)

// WithCapacity overrides the maximum number of functions accepted.
func WithCapacity(n int) TableOption {
	return func(o *tableOptions) {
		o.capacity = n
	}
}

// BuildFunctionTable walks the function descriptors from the top of page
// 0 downwards. A zero function number ends the current page; on the first
// slot of a page it ends discovery.
func BuildFunctionTable(r *PageRouter, opts ...TableOption) (*FunctionTable, error) {
	o := tableOptions{capacity: MaxFunctions}
	for _, opt := range opts {
		opt(&o)
	}
	if err := r.SelectPage(0); err != nil {
		return nil, err
	}
	table := &FunctionTable{}
	addr := FirstFunctionAddress
	page := uint8(0)
	buf := make([]byte, FunctionDescriptorSize)
	for addr > 0 && len(table.functions) < o.capacity {
		if err := r.Bus().ReadRegisters(uint8(addr), buf); err != nil {
			return nil, fmt.Errorf("failed to read function descriptor %d: %w", len(table.functions), err)
		}
		desc, err := ParseFunctionDescriptor(buf)
		if err != nil {
			return nil, err
		}
		if desc.Number == 0 {
			if addr == FirstFunctionAddress {
				return table, nil
			}
			page++
			if page >= MaxPages {
				return nil, fmt.Errorf("no terminator on last page: %w", ErrInvalidDeviceState)
			}
			addr = FirstFunctionAddress
			if err := r.SelectPage(page); err != nil {
				return nil, err
			}
			continue
		}
		table.functions = append(table.functions, Function{
			FunctionDescriptor: desc,
			Page:               page,
			Index:              len(table.functions),
		})
		addr -= FunctionDescriptorSize
	}
	if len(table.functions) >= o.capacity {
		return nil, fmt.Errorf("more than %d functions: %w: %w", o.capacity, ErrResourceExhausted, ErrInvalidDeviceState)
	}
	return nil, fmt.Errorf("no terminator found, address down to %d: %w", addr, ErrInvalidDeviceState)
}
