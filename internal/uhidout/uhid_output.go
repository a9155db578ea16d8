// Package uhidout exposes the touch controller to the OS input stack as
// a Linux uhid device.
package uhidout

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"github.com/psanford/uhid"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/neuroplastio/rmi4touch/internal/touchsvc"
	"github.com/neuroplastio/rmi4touch/pkg/bus"
	"github.com/neuroplastio/rmi4touch/rmi4"
	"github.com/neuroplastio/rmi4touch/rmi4/report"
)

// busI2C is BUS_I2C from linux/input.h.
const busI2C = 0x18

type reportType uint8

const (
	reportTypeFeature reportType = 0
	reportTypeOutput  reportType = 1
	reportTypeInput   reportType = 2
)

const uhidReportSize = 4096

type getReportRequest struct {
	RequestID  uint32
	ReportID   uint8
	ReportType reportType
}

type getReportReply struct {
	EventType uhid.EventType
	RequestID uint32
	Error     uint16
	Size      uint16
	Data      [uhidReportSize]byte
}

type setReportRequest struct {
	RequestID  uint32
	ReportID   uint8
	ReportType reportType
	Size       uint16
	Data       [uhidReportSize]byte
}

type setReportReply struct {
	EventType uhid.EventType
	RequestID uint32
	Error     uint16
}

type device interface {
	InjectEvent(data []byte) error
	WriteEvent(event interface{}) error
}

// InputModer owns the input mode selected by the host.
type InputModer interface {
	InputMode() report.InputMode
	SetInputMode(mode report.InputMode)
}

type Output struct {
	log      *zap.Logger
	name     string
	dev      device
	events   <-chan uhid.Event
	close    func() error
	injected *atomic.Uint64
	failed   *atomic.Uint64
}

// Open creates the virtual device with the given report descriptor.
func Open(ctx context.Context, name string, descriptor []byte, log *zap.Logger) (*Output, error) {
	dev, err := uhid.NewDevice(name, descriptor)
	if err != nil {
		return nil, fmt.Errorf("failed to create uhid device: %w", err)
	}
	dev.Data.Bus = busI2C
	dev.Data.VendorID = report.VendorID
	dev.Data.ProductID = report.ProductID

	ctx, cancel := context.WithCancel(ctx)
	events, err := dev.Open(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open uhid device: %w", err)
	}
	log.Info("Created uhid device",
		zap.String("name", name),
		zap.Int("descriptorSize", len(descriptor)))
	o := newOutput(name, dev, log)
	o.events = events
	o.close = func() error {
		cancel()
		return dev.Close()
	}
	return o, nil
}

func newOutput(name string, dev device, log *zap.Logger) *Output {
	return &Output{
		log:      log,
		name:     name,
		dev:      dev,
		close:    func() error { return nil },
		injected: atomic.NewUint64(0),
		failed:   atomic.NewUint64(0),
	}
}

func (o *Output) Close() error {
	return o.close()
}

// Injected returns the number of reports delivered to the kernel.
func (o *Output) Injected() uint64 {
	return o.injected.Load()
}

// Run injects every received batch and answers host feature requests
// until ctx is done.
func (o *Output) Run(ctx context.Context, batches <-chan bus.Message[string, touchsvc.Batch], modes InputModer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-batches:
			o.write(msg.Message)
		case event, ok := <-o.events:
			if !ok {
				return nil
			}
			o.handleEvent(event, modes)
		}
	}
}

func (o *Output) write(b touchsvc.Batch) {
	for _, r := range b.Reports {
		if err := o.dev.InjectEvent(r.Marshal()); err != nil {
			o.failed.Inc()
			o.log.Error("Failed to inject report", zap.Stringer("report", r), zap.Error(err))
			continue
		}
		o.injected.Inc()
	}
}

func (o *Output) handleEvent(event uhid.Event, modes InputModer) {
	switch event.Type {
	case uhid.Output:
		o.log.Debug("Ignoring output report", zap.Binary("data", event.Data))
	case uhid.GetReport:
		var req getReportRequest
		if err := binary.Read(bytes.NewReader(event.Data), binary.LittleEndian, &req); err != nil {
			o.log.Error("Failed to read GetReport request", zap.Error(err))
			return
		}
		reply := getReportReply{EventType: uhid.GetReportReply, RequestID: req.RequestID}
		data, err := o.getReport(req, modes)
		if err != nil {
			o.log.Warn("GetReport failed", zap.Uint8("id", req.ReportID), zap.Error(err))
			reply.Error = 1
		} else {
			reply.Size = uint16(copy(reply.Data[:], data))
		}
		if err := o.dev.WriteEvent(reply); err != nil {
			o.log.Error("Failed to write GetReport reply", zap.Error(err))
		}
	case uhid.SetReport:
		var req setReportRequest
		if err := binary.Read(bytes.NewReader(event.Data), binary.LittleEndian, &req); err != nil {
			o.log.Error("Failed to read SetReport request", zap.Error(err))
			return
		}
		reply := setReportReply{EventType: uhid.SetReportReply, RequestID: req.RequestID}
		if err := o.setReport(req, modes); err != nil {
			o.log.Warn("SetReport failed", zap.Uint8("id", req.ReportID), zap.Error(err))
			reply.Error = 1
		}
		if err := o.dev.WriteEvent(reply); err != nil {
			o.log.Error("Failed to write SetReport reply", zap.Error(err))
		}
	}
}

func (o *Output) getReport(req getReportRequest, modes InputModer) ([]byte, error) {
	if req.ReportType != reportTypeFeature {
		return nil, fmt.Errorf("report type %d: %w", req.ReportType, rmi4.ErrNotImplemented)
	}
	switch report.ID(req.ReportID) {
	case report.IDMaxCount:
		return report.MaxCount(), nil
	case report.IDFeature:
		return report.Feature{InputMode: modes.InputMode()}.Marshal(), nil
	}
	return nil, fmt.Errorf("feature report %d: %w", req.ReportID, rmi4.ErrInvalidParameter)
}

func (o *Output) setReport(req setReportRequest, modes InputModer) error {
	if req.ReportType != reportTypeFeature || report.ID(req.ReportID) != report.IDFeature {
		return fmt.Errorf("report %d type %d: %w", req.ReportID, req.ReportType, rmi4.ErrNotImplemented)
	}
	size := int(req.Size)
	if size > uhidReportSize {
		size = uhidReportSize
	}
	data := req.Data[:size]
	if len(data) == 0 || report.ID(data[0]) != report.IDFeature {
		data = append([]byte{req.ReportID}, data...)
	}
	f, err := report.ParseFeature(data)
	if err != nil {
		return err
	}
	if f.InputMode > report.InputModeMultiTouch {
		return fmt.Errorf("input mode %d: %w", f.InputMode, rmi4.ErrInvalidParameter)
	}
	modes.SetInputMode(f.InputMode)
	return nil
}
