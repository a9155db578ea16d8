// Package controller drives one RMI4 touch controller: discovery,
// configuration and interrupt service.
package controller

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/neuroplastio/rmi4touch/rmi4"
	"github.com/neuroplastio/rmi4touch/rmi4/buttons"
	"github.com/neuroplastio/rmi4touch/rmi4/f01"
	"github.com/neuroplastio/rmi4touch/rmi4/f11"
	"github.com/neuroplastio/rmi4touch/rmi4/f12"
	"github.com/neuroplastio/rmi4touch/rmi4/f1a"
	"github.com/neuroplastio/rmi4touch/rmi4/report"
	"github.com/neuroplastio/rmi4touch/rmi4/touch"
)

// ActivityNotifier receives the tick count in milliseconds after every
// successful service, e.g. to wake button backlights.
type ActivityNotifier interface {
	NotifyTouchActivity(tick uint32)
}

type ActivityNotifierFunc func(tick uint32)

func (f ActivityNotifierFunc) NotifyTouchActivity(tick uint32) {
	f(tick)
}

type options struct {
	clock     func() time.Duration
	afterFunc buttons.AfterFunc
	notifier  ActivityNotifier
}

type Option func(o *options)

// WithClock sets the monotonic clock used for scan times and ticks.
func WithClock(clock func() time.Duration) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithAfterFunc sets the one-shot timer used by the button state machine.
func WithAfterFunc(afterFunc buttons.AfterFunc) Option {
	return func(o *options) {
		o.afterFunc = afterFunc
	}
}

func WithActivityNotifier(n ActivityNotifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// Status holds device status codes latched during interrupt checks.
type Status struct {
	ResetOccurred        bool  `json:"resetOccurred"`
	InvalidConfiguration bool  `json:"invalidConfiguration"`
	DeviceFailure        bool  `json:"deviceFailure"`
	UnknownStatus        bool  `json:"unknownStatus"`
	UnknownStatusCode    uint8 `json:"unknownStatusCode"`
	FlashProgramming     bool  `json:"flashProgramming"`
	Reconfigurations     int   `json:"reconfigurations"`
}

// DeviceInfo describes the discovered device.
type DeviceInfo struct {
	Functions  []rmi4.Function `json:"functions"`
	Firmware   f01.Query       `json:"firmware"`
	PowerState string          `json:"powerState"`
	Sensor     string          `json:"sensor,omitempty"`
	MaxFingers int             `json:"maxFingers"`
	Layout     *f12.Layout     `json:"layout,omitempty"`
	Buttons    *f1a.Query      `json:"buttons,omitempty"`
	Status     Status          `json:"status"`
}

// Controller owns all state of one device. Every exported method
// serializes on a single lock.
type Controller struct {
	mu   sync.Mutex
	log  *zap.Logger
	bus  rmi4.Bus
	cfg  Config
	opts options

	router *rmi4.PageRouter
	table  *rmi4.FunctionTable
	f01    *f01.Function
	f11    *f11.Sensor
	f12    *f12.Sensor
	f1a    *f1a.Buttons
	source touch.Source

	hasButtons      bool
	power           f01.PowerState
	firmware        f01.Query
	status          Status
	interruptStatus uint8
	started         bool

	cache    *touch.Cache
	physical [buttons.Count]bool
	buttons  *buttons.Machine
	legacy   *buttons.Legacy
	queue    *report.Queue
	timers   chan struct{}
}

func New(bus rmi4.Bus, cfg Config, log *zap.Logger, opts ...Option) *Controller {
	start := time.Now()
	o := options{
		clock: func() time.Duration {
			return time.Since(start)
		},
		afterFunc: buttons.SystemAfterFunc,
	}
	for _, opt := range opts {
		opt(&o)
	}
	c := &Controller{
		log:    log,
		bus:    bus,
		cfg:    cfg,
		opts:   o,
		cache:  touch.NewCache(),
		legacy: &buttons.Legacy{},
		queue:  report.NewQueue(cfg.ReportQueueSize),
		timers: make(chan struct{}, 1),
	}
	c.buttons = buttons.New(cfg.Buttons, o.afterFunc, c.wake)
	return c
}

func (c *Controller) wake() {
	select {
	case c.timers <- struct{}{}:
	default:
	}
}

// Timers signals that a button timer expired and ServiceInterrupts
// should be called.
func (c *Controller) Timers() <-chan struct{} {
	return c.timers
}

// Start discovers the functions, configures them, reads the firmware
// query and latches pending interrupts.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.router = rmi4.NewPageRouter(c.bus)
	table, err := rmi4.BuildFunctionTable(c.router)
	if err != nil {
		c.log.Error("Failed to build function table", zap.Error(err))
		return fmt.Errorf("failed to build function table: %w", err)
	}
	c.bind(table)
	if err := c.configure(); err != nil {
		c.log.Error("Failed to configure functions", zap.Error(err))
		return err
	}
	q, err := c.f01.ReadQuery(c.router)
	if err != nil {
		c.log.Error("Failed to read firmware version", zap.Error(err))
		return err
	}
	c.firmware = q
	c.log.Info("Touch controller started",
		zap.String("product", q.ProductID),
		zap.Uint8("manufacturer", q.ManufacturerID),
		zap.Stringer("power", c.power))

	irq, err := c.checkInterrupts()
	if err != nil {
		return err
	}
	c.interruptStatus = irq
	c.started = true
	return nil
}

func (c *Controller) bind(table *rmi4.FunctionTable) {
	c.table = table
	c.f01, c.f11, c.f12, c.f1a = nil, nil, nil, nil
	c.source = nil
	for _, f := range table.Functions() {
		c.log.Debug("Found function",
			zap.Stringer("function", f.Number),
			zap.Uint8("page", f.Page),
			zap.Uint8("query", f.QueryBase),
			zap.Uint8("command", f.CommandBase),
			zap.Uint8("control", f.ControlBase),
			zap.Uint8("data", f.DataBase),
			zap.Uint8("interrupts", f.InterruptCount))
	}
	if f, ok := table.Find(rmi4.FunctionDeviceControl); ok {
		c.f01 = f01.New(f)
	}
	if f, ok := table.Find(rmi4.Function2D); ok {
		c.f12 = f12.New(f, c.log.Named("f12"))
	} else if f, ok := table.Find(rmi4.Function2DLegacy); ok {
		c.f11 = f11.New(f, c.log.Named("f11"))
	}
	if f, ok := table.Find(rmi4.FunctionButtons); ok {
		c.f1a = f1a.New(f)
	}
}

// Stop cancels button timers, releases the activity notifier and drops
// tracked fingers.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buttons.Stop()
	c.opts.notifier = nil
	c.started = false
	c.interruptStatus = 0
	c.cache.Reset()
	c.queue.Drain()
	return nil
}

// Reconfigure replaces the settings and, when started, re-runs function
// configuration.
func (c *Controller) Reconfigure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
	c.queue = report.NewQueue(cfg.ReportQueueSize)
	c.buttons.Stop()
	c.buttons = buttons.New(cfg.Buttons, c.opts.afterFunc, c.wake)
	c.legacy = &buttons.Legacy{}
	if !c.started {
		return nil
	}
	return c.configure()
}

// Reset issues a soft reset. The device reports unconfigured afterwards
// and is reconfigured by the next interrupt service.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.f01 == nil {
		return fmt.Errorf("%s: %w", rmi4.FunctionDeviceControl, rmi4.ErrFunctionMissing)
	}
	return c.f01.Reset(c.router)
}

func (c *Controller) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) DeviceInfo() DeviceInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	info := DeviceInfo{
		Firmware:   c.firmware,
		PowerState: c.power.String(),
		Status:     c.status,
	}
	if c.table != nil {
		info.Functions = c.table.Functions()
	}
	if c.source != nil {
		info.Sensor = c.source.Number().String()
		info.MaxFingers = c.source.MaxFingers()
	}
	if c.f12 != nil && c.source == touch.Source(c.f12) {
		layout := c.f12.Layout()
		info.Layout = &layout
	}
	if c.hasButtons {
		q := c.f1a.Query()
		info.Buttons = &q
	}
	return info
}

// Descriptor returns the HID report descriptor for the configured
// display.
func (c *Controller) Descriptor() ([]byte, error) {
	c.mu.Lock()
	props := c.cfg.Screen
	c.mu.Unlock()
	return report.EncodeDescriptor(uint16(props.DisplayViewableWidth), uint16(props.DisplayViewableHeight))
}

func (c *Controller) tick() uint32 {
	return uint32(c.opts.clock() / time.Millisecond)
}
