// Package touchsvc drives a touch controller from attention edges, a
// poll timer and button timer wakeups, and publishes the reports.
package touchsvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/neuroplastio/rmi4touch/internal/devstore"
	"github.com/neuroplastio/rmi4touch/pkg/bus"
	"github.com/neuroplastio/rmi4touch/rmi4"
	"github.com/neuroplastio/rmi4touch/rmi4/controller"
	"github.com/neuroplastio/rmi4touch/rmi4/report"
)

// Attention is the active-low interrupt line of the controller.
type Attention interface {
	WaitForEdge(timeout time.Duration) bool
	Asserted() bool
}

// Recorder persists service counters.
type Recorder interface {
	SaveCounters(name string, counters devstore.Counters, status controller.Status) (devstore.Record, error)
}

// Batch is the set of reports produced by one service call.
type Batch struct {
	Device  string          `json:"device"`
	Reports []report.Report `json:"reports"`
}

type options struct {
	attention     Attention
	pollInterval  time.Duration
	flushInterval time.Duration
	recorder      Recorder
	onStart       func(info controller.DeviceInfo)
	// maxRepeats bounds back-to-back services while attention stays low.
	maxRepeats int
}

type Option func(o *options)

func WithAttention(a Attention) Option {
	return func(o *options) {
		o.attention = a
	}
}

// WithPollInterval services the controller periodically. Zero disables
// polling.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		o.pollInterval = d
	}
}

func WithRecorder(r Recorder, flushInterval time.Duration) Option {
	return func(o *options) {
		o.recorder = r
		o.flushInterval = flushInterval
	}
}

// WithStartHook calls fn with the discovered device once the controller
// has started.
func WithStartHook(fn func(info controller.DeviceInfo)) Option {
	return func(o *options) {
		o.onStart = fn
	}
}

type Service struct {
	log     *zap.Logger
	name    string
	ctrl    *controller.Controller
	publish bus.Publisher[Batch]
	opts    options

	inputMode *atomic.Uint32
	services  *atomic.Uint64
	reports   *atomic.Uint64
	noData    *atomic.Uint64
	errors    *atomic.Uint64
	overflow  *atomic.Uint64
}

func New(name string, ctrl *controller.Controller, publish bus.Publisher[Batch], log *zap.Logger, opts ...Option) *Service {
	o := options{maxRepeats: 8}
	for _, opt := range opts {
		opt(&o)
	}
	return &Service{
		log:       log,
		name:      name,
		ctrl:      ctrl,
		publish:   publish,
		opts:      o,
		inputMode: atomic.NewUint32(uint32(ctrl.Config().InputMode)),
		services:  atomic.NewUint64(0),
		reports:   atomic.NewUint64(0),
		noData:    atomic.NewUint64(0),
		errors:    atomic.NewUint64(0),
		overflow:  atomic.NewUint64(0),
	}
}

// SetInputMode is called when the host writes the configuration feature
// report.
func (s *Service) SetInputMode(mode report.InputMode) {
	old := report.InputMode(s.inputMode.Swap(uint32(mode)))
	if old != mode {
		s.log.Info("Input mode changed", zap.Stringer("from", old), zap.Stringer("to", mode))
	}
}

func (s *Service) InputMode() report.InputMode {
	return report.InputMode(s.inputMode.Load())
}

func (s *Service) Counters() devstore.Counters {
	return devstore.Counters{
		Services: s.services.Load(),
		Reports:  s.reports.Load(),
		NoData:   s.noData.Load(),
		Errors:   s.errors.Load(),
		Overflow: s.overflow.Load(),
	}
}

// Start starts the controller and services it until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	if err := s.ctrl.Start(); err != nil {
		return fmt.Errorf("failed to start controller %s: %w", s.name, err)
	}
	defer s.ctrl.Stop()
	if s.opts.onStart != nil {
		s.opts.onStart(s.ctrl.DeviceInfo())
	}
	s.log.Info("Touch service started",
		zap.String("device", s.name),
		zap.Bool("attention", s.opts.attention != nil),
		zap.Duration("poll", s.opts.pollInterval))

	group, ctx := errgroup.WithContext(ctx)
	wake := make(chan struct{}, 1)
	if s.opts.attention != nil {
		group.Go(func() error {
			s.watch(ctx, wake)
			return nil
		})
	}
	group.Go(func() error {
		return s.loop(ctx, wake)
	})
	err := group.Wait()
	s.flush()
	return err
}

func (s *Service) watch(ctx context.Context, wake chan<- struct{}) {
	for ctx.Err() == nil {
		if !s.opts.attention.WaitForEdge(100 * time.Millisecond) {
			continue
		}
		select {
		case wake <- struct{}{}:
		default:
		}
	}
}

func (s *Service) loop(ctx context.Context, wake <-chan struct{}) error {
	var poll, flush <-chan time.Time
	if s.opts.pollInterval > 0 {
		t := time.NewTicker(s.opts.pollInterval)
		defer t.Stop()
		poll = t.C
	}
	if s.opts.recorder != nil && s.opts.flushInterval > 0 {
		t := time.NewTicker(s.opts.flushInterval)
		defer t.Stop()
		flush = t.C
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-wake:
			s.service(ctx)
		case <-poll:
			s.service(ctx)
		case <-s.ctrl.Timers():
			s.service(ctx)
		case <-flush:
			s.flush()
		}
	}
}

func (s *Service) service(ctx context.Context) {
	for i := 0; ; i++ {
		reports, err := s.ctrl.ServiceInterrupts(s.InputMode())
		s.account(reports, err)
		if len(reports) > 0 {
			s.publish(ctx, Batch{Device: s.name, Reports: reports})
		}
		if s.opts.attention == nil || !s.opts.attention.Asserted() || i+1 >= s.opts.maxRepeats {
			return
		}
	}
}

func (s *Service) account(reports []report.Report, err error) {
	s.services.Inc()
	s.reports.Add(uint64(len(reports)))
	switch {
	case err == nil:
	case errors.Is(err, rmi4.ErrNoData):
		s.noData.Inc()
	case errors.Is(err, rmi4.ErrOutOfMemory):
		s.overflow.Inc()
	default:
		s.errors.Inc()
	}
}

func (s *Service) flush() {
	if s.opts.recorder == nil {
		return
	}
	if _, err := s.opts.recorder.SaveCounters(s.name, s.Counters(), s.ctrl.Status()); err != nil {
		s.log.Error("Failed to save counters", zap.Error(err))
	}
}
