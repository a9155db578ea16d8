package agent

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/dig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/neuroplastio/rmi4touch/internal/configsvc"
	"github.com/neuroplastio/rmi4touch/internal/devstore"
	"github.com/neuroplastio/rmi4touch/internal/touchsvc"
	"github.com/neuroplastio/rmi4touch/internal/uhidout"
	"github.com/neuroplastio/rmi4touch/pkg/bus"
	"github.com/neuroplastio/rmi4touch/rmi4/controller"
	"github.com/neuroplastio/rmi4touch/rmi4/report"
)

type reportBus = bus.Bus[string, touchsvc.Batch]

// Agent wires the services together. Components are built on first use,
// so CLI commands only open what they need.
type Agent struct {
	config    Config
	log       *zap.Logger
	container *dig.Container

	mu      sync.Mutex
	closers []func() error
}

func NewLogger() (*zap.Logger, error) {
	loggerConfig := zap.NewDevelopmentConfig()
	loggerConfig.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000000")
	loggerConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

func NewAgent(config Config, logger *zap.Logger) (*Agent, error) {
	a := &Agent{
		config:    config,
		log:       logger,
		container: dig.New(),
	}
	providers := []any{
		func() *zap.Logger {
			return a.log
		},
		a.openStore,
		a.openTransport,
		func(log *zap.Logger) *configsvc.Service {
			return configsvc.New(log.Named("config"))
		},
		func(log *zap.Logger) *reportBus {
			return bus.New[string, touchsvc.Batch](log.Named("bus"))
		},
	}
	for _, p := range providers {
		if err := a.container.Provide(p); err != nil {
			return nil, fmt.Errorf("failed to provide component: %w", err)
		}
	}
	return a, nil
}

func (a *Agent) onClose(fn func() error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closers = append(a.closers, fn)
}

func (a *Agent) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *Agent) openStore(log *zap.Logger) (*devstore.Store, error) {
	store, err := devstore.Open(filepath.Join(a.config.DataDir, "db"), log.Named("store"), time.Now)
	if err != nil {
		return nil, err
	}
	a.onClose(store.Close)
	return store, nil
}

func (a *Agent) openTransport(log *zap.Logger) (Transport, error) {
	raw, err := a.config.transportConfig()
	if err != nil {
		return Transport{}, err
	}
	t, err := newTransports(log).New(a.config.Transport, raw)
	if err != nil {
		return Transport{}, err
	}
	a.onClose(t.Close)
	return t, nil
}

func invoke[T any](a *Agent) (T, error) {
	var v T
	err := a.container.Invoke(func(dep T) {
		v = dep
	})
	if err != nil {
		return v, dig.RootCause(err)
	}
	return v, nil
}

func (a *Agent) Store() (*devstore.Store, error) {
	return invoke[*devstore.Store](a)
}

// DeviceConfig reads the device config file, falling back to defaults
// when it does not exist.
func (a *Agent) DeviceConfig() (controller.Config, error) {
	cfg, err := configsvc.Load(a.config.DeviceConfig, controller.DefaultConfig())
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return controller.DefaultConfig(), nil
	case err != nil:
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Controller opens the transport and returns a started controller. The
// caller stops it.
func (a *Agent) Controller() (*controller.Controller, error) {
	cfg, err := a.DeviceConfig()
	if err != nil {
		return nil, err
	}
	t, err := invoke[Transport](a)
	if err != nil {
		return nil, err
	}
	ctrl := controller.New(t.Bus, cfg, a.log.Named("controller"))
	if err := ctrl.Start(); err != nil {
		return nil, err
	}
	return ctrl, nil
}

// Scan discovers the device and records it.
func (a *Agent) Scan() (controller.DeviceInfo, error) {
	ctrl, err := a.Controller()
	if err != nil {
		return controller.DeviceInfo{}, err
	}
	defer ctrl.Stop()
	info := ctrl.DeviceInfo()
	store, err := a.Store()
	if err != nil {
		return info, err
	}
	if _, err := store.SaveDevice(a.config.DeviceName, a.config.Transport, info); err != nil {
		return info, err
	}
	return info, nil
}

func (a *Agent) Reset() error {
	ctrl, err := a.Controller()
	if err != nil {
		return err
	}
	defer ctrl.Stop()
	return ctrl.Reset()
}

func (a *Agent) Descriptor() ([]byte, error) {
	cfg, err := a.DeviceConfig()
	if err != nil {
		return nil, err
	}
	return report.EncodeDescriptor(uint16(cfg.Screen.DisplayViewableWidth), uint16(cfg.Screen.DisplayViewableHeight))
}

// Run starts the agent and blocks until the context is cancelled.
// Agent startup will fail if the device configuration is not valid.
// In case configuration becomes invalid after the startup, it will remain running with the last valid configuration.
func (a *Agent) Run(ctx context.Context) error {
	return a.container.Invoke(func(configSvc *configsvc.Service, reports *reportBus, store *devstore.Store, t Transport) error {
		return a.run(ctx, configSvc, reports, store, t)
	})
}

func (a *Agent) run(ctx context.Context, configSvc *configsvc.Service, reports *reportBus, store *devstore.Store, t Transport) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return configSvc.Start(groupCtx)
	})
	group.Go(func() error {
		return reports.Start(groupCtx)
	})
	select {
	case <-groupCtx.Done():
		if err := group.Wait(); err != nil {
			return fmt.Errorf("agent failed: %w", err)
		}
		return nil
	case <-configSvc.Ready():
	}

	current := atomic.NewPointer[controller.Controller](nil)
	cfg, err := configsvc.RegisterWriteable(configSvc, a.config.DeviceConfig, controller.DefaultConfig(), func(cfg controller.Config, err error) {
		a.onDeviceConfig(current.Load(), cfg, err)
	})
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		cancel()
		group.Wait()
		return fmt.Errorf("invalid device config: %w", err)
	}
	ctrl := controller.New(t.Bus, cfg, a.log.Named("controller"))
	current.Store(ctrl)

	opts := []touchsvc.Option{
		touchsvc.WithPollInterval(a.config.PollInterval),
		touchsvc.WithRecorder(store, a.config.FlushInterval),
		touchsvc.WithStartHook(func(info controller.DeviceInfo) {
			if _, err := store.SaveDevice(a.config.DeviceName, a.config.Transport, info); err != nil {
				a.log.Error("Failed to save device", zap.Error(err))
			}
		}),
	}
	if t.Attention != nil {
		opts = append(opts, touchsvc.WithAttention(t.Attention))
	} else if a.config.PollInterval == 0 {
		opts = append(opts, touchsvc.WithPollInterval(10*time.Millisecond))
	}
	touchSvc := touchsvc.New(a.config.DeviceName, ctrl, reports.CreatePublisher(a.config.DeviceName), a.log.Named("touch"), opts...)
	group.Go(func() error {
		return touchSvc.Start(groupCtx)
	})

	if a.config.UhidName != "" {
		desc, err := ctrl.Descriptor()
		if err != nil {
			cancel()
			group.Wait()
			return fmt.Errorf("failed to build report descriptor: %w", err)
		}
		out, err := uhidout.Open(groupCtx, a.config.UhidName, desc, a.log.Named("uhid"))
		if err != nil {
			cancel()
			group.Wait()
			return err
		}
		defer out.Close()
		batches := reports.Subscribe(groupCtx, a.config.DeviceName)
		group.Go(func() error {
			return out.Run(groupCtx, batches, touchSvc)
		})
	}

	err = group.Wait()
	if err != nil {
		return fmt.Errorf("agent failed: %w", err)
	}
	return nil
}

func (a *Agent) onDeviceConfig(ctrl *controller.Controller, cfg controller.Config, err error) {
	if err != nil {
		a.log.Error("Failed to read device config, keeping the last valid one", zap.Error(err))
		return
	}
	if ctrl == nil {
		return
	}
	if err := ctrl.Reconfigure(cfg); err != nil {
		a.log.Error("Failed to apply device config", zap.Error(err))
		return
	}
	a.log.Info("Device config reloaded")
}
