package app

import (
	"context"
	"log/slog"

	"github.com/grafana/dskit/modules"
	"github.com/grafana/dskit/server"
	"github.com/grafana/dskit/services"
	"github.com/grafana/dskit/signals"
	"github.com/pkg/errors"

	"github.com/pacecast/pacecast/pkg/fetch"
)

const metricsNamespace = "pacecast"

type App struct {
	cfg    Config
	logger slog.Logger

	Server *server.Server

	ModuleManager *modules.Manager
	serviceMap    map[string]services.Service
}

// New creates and returns a new App.
func New(cfg Config, logger slog.Logger) (*App, error) {
	a := &App{
		cfg:    cfg,
		logger: logger,
	}

	if a.cfg.Target == "" {
		a.cfg.Target = All
	}

	if err := a.setupModuleManager(); err != nil {
		return nil, errors.Wrap(err, "failed to setup module manager")
	}

	return a, nil
}

func (a *App) Run() error {
	serviceMap, err := a.ModuleManager.InitModuleServices(a.cfg.Target)
	if err != nil {
		return errors.Wrap(err, "failed to init module services")
	}
	a.serviceMap = serviceMap

	servs := []services.Service(nil)
	for _, s := range serviceMap {
		servs = append(servs, s)
	}

	sm, err := services.NewManager(servs...)
	if err != nil {
		return errors.Wrap(err, "failed to create service manager")
	}

	healthy := func() { a.logger.Info("started", "target", a.cfg.Target) }
	stopped := func() { a.logger.Info("stopped") }
	serviceFailed := func(service services.Service) {
		// One finished or failed session stops the whole process.
		sm.StopAsync()

		for m, s := range serviceMap {
			if s == service {
				a.logModuleExit(m, service.FailureCase())
				return
			}
		}
		a.logModuleExit("unknown", service.FailureCase())
	}
	sm.AddListener(services.NewManagerListener(healthy, stopped, serviceFailed))

	// Setup signal handler. If signal arrives, we stop the manager, which stops all the services.
	handler := signals.NewHandler(a.Server.Log)
	go func() {
		handler.Loop()
		sm.StopAsync()
	}()

	if err := sm.StartAsync(context.Background()); err != nil {
		return errors.Wrap(err, "failed to start service manager")
	}

	return sm.AwaitStopped(context.Background())
}

// logModuleExit reports why a module took the process down, separating the
// session outcomes the player surfaces from real faults.
func (a *App) logModuleExit(module string, err error) {
	var stall *fetch.StallError
	var read *fetch.StreamReadError
	switch {
	case errors.Is(err, modules.ErrStopProcess):
		a.logger.Info("received stop signal via return error", "module", module, "err", err)
	case errors.Is(err, fetch.ErrFetchInterrupted):
		a.logger.Info("session cancelled", "module", module)
	case errors.As(err, &stall):
		a.logger.Error("session stalled", "module", module, "elapsed", stall.Elapsed)
	case errors.As(err, &read):
		a.logger.Error("session lost its stream", "module", module, "media", read.ID, "remaining", read.Remaining)
	default:
		a.logger.Error("module failed", "module", module, "err", err)
	}
}
