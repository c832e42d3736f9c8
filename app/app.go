package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/grafana/dskit/modules"
	"github.com/grafana/dskit/server"
	"github.com/grafana/dskit/services"
	"github.com/grafana/dskit/signals"
	"github.com/pkg/errors"

	"github.com/zachfi/radiodl/modules/monitor"
)

const metricsNamespace = "radiodl"

type App struct {
	cfg    Config
	logger slog.Logger

	Server  *server.Server
	Monitor *monitor.Monitor

	ModuleManager *modules.Manager
	serviceMap    map[string]services.Service
}

// New validates cfg and prepares the modules of the requested target.
func New(cfg Config, logger slog.Logger) (*App, error) {
	a := &App{
		cfg:    cfg,
		logger: logger,
	}

	if a.cfg.Target == "" {
		a.cfg.Target = All
	}

	if a.cfg.Target != Server && len(a.cfg.Monitor.Stations) == 0 {
		return nil, errors.New("no stations configured, set -monitor.stations")
	}

	if err := a.setupModuleManager(); err != nil {
		return nil, errors.Wrap(err, "failed to setup module manager")
	}

	return a, nil
}

// Run starts every module of the target and blocks until they have all
// stopped, either on a signal or because one of them failed.
func (a *App) Run() error {
	serviceMap, err := a.ModuleManager.InitModuleServices(a.cfg.Target)
	if err != nil {
		return fmt.Errorf("failed to init module services %w", err)
	}
	a.serviceMap = serviceMap

	servs := []services.Service(nil)
	for _, s := range serviceMap {
		servs = append(servs, s)
	}

	sm, err := services.NewManager(servs...)
	if err != nil {
		return fmt.Errorf("failed to start service manager %w", err)
	}

	a.Server.HTTP.Path("/readyz").Handler(readyHandler(sm))

	healthy := func() {
		a.logger.Info("started", "target", a.cfg.Target, "stations", len(a.cfg.Monitor.Stations))
	}
	stopped := func() { a.logger.Info("stopped") }
	serviceFailed := func(service services.Service) {
		// one failed module takes the process down
		sm.StopAsync()

		for m, s := range serviceMap {
			if s == service {
				if service.FailureCase() == modules.ErrStopProcess {
					a.logger.Info("received stop signal via return error", "module", m, "err", service.FailureCase())
				} else {
					a.logger.Error("module failed", "module", m, "err", service.FailureCase())
				}
				return
			}
		}

		a.logger.Error("module failed", "module", "unknown", "err", service.FailureCase())
	}
	sm.AddListener(services.NewManagerListener(healthy, stopped, serviceFailed))

	handler := signals.NewHandler(a.Server.Log)
	go func() {
		handler.Loop()
		sm.StopAsync()
	}()

	if err := sm.StartAsync(context.Background()); err != nil {
		return fmt.Errorf("failed to start service manager %w", err)
	}

	return sm.AwaitStopped(context.Background())
}

// readyHandler answers 200 once every module is running and 503 before that
// or while shutting down.
func readyHandler(sm *services.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if !sm.IsHealthy() {
			byState := sm.ServicesByState()
			http.Error(w, fmt.Sprintf("not ready: %d of %d modules running", len(byState[services.Running]), countServices(byState)), http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ready\n"))
	}
}

func countServices(byState map[services.State][]services.Service) int {
	n := 0
	for _, s := range byState {
		n += len(s)
	}
	return n
}
