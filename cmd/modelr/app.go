package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"modelr/internal/backend"
	"modelr/internal/notify"
	"modelr/internal/plotserver"
	"modelr/internal/rock"
	"modelr/internal/scenario"
	"modelr/internal/workspace"
)

// app carries what every command needs once the config is loaded.
type app struct {
	cfgPath string
	cfg     *Config
	logger  *slog.Logger
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.cfgPath, cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	if err := cfg.validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	a.cfg = cfg
	a.logger = newLogger(cfg, cmd.ErrOrStderr())
	a.logger.Debug("config loaded", "path", a.cfgPath, "plot_server", cfg.PlotServer.Hostname)
	return nil
}

// session is one command's view of the workspace and the remote services.
type session struct {
	logger  *slog.Logger
	store   workspace.Store
	plot    *plotserver.Client
	backend *backend.Client
	bus     *notify.Bus
	rocks   []rock.Rock
	stops   []func()
}

// open opens the workspace and builds the clients. With notifications set,
// the configured MQTT and websocket publishers are attached to the bus;
// a publisher that cannot connect is logged and skipped.
func (a *app) open(ctx context.Context, notifications bool) (*session, error) {
	store, err := workspace.NewBoltStore(a.cfg.Workspace.Path)
	if err != nil {
		return nil, err
	}
	local, err := store.ListRocks()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("list rocks: %w", err)
	}
	rocks := rock.Merge(a.cfg.Rocks, local)

	s := &session{
		logger: a.logger,
		store:  store,
		plot: plotserver.New(a.cfg.PlotServer.Hostname, rock.Mapping(rocks),
			plotserver.WithScriptType(a.cfg.PlotServer.ScriptType),
			plotserver.WithTimeout(a.cfg.plotTimeout()),
			plotserver.WithLogger(a.logger),
		),
		backend: backend.New(a.cfg.Backend.URL, &http.Client{Timeout: a.cfg.plotTimeout()}, a.logger),
		bus:     notify.NewBus(a.logger),
		rocks:   rocks,
	}

	if notifications {
		s.stops = append(s.stops, initMQTT(s.bus, a.cfg, a.logger).Stop)
		if a.cfg.WebSocket.Enabled {
			ws, err := notify.NewWSPublisher(ctx, a.cfg.WebSocket.URL, a.logger)
			if err != nil {
				a.logger.Error("websocket publisher", "err", err)
			} else {
				ws.Attach(s.bus)
				s.stops = append(s.stops, ws.Stop)
			}
		}
	}
	return s, nil
}

func (s *session) Close() {
	for i := len(s.stops) - 1; i >= 0; i-- {
		s.stops[i]()
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("close workspace", "err", err)
	}
}

// newScenario creates a scenario that resolves rocks through the plotting
// server client and publishes its updates on the bus.
func (s *session) newScenario(name string) *scenario.Scenario {
	sc := scenario.New(name, s.plot.Rocks(), s.logger)
	sc.SetOnChange(func(c scenario.Change) {
		s.bus.Emit(notify.Event{
			Type:     notify.EventArgumentChanged,
			Scenario: c.Scenario,
			Data: map[string]string{
				"script": c.Script,
				"attr":   c.Attr,
				"value":  c.Value.Raw,
			},
		})
	})
	return sc
}

func (s *session) load(name string) (*scenario.Scenario, error) {
	snap, err := s.store.GetScenario(name)
	if err != nil {
		return nil, err
	}
	sc := s.newScenario(name)
	sc.Restore(*snap)
	return sc, nil
}

func (s *session) current() (*scenario.Scenario, error) {
	name, err := s.store.Current()
	if errors.Is(err, workspace.ErrNotFound) {
		return nil, errors.New(`no current scenario: run "modelr new" or "modelr use <name>"`)
	}
	if err != nil {
		return nil, err
	}
	return s.load(name)
}

func (s *session) save(sc *scenario.Scenario) error {
	if err := s.store.SaveScenario(sc.Snapshot()); err != nil {
		return fmt.Errorf("save to workspace: %w", err)
	}
	return nil
}

// selectScript selects script on sc and announces it.
func (s *session) selectScript(ctx context.Context, sc *scenario.Scenario, script string, overrides map[string]string) error {
	if err := sc.SelectScript(ctx, s.plot, script, overrides); err != nil {
		return err
	}
	s.bus.Emit(notify.Event{
		Type:     notify.EventScriptSelected,
		Scenario: sc.Name(),
		Data:     map[string]string{"script": script},
	})
	return nil
}
