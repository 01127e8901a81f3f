package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/AaronLay10/SignalGrid/internal/api"
	"github.com/AaronLay10/SignalGrid/internal/config"
	"github.com/AaronLay10/SignalGrid/internal/events"
	"github.com/AaronLay10/SignalGrid/internal/grid"
	"github.com/AaronLay10/SignalGrid/internal/metrics"
	"github.com/AaronLay10/SignalGrid/internal/mqtt"
	"github.com/AaronLay10/SignalGrid/internal/node"
	"github.com/AaronLay10/SignalGrid/internal/storage/postgres"
	"github.com/AaronLay10/SignalGrid/internal/storage/sqlite"
	"github.com/AaronLay10/SignalGrid/internal/version"
)

// store is what both storage backends offer the daemon.
type store interface {
	grid.Store
	events.Appender
	api.EventHistory
	io.Closer
	Ping(ctx context.Context) error
}

func openStore(cfg *config.GridConfig) (store, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		return postgres.New(cfg.Grid.ID)
	case config.DriverSQLite:
		return sqlite.Open(cfg.Storage.SQLitePath, cfg.Grid.ID)
	}
	return nil, nil
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfgPath := cmd.String("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hostname, _ := os.Hostname()
	session := events.NewSession()
	events.Emit("info", "system.startup", "gridd starting", map[string]interface{}{
		"grid":     cfg.Grid.ID,
		"version":  version.Version,
		"revision": version.Revision(),
		"hostname": hostname,
		"pid":      os.Getpid(),
		"session":  session,
	})

	if err := api.InitAuth(); err != nil {
		return fmt.Errorf("init auth: %w", err)
	}
	if err := api.InitTLS(); err != nil {
		return fmt.Errorf("init tls: %w", err)
	}

	m, err := metrics.NewGridCollector(nil)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	m.SetBuildInfo(version.Version, cfg.Grid.ID)

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	opts := []grid.Option{
		grid.WithLogger(logger),
		grid.WithMetrics(m),
		grid.WithPolicy(cfg.Policy.Options()),
		grid.WithEnvironment(cfg.World.Environment()),
	}
	if st != nil {
		defer st.Close()
		events.SetAppender(st)
		defer events.SetAppender(nil)
		opts = append(opts, grid.WithStore(st))
		api.SetStoreState(true, false)
		m.SetStoreConnected(true)
	} else {
		api.SetStoreState(false, true)
	}

	g := grid.New(cfg.Grid.ID, opts...)

	layout, err := cfg.Placements()
	if err != nil {
		return err
	}
	if err := g.ApplyLayout(layout); err != nil {
		logger.Warn("layout applied with errors", "error", err)
	}
	restored, skipped, err := g.Load(ctx)
	if err != nil {
		return err
	}
	logger.Info("grid ready", "grid", cfg.Grid.ID, "nodes", g.Len(), "restored", restored, "skipped", skipped)

	bindings := mqtt.NewBindingRegistry()
	if err := bindings.Load(cfg.Bridge.Bindings); err != nil {
		return fmt.Errorf("bridge bindings: %w", err)
	}
	topics := mqtt.NewTopics(cfg.Grid.ID)

	var sub *mqtt.CommandSubscriber
	client := mqtt.NewClient("signalgrid-"+cfg.Grid.ID, mqtt.BrokerURL(cfg.Network.MQTTURL),
		func() {
			if err := sub.SubscribeAll(); err != nil {
				logger.Error("mqtt subscribe failed", "error", err)
			}
		},
		func(err error) {
			logger.Warn("mqtt connection lost", "error", err)
			sub.ClearSubscriptions()
		})
	sub = mqtt.NewCommandSubscriber(client, g, bindings, topics)

	optional := cfg.Network.MQTTOptional
	api.SetMQTTState(false, optional)
	publisher := mqtt.NewStatePublisher(client, topics, bindings, 1024, func(up bool) {
		api.SetMQTTState(up, optional)
		m.SetBridgeConnected(up)
	})
	g.OnChange(publisher.Handle)

	if !client.StartWithRetry(logger) && !optional {
		logger.Warn("mqtt broker required but not reachable yet; readiness stays down until it connects")
	}
	publisher.Start(5 * time.Second)
	defer func() {
		publisher.Stop()
		client.Disconnect()
	}()

	alerter := api.NewAlerter(cfg.Grid.ID, logger)
	alerter.Watch(true, st != nil)

	addr := cfg.Addr()
	if a := cmd.String("addr-override"); a != "" {
		addr = a
	}
	srv := api.NewServer(g, m, logger)
	if st != nil {
		srv.SetHistory(st)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return g.Run(egCtx, cfg.TickInterval(), cfg.Storage.FlushIntervalTicks)
	})
	eg.Go(func() error {
		return srv.ListenAndServe(egCtx, addr)
	})
	eg.Go(func() error {
		alerter.Run(egCtx, 5*time.Second)
		return nil
	})
	if st != nil {
		eg.Go(func() error {
			monitorStore(egCtx, st, m, logger)
			return nil
		})
	}
	if !cmd.Bool("no-watch") {
		eg.Go(func() error {
			return config.WatchPolicy(egCtx, cfgPath, cfg.Policy, 500*time.Millisecond, func(o node.Options) {
				g.ApplyPolicy(o)
			}, logger)
		})
	}

	api.SetGridReady(true)
	err = eg.Wait()
	api.SetGridReady(false)
	events.Emit("info", "system.shutdown", "gridd stopped", map[string]interface{}{"grid": cfg.Grid.ID})
	return err
}

// monitorStore pings the store and mirrors its state into readiness and
// metrics.
func monitorStore(ctx context.Context, st store, m *metrics.GridCollector, logger *slog.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	up := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := st.Ping(pingCtx)
			cancel()
			if now := err == nil; now != up {
				up = now
				if up {
					logger.Info("store reachable again")
				} else {
					logger.Error("store unreachable", "error", err)
				}
			}
			api.SetStoreState(up, false)
			m.SetStoreConnected(up)
		}
	}
}
