package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/abhisek/attune/internal/config"
	"github.com/abhisek/attune/internal/feed"
	"github.com/abhisek/attune/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the decision engine behind the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		log, err := newLogger(cfg.Log)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		dbPath, err := resolveDBPath(cmd, cfg)
		if err != nil {
			return fmt.Errorf("resolve database path: %w", err)
		}
		s, err := openDB(dbPath)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		rt, err := newInstance(ctx, cfg, s, nil, log)
		if err != nil {
			_ = s.Close()
			return err
		}
		defer rt.Close()

		log.Info("starting attune",
			zap.String("version", version),
			zap.String("db", dbPath),
			zap.String("llm", cfg.LLM.Provider))
		return serve(ctx, cfg, configPath(cmd), rt, log)
	},
}

// serve runs the engine loop, the API, and the optional feed poller and
// config watcher until ctx is done or one of them fails.
func serve(ctx context.Context, cfg config.Config, cfgPath string, rt *instance, log *zap.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return rt.eng.Run(ctx) })

	g.Go(func() error {
		srv := &http.Server{
			Addr:        cfg.Server.Addr,
			Handler:     server.New(rt.eng, rt.bus, cfg.Server.AllowedOrigins, log).Routes(),
			ReadTimeout: cfg.Server.ReadTimeout,
		}
		return server.ListenAndServe(ctx, srv, cfg.Server.ShutdownTimeout, log)
	})

	if cfg.Feed.Enabled() {
		poller := feed.NewPoller(cfg.Feed, rt.eng, log)
		g.Go(func() error { return poller.Run(ctx) })
	}

	if cfgPath != "" {
		w := config.NewWatcher(cfgPath, func(ctx context.Context, next config.Config) error {
			return rt.eng.Reconfigure(ctx, next.Engine())
		}, log)
		g.Go(func() error { return w.Run(ctx) })
	}

	return g.Wait()
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
}
