package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/junkielabs/junkie/internal/chat"
	"github.com/junkielabs/junkie/internal/collab"
	"github.com/junkielabs/junkie/internal/config"
	"github.com/junkielabs/junkie/internal/engine"
	"github.com/junkielabs/junkie/internal/llm"
	"github.com/junkielabs/junkie/internal/queue"
	"github.com/junkielabs/junkie/internal/route"
	"github.com/junkielabs/junkie/internal/sandbox"
	"github.com/junkielabs/junkie/internal/store"
	"github.com/junkielabs/junkie/internal/synth"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the assistant daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "junkie.yaml", "path to the config file")
	return cmd
}

func serve(parent context.Context, cfg config.Config) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	archive, err := store.Open(cfg.Archive.Path,
		store.WithCacheSize(cfg.Archive.CacheSize),
		store.WithLogger(logger.Named("store")))
	if err != nil {
		return err
	}
	defer func() { _ = archive.Close() }()

	generator, err := llm.NewClient(llm.Config{
		Command: cfg.LLM.Command,
		Args:    cfg.LLM.Args,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout.Std(),
	}, logger.Named("llm"))
	if err != nil {
		return err
	}

	backend, err := sandbox.NewCLIBackend(cfg.Sandbox.Tool)
	if err != nil {
		return err
	}
	sessions, err := sandbox.NewManager(backend,
		sandbox.WithTTL(cfg.Sandbox.TTL.Std()),
		sandbox.WithMaxTTL(cfg.Sandbox.MaxTTL.Std()),
		sandbox.WithLogger(logger.Named("sandbox")))
	if err != nil {
		return err
	}

	collaborators, err := buildCollaborators(cfg, archive, sessions, generator, logger)
	if err != nil {
		return err
	}

	router := route.New(collaborators,
		route.WithSessionEnsurer(sessions),
		route.WithCallTimeout(cfg.Collaborators.CallTimeout.Std()),
		route.WithLogger(logger.Named("route")))

	replier, err := synth.New(generator, logger.Named("synth"))
	if err != nil {
		return err
	}

	messenger, err := chat.NewSocketMessenger(cfg.Gateway.SocketPath, logger.Named("chat"))
	if err != nil {
		return err
	}
	if err := messenger.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = messenger.Close() }()

	eng, err := engine.New(engine.Config{
		Delegator: router,
		Replier:   replier,
		Messenger: messenger,
		Archive:   archive,
		Style: synth.StyleConfig{
			MatchUserLength:  cfg.Style.MatchUserLength,
			AllowEmoji:       cfg.Style.AllowEmoji,
			ForbiddenPhrases: cfg.Style.ForbiddenPhrases,
			VerbosityFlag:    cfg.Style.VerbosityFlag,
		},
		TurnDeadline:   cfg.Turn.Deadline.Std(),
		WindowCapacity: cfg.Window.Capacity,
		SkewTolerance:  cfg.Temporal.SkewTolerance.Std(),
		Logger:         logger.Named("engine"),
	})
	if err != nil {
		return err
	}

	manager := queue.NewManager(logger.Named("queue"))
	pool := queue.NewPool(manager, eng, cfg.Turn.Workers, logger.Named("queue"))

	events, err := messenger.Subscribe(ctx)
	if err != nil {
		return err
	}

	logger.Info("daemon started",
		zap.String("socket", cfg.Gateway.SocketPath),
		zap.Int("workers", cfg.Turn.Workers))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pool.Run(gctx)
	})
	g.Go(func() error {
		sessions.RunJanitor(gctx, cfg.Sandbox.JanitorInterval.Std())
		return nil
	})
	g.Go(func() error {
		defer manager.Close()
		for {
			select {
			case <-gctx.Done():
				return nil
			case msg, ok := <-events:
				if !ok {
					return nil
				}
				if err := manager.Submit(msg); err != nil {
					logger.Warn("event dropped", zap.Error(err))
				}
			}
		}
	})

	err = g.Wait()
	logger.Info("daemon stopped")
	return err
}

func buildCollaborators(
	cfg config.Config,
	archive *store.Archive,
	sessions *sandbox.Manager,
	generator *llm.Client,
	logger *zap.Logger,
) ([]collab.Collaborator, error) {
	history, err := collab.NewHistory(archive, logger.Named("collab"))
	if err != nil {
		return nil, err
	}
	exec, err := collab.NewExec(sessions, logger.Named("collab"))
	if err != nil {
		return nil, err
	}
	quick, err := collab.NewQuickCompute(generator, logger.Named("collab"))
	if err != nil {
		return nil, err
	}
	collaborators := []collab.Collaborator{history, exec, quick}

	if cfg.Collaborators.ResearchURL != "" {
		research, err := collab.NewHTTP(collab.Research, cfg.Collaborators.ResearchURL,
			collab.WithHTTPLogger(logger.Named("collab")))
		if err != nil {
			return nil, err
		}
		collaborators = append(collaborators, research)
	}
	if cfg.Collaborators.IntegrationURL != "" {
		integration, err := collab.NewHTTP(collab.Integration, cfg.Collaborators.IntegrationURL,
			collab.WithHTTPLogger(logger.Named("collab")))
		if err != nil {
			return nil, err
		}
		collaborators = append(collaborators, integration)
	}
	return collaborators, nil
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}

	var zcfg zap.Config
	if cfg.Logging.Development {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}
