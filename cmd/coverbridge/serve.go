package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/coverbridge/coverbridge/internal/agent"
	"github.com/coverbridge/coverbridge/internal/agent/providers"
	"github.com/coverbridge/coverbridge/internal/bridge"
	"github.com/coverbridge/coverbridge/internal/config"
	"github.com/coverbridge/coverbridge/internal/convlog"
	"github.com/coverbridge/coverbridge/internal/observability"
	"github.com/coverbridge/coverbridge/internal/rendezvous"
	"github.com/coverbridge/coverbridge/internal/tools/browser"
	"github.com/coverbridge/coverbridge/internal/tools/closecrm"
	"github.com/coverbridge/coverbridge/internal/tools/fmcsa"
	"github.com/coverbridge/coverbridge/internal/tools/knowledge"
	"github.com/coverbridge/coverbridge/internal/tools/notes"
	"github.com/coverbridge/coverbridge/internal/tools/nowcerts"
	"github.com/coverbridge/coverbridge/internal/tools/pdfdoc"
	"github.com/coverbridge/coverbridge/internal/tools/workflows"
)

const systemPrompt = `You are CoverBridge, an assistant for a commercial insurance agency
specializing in trucking risks. You help agents look up carriers,
manage leads and policies, read documents, and drive the browser on
carrier portals. Verify carriers in the federal registry before
creating records. Ask before submitting forms. Keep answers short and
concrete.`

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the CoverBridge gateway",
		Long: `Start the gateway: the WebSocket endpoint for the browser
extension, the agent runtime, the metrics server, and the scheduled
renewal sweep. Graceful shutdown on SIGINT/SIGTERM.`,
		Example: `  # Start with default config
  coverbridge serve

  # Start with custom config
  coverbridge serve --config /etc/coverbridge/production.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "coverbridge.yaml",
		"Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logging")
	return cmd
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if debug {
		cfg.Logging.Level = "debug"
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	convStore, err := convlog.NewStore(cfg.Conversation.LogDir, cfg.Conversation.IndexLimit)
	if err != nil {
		return fmt.Errorf("failed to open conversation log: %w", err)
	}

	rdv := rendezvous.New(rendezvous.Config{
		DefaultTimeout: cfg.Rendezvous.ActionTimeout,
		Logger:         logger,
		Metrics:        metrics,
	})

	providerCfg := cfg.LLM.Providers[cfg.LLM.DefaultProvider]
	provider, err := providers.NewAnthropicProvider(providers.AnthropicConfig{
		APIKey:       providerCfg.APIKey,
		BaseURL:      providerCfg.BaseURL,
		DefaultModel: providerCfg.DefaultModel,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize LLM provider: %w", err)
	}

	registry := agent.NewToolRegistry()
	pad := notes.NewPad()

	server := bridge.NewServer(bridge.Options{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		Version: version,

		Provider: provider,
		Registry: registry,
		LoopConfig: agent.LoopConfig{
			MaxIterations: cfg.LLM.MaxIterations,
			MaxTokens:     cfg.LLM.MaxTokens,
			Model:         providerCfg.DefaultModel,
			System:        systemPrompt,
		},

		Rendezvous:      rdv,
		ConvStore:       convStore,
		ApprovalTimeout: cfg.Rendezvous.ApprovalTimeout,

		Logger:  logger,
		Metrics: metrics,

		OnConnect: func() { pad.Clear() },
	})

	var fmcsaClient *fmcsa.Client
	var crmClient *closecrm.Client
	var amsClient *nowcerts.Client

	if cfg.Tools.FMCSA.Enabled {
		fmcsaClient = fmcsa.NewClient(cfg.Tools.FMCSA.BaseURL, cfg.Tools.FMCSA.WebKey)
		registry.Register(fmcsa.NewTool(fmcsaClient))
	}
	if cfg.Tools.Close.Enabled {
		crmClient = closecrm.NewClient(cfg.Tools.Close.BaseURL, cfg.Tools.Close.APIKey)
		registry.Register(closecrm.NewTool(crmClient))
	}
	if cfg.Tools.NowCerts.Enabled {
		amsClient = nowcerts.NewClient(nowcerts.Config{
			BaseURL:  cfg.Tools.NowCerts.BaseURL,
			TokenURL: cfg.Tools.NowCerts.TokenURL,
			Username: cfg.Tools.NowCerts.Username,
			Password: cfg.Tools.NowCerts.Password,
		})
		registry.Register(nowcerts.NewTool(amsClient))
	}

	var knowledgeStore *knowledge.Store
	if cfg.Tools.Knowledge.Enabled {
		knowledgeStore, err = knowledge.NewStore(cfg.Tools.Knowledge.Dir, logger)
		if err != nil {
			return fmt.Errorf("failed to load knowledge base: %w", err)
		}
		defer knowledgeStore.Close()
		registry.Register(knowledge.NewTool(knowledgeStore))
	}
	if cfg.Tools.PDF.Enabled {
		registry.Register(pdfdoc.NewTool(pdfdoc.NewExtractor(".", cfg.Tools.PDF.MaxPages)))
	}

	registry.Register(notes.NewTool(pad))
	registry.Register(browser.NewTool(rdv, server, browser.Config{
		ActionTimeout:   cfg.Rendezvous.ActionTimeout,
		ApprovalTimeout: cfg.Rendezvous.ApprovalTimeout,
	}))

	var scheduler *workflows.Scheduler
	if fmcsaClient != nil && crmClient != nil && amsClient != nil {
		runner := workflows.NewRunner(fmcsaClient, crmClient, amsClient)
		window := time.Duration(cfg.Workflows.RenewalWindowDays) * 24 * time.Hour
		registry.Register(workflows.NewTool(runner, window))

		scheduler, err = workflows.NewScheduler(runner, cfg.Workflows.SweepSchedule, window, logger)
		if err != nil {
			return fmt.Errorf("failed to schedule renewal sweep: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	g.Go(func() error {
		return server.RunMetrics(gctx, cfg.Server.MetricsPort)
	})
	if scheduler != nil {
		scheduler.Start()
		g.Go(func() error {
			<-gctx.Done()
			scheduler.Stop()
			return nil
		})
	}

	logger.Info(ctx, "coverbridge started",
		"addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		"metrics_port", cfg.Server.MetricsPort,
		"version", version)

	return g.Wait()
}
