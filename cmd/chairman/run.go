package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cowpoke-labs/chairman/internal/config"
	"github.com/cowpoke-labs/chairman/internal/connection"
	"github.com/cowpoke-labs/chairman/internal/cowswap"
	"github.com/cowpoke-labs/chairman/internal/discord"
	"github.com/cowpoke-labs/chairman/internal/forum"
	"github.com/cowpoke-labs/chairman/internal/llm"
	"github.com/cowpoke-labs/chairman/internal/logger"
	"github.com/cowpoke-labs/chairman/internal/poll"
	"github.com/cowpoke-labs/chairman/internal/reason"
	"github.com/cowpoke-labs/chairman/internal/snapshot"
	"github.com/cowpoke-labs/chairman/internal/sources"
	"github.com/cowpoke-labs/chairman/internal/store"

	safeclient "github.com/cowpoke-labs/chairman/internal/safe"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the agent loop",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
}

func run(parent context.Context) error {
	cfg, err := config.Load(characterPath)
	if err != nil {
		return err
	}
	creds, err := config.LoadCreds()
	if err != nil {
		return err
	}

	log := logger.New(logger.Config{
		Level:   logLevel,
		Pretty:  logPretty,
		Service: cfg.Name,
		Output:  os.Stderr,
	})

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	proposals, err := store.Open(envOr("PROPOSALS_PATH", "proposals.json"))
	if err != nil {
		return err
	}

	manager := connection.NewManager(log)
	var pollSources []poll.Source

	for _, cc := range cfg.Connections {
		interval := time.Duration(cc.Interval) * time.Second
		if interval <= 0 && cfg.LoopDelay > 0 {
			interval = time.Duration(cfg.LoopDelay) * time.Second
		}
		switch cc.Name {
		case "discord":
			if creds.DiscordToken == "" {
				return fmt.Errorf("connection %q: DISCORD_BOT_TOKEN is not set", cc.Name)
			}
			conn, err := discord.New(creds.DiscordToken).Connection()
			if err != nil {
				return err
			}
			if err := manager.Register(conn); err != nil {
				return err
			}
			pollSources = append(pollSources, sources.NewDiscord(sources.DiscordOptions{
				Manager:      manager,
				ChannelID:    cc.ChannelID,
				Interval:     interval,
				TriggerWords: cc.TriggerWords,
				IgnoreBots:   cc.IgnoreBots,
			}))

		case "snapshot":
			conn, err := snapshot.New().Connection()
			if err != nil {
				return err
			}
			if err := manager.Register(conn); err != nil {
				return err
			}
			pollSources = append(pollSources, sources.NewSnapshot(sources.SnapshotOptions{
				Manager:   manager,
				Proposals: proposals,
				SpaceID:   cc.Space,
				Interval:  interval,
			}))

		case "cowforum":
			client := forum.New(cc.URL, envOr("BROWSER_URL", "http://localhost:3000/content"))
			conn, err := client.Connection()
			if err != nil {
				return err
			}
			if err := manager.Register(conn); err != nil {
				return err
			}
			pollSources = append(pollSources, sources.NewForum(sources.ForumOptions{
				Manager:  manager,
				Category: cc.Category,
				Interval: interval,
			}))

		case "safe":
			conn, err := safeclient.New(cc.Endpoint).Connection()
			if err != nil {
				return err
			}
			if err := manager.Register(conn); err != nil {
				return err
			}

		case "cowswap":
			conn, err := cowswap.New(cc.Endpoint).Connection()
			if err != nil {
				return err
			}
			if err := manager.Register(conn); err != nil {
				return err
			}

		default:
			return fmt.Errorf("unknown connection %q in character file", cc.Name)
		}
	}

	// Heavier tasks poll first within a tick.
	sort.SliceStable(pollSources, func(i, j int) bool {
		return cfg.TaskWeight(pollSources[i].Name()) > cfg.TaskWeight(pollSources[j].Name())
	})

	provider, err := llm.NewAnthropicProvider(creds.AnthropicKey, nil)
	if err != nil {
		return err
	}
	llmClient := llm.New(provider, llm.Options{
		Model: envOr("LLM_MODEL", "claude-sonnet-4-5-20250514"),
	})

	registry := reason.NewToolRegistry()
	registry.RegisterTool(&reason.SendDiscordMessageTool{})
	registry.RegisterTool(&reason.CheckTxStatusTool{})
	registry.RegisterTool(&reason.CreateSafeTransactionTool{})
	registry.RegisterTool(&reason.FetchForumArticleTool{})
	registry.RegisterTool(&reason.GetProposalVotesTool{})
	registry.RegisterTool(&reason.CreateSwapOrderTool{})
	registry.RegisterTool(&reason.SignSwapOrderTool{})
	registry.RegisterTool(&reason.GetAnalysisTool{})
	if creds.NotifierURL != "" {
		registry.RegisterTool(&reason.RequestConfirmationTool{NotifierURL: creds.NotifierURL})
	}

	instructions := make(map[string]string)
	for _, cc := range cfg.Connections {
		if cc.Instructions != "" {
			instructions[cc.Name] = cc.Instructions
		}
	}

	step := reason.NewStep(reason.StepOptions{
		LLM:          llmClient,
		Registry:     registry,
		Manager:      manager,
		Proposals:    proposals,
		Persona:      cfg.Persona(),
		Instructions: instructions,
		Log:          log,
	})

	poller := poll.NewPoller(pollSources, poll.NewTracker(0), step.Decide, log)

	log.Info().Str("agent", cfg.Name).Int("sources", len(pollSources)).Msg("starting")
	if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
