package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"

	"github.com/dggpoliticalaction/greeter/internal/application/retention"
	"github.com/dggpoliticalaction/greeter/internal/application/threads"
	"github.com/dggpoliticalaction/greeter/internal/config"
	"github.com/dggpoliticalaction/greeter/internal/infrastructure/discord"
)

var reapTimeout time.Duration

var reapCmd = &cobra.Command{
	Use:   "reap",
	Short: "Close inactive welcome threads once and exit",
	RunE:  runReap,
}

func init() {
	reapCmd.Flags().DurationVar(&reapTimeout, "timeout", 5*time.Minute, "give up after this long")
	rootCmd.AddCommand(reapCmd)
}

func runReap(cmd *cobra.Command, args []string) error {
	log := newLogger()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	welcome := cfg.WelcomeThreadSettings()
	if welcome == nil {
		return fmt.Errorf("welcomeThread.channelName is not set")
	}

	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		return err
	}
	ready := make(chan struct{})
	session.AddHandlerOnce(func(_ *discordgo.Session, _ *discordgo.Ready) { close(ready) })
	if err := session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	defer session.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), reapTimeout)
	defer cancel()
	select {
	case <-ready:
	case <-ctx.Done():
		return fmt.Errorf("wait for discord ready: %w", ctx.Err())
	}

	provider := discord.NewProvider(session)
	manager := threads.NewManager(provider, provider, welcome, nil, log)
	report, err := retention.NewReaper(provider, provider, manager, welcome, nil, log).Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "checked %d, closed %d, failed %d\n", report.Checked, report.Closed, report.Failed)
	return nil
}
