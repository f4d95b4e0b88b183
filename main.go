package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/linesmerrill/lfg-matchmaker/api/handlers"
	"github.com/linesmerrill/lfg-matchmaker/api/scheduler"
	"github.com/linesmerrill/lfg-matchmaker/bot"
	"github.com/linesmerrill/lfg-matchmaker/config"
	"github.com/linesmerrill/lfg-matchmaker/databases"
	"github.com/linesmerrill/lfg-matchmaker/matchmaking"
	"github.com/linesmerrill/lfg-matchmaker/notify"
)

const shutdownTimeout = 30 * time.Second

func main() {
	conf := config.New()
	if err := run(conf); err != nil {
		zap.S().Fatalw("lfg-matchmaker stopped", "error", err)
	}
}

func run(conf *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := databases.NewClient(conf)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		return fmt.Errorf("failed to create new client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		// if we fail to connect to the database, then kill the pod
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer client.Disconnect(context.Background())
	zap.S().Info("lfg-matchmaker has connected to the database")

	db := databases.NewDatabase(conf, client)
	sessions := databases.NewSessionDatabase(db)
	profiles := databases.NewProfileDatabase(db)
	games := databases.NewGameDatabase(db)
	if err := sessions.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create session indexes: %w", err)
	}

	discord, err := discordgo.New("Bot " + conf.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to create Discord session: %w", err)
	}
	presence := notify.NewPresence(discord.State)

	manager := matchmaking.NewManager(matchmaking.Deps{
		Sessions:  sessions,
		Profiles:  profiles,
		Notifier:  notify.NewGateway(discord, conf.ChannelCategory),
		Presence:  presence,
		Occupancy: presence,
	}, matchmaking.Options{
		Scheduler: matchmaking.SchedulerConfig{
			ReconcileDelay: conf.ReconcileDelay,
			WatchInterval:  conf.WatchInterval,
		},
		IdleGrace:    conf.IdleGrace,
		CandidateCap: conf.CandidateCap,
		PostChannel:  conf.PostChannel,
	})
	defer manager.Close()

	b := bot.New(discord, conf.GuildID, manager, profiles, games, presence)
	if err := discord.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	defer discord.Close()
	if err := b.Start(); err != nil {
		return err
	}
	defer b.Stop()
	zap.S().Infow("connected to Discord", "user", discord.State.User.Username, "guildId", conf.GuildID)

	// the startup scan reads voice occupancy from the state cache, which is
	// filled by the first GUILD_CREATE after Open
	if !waitForGuild(ctx, discord.State, conf.GuildID) {
		return fmt.Errorf("guild %s did not become available", conf.GuildID)
	}

	sweeper := scheduler.NewScheduler(manager, conf.SweepSpec)
	if err := sweeper.Start(); err != nil {
		return err
	}
	defer sweeper.Stop()

	a := handlers.App{Config: *conf, Sessions: manager}
	a.Initialize(ctx)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%v", conf.Port),
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()
	zap.S().Infow("lfg-matchmaker is up and running",
		"port", conf.Port,
		"url", conf.BaseURL,
	)

	select {
	case <-ctx.Done():
		zap.S().Info("shutting down")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func waitForGuild(ctx context.Context, state *discordgo.State, guildID string) bool {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(30 * time.Second)
	for {
		if _, err := state.Guild(guildID); err == nil {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline:
			return false
		case <-ticker.C:
		}
	}
}
