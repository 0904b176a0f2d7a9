package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gdg-garage/garage-workshops/internal/auth"
	"github.com/gdg-garage/garage-workshops/internal/config"
	"github.com/gdg-garage/garage-workshops/internal/database"
	"github.com/gdg-garage/garage-workshops/internal/handlers"
	"github.com/gdg-garage/garage-workshops/internal/logger"
	"github.com/gdg-garage/garage-workshops/internal/models"
	"github.com/gdg-garage/garage-workshops/internal/notifier"
	"github.com/gdg-garage/garage-workshops/internal/services"
	"github.com/gdg-garage/garage-workshops/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCommand() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "migrate the database schema before serving")
	return cmd
}

// buildNotifier wires every notification channel that is configured.
func buildNotifier(ctx context.Context, cfg *config.Config, log *zap.Logger) notifier.Notifier {
	multi := notifier.NewMulti(log)

	if cfg.DiscordBotToken != "" && cfg.DiscordNotificationsChannelID != "" {
		session, err := discordgo.New("Bot " + cfg.DiscordBotToken)
		if err != nil {
			log.Warn("Discord notifier not initialized", zap.Error(err))
		} else {
			multi.Add("discord", notifier.NewDiscordNotifier(session, cfg.DiscordNotificationsChannelID))
		}
	}

	if cfg.SESSender != "" || cfg.SNSTopicARN != "" {
		awsCfg, err := notifier.LoadAWSConfig(ctx, cfg.AWSRegion)
		if err != nil {
			log.Warn("AWS notifiers not initialized", zap.Error(err))
		} else {
			if cfg.SESSender != "" {
				multi.Add("email", notifier.NewEmailNotifier(awsCfg, cfg.SESSender))
			}
			if cfg.SNSTopicARN != "" {
				multi.Add("sns", notifier.NewTopicNotifier(awsCfg, cfg.SNSTopicARN))
			}
		}
	}

	log.Info("notifications configured", zap.Int("channels", multi.Len()))
	if multi.Len() == 0 {
		return notifier.Nop{}
	}
	return multi
}

func serve(ctx context.Context, cfg *config.Config, migrate bool) error {
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer log.Sync()

	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	if migrate {
		if err := database.Migrate(db); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notify := buildNotifier(ctx, cfg, log)
	blobs := store.NewAferoBlobs(afero.NewOsFs(), cfg.StorageRoot)
	users := store.NewCollection[models.UserRecord](db)

	workshops := services.NewWorkshopService(
		store.NewCollection[models.WorkshopRecord](db),
		users,
		services.ImageStorage{
			Blobs:    blobs,
			Endpoint: cfg.StorageEndpoint,
			Project:  cfg.StorageProjectID,
			Bucket:   cfg.ImageBucket,
		},
		notify, log,
	)
	applications := services.NewApplicationService(store.NewCollection[models.ApplicationRecord](db), workshops, users, notify, log)
	accounts := services.NewAccountService(store.NewCollection[models.Account](db), users, log)

	authHandler := auth.NewAuthHandler(cfg, accounts, log)
	submitter := handlers.NewSubmitter(applications, log)

	opts := handlers.Options{DiscordLogin: cfg.DiscordLogin()}
	if cfg.EnableCORS {
		opts.AllowedOrigin = cfg.BaseURL
	}

	// Initialize Router
	r := chi.NewRouter()
	handlers.RegisterRoutes(r, authHandler, handlers.Handlers{
		Accounts:     handlers.NewAccountHandler(accounts, authHandler, log),
		Workshops:    handlers.NewWorkshopHandler(workshops, log),
		Forms:        handlers.NewFormHandler(workshops),
		Applications: handlers.NewApplicationHandler(applications, submitter),
		Pages:        handlers.NewPageHandler(workshops, applications, accounts, authHandler, submitter, cfg.DiscordLogin(), log),
		Files:        handlers.NewFileHandler(blobs, cfg.StorageProjectID, log),
	}, opts)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("Starting server", zap.String("port", cfg.Port))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
