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

	"github.com/diewo77/go-saas/auth"
	"github.com/diewo77/go-saas/internal/config"
	"github.com/diewo77/go-saas/internal/db"
	"github.com/diewo77/go-saas/internal/models"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newRootCommand builds the saas-api CLI. Running it without a subcommand
// starts the server.
func newRootCommand() *cobra.Command {
	var envFile string
	cfg := &config.Config{}

	root := &cobra.Command{
		Use:           "saas-api",
		Short:         "Multi-tenant clients and purchases API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load environment variables from .env file
			_ = godotenv.Load(envFile)
			*cfg = *config.Load()
			return applyFlags(cmd.Flags(), cfg)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	addOverrideFlags(root.PersistentFlags())

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), cfg)
		},
	}
	serve.Flags().String("port", "", "listen port (overrides PORT)")
	serve.Flags().Bool("migrate", false, "run migrations before serving (overrides MIGRATIONS)")
	serve.Flags().Bool("seed", false, "seed demo data before serving (overrides SEED_ON_START)")

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Run DB migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(cfg.Log)
			conn, err := db.Open(cfg.Database, log)
			if err != nil {
				return err
			}
			if err := db.Migrate(conn); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			log.Info("migrations completed successfully")
			return nil
		},
	}

	seed := &cobra.Command{
		Use:   "seed",
		Short: "Seed demo data and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(cfg.Log)
			conn, err := db.Open(cfg.Database, log)
			if err != nil {
				return err
			}
			if err := db.Migrate(conn); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			if err := db.Seed(conn); err != nil {
				return fmt.Errorf("seeding failed: %w", err)
			}
			log.Info("seeding completed successfully")
			return nil
		},
	}

	root.AddCommand(serve, migrate, seed)
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())
	return root
}

// addOverrideFlags registers flags shared by every subcommand.
func addOverrideFlags(fs *pflag.FlagSet) {
	fs.String("log-level", "", "logrus level (overrides LOG_LEVEL)")
	fs.String("db-driver", "", "postgres or sqlite (overrides DB_DRIVER)")
}

// applyFlags lets explicitly set flags win over the environment.
func applyFlags(fs *pflag.FlagSet, cfg *config.Config) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "log-level":
			cfg.Log.Level = f.Value.String()
		case "db-driver":
			cfg.Database.Driver = f.Value.String()
		case "port":
			cfg.Server.Port = f.Value.String()
		case "migrate":
			cfg.App.Migrations, err = fs.GetBool("migrate")
		case "seed":
			cfg.App.SeedOnStart, err = fs.GetBool("seed")
		}
	})
	return err
}

func newLogger(cfg config.LogConfig) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		log.WithField("level", cfg.Level).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

// verifyUsers makes RequireAuth reject tokens of deleted users.
func verifyUsers(conn *gorm.DB) {
	auth.SetUserVerifier(func(ctx context.Context, uid string) bool {
		var count int64
		conn.WithContext(ctx).Model(&models.User{}).Where("id = ?", uid).Count(&count)
		return count > 0
	})
}

func runServer(ctx context.Context, cfg *config.Config) error {
	log := newLogger(cfg.Log)

	conn, err := db.Open(cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.App.Migrations {
		if err := db.Migrate(conn); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		log.Info("migrations completed")
	}
	if cfg.App.SeedOnStart {
		if err := db.Seed(conn); err != nil {
			return fmt.Errorf("seeding failed: %w", err)
		}
		log.Info("seed data loaded")
	}

	verifyUsers(conn)

	routerCfg := NewRouterConfig(conn, cfg, log)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      NewApp(conn, routerCfg, log),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"port": cfg.Server.Port, "dev": cfg.App.Dev}).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}
	log.Info("shutdown signal received")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped gracefully")
	return nil
}
