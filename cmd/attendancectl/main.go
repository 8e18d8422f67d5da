package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-bot/internal/repository"
	"github.com/noah-isme/attendance-bot/internal/service"
	"github.com/noah-isme/attendance-bot/pkg/config"
	"github.com/noah-isme/attendance-bot/pkg/database"
	"github.com/noah-isme/attendance-bot/pkg/logger"
)

var (
	seedName       string
	seedTelegramID int64
)

var rootCmd = &cobra.Command{
	Use:           "attendancectl",
	Short:         "Maintenance commands for the attendance bot database",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd.Context(), func(ctx context.Context, db *sqlx.DB, logr *zap.Logger) error {
			if err := repository.Migrate(ctx, db); err != nil {
				return err
			}
			logr.Info("schema up to date")
			return nil
		})
	},
}

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Register the first admin teacher",
	Long: `Registers a teacher with admin rights so the bot can be bootstrapped.

Further teachers are registered from the bot's admin menu.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd.Context(), func(ctx context.Context, db *sqlx.DB, logr *zap.Logger) error {
			if err := repository.Migrate(ctx, db); err != nil {
				return err
			}
			teachers := service.NewTeacherService(repository.NewTeacherRepository(db), validator.New(), logr)
			teacher, err := teachers.Register(ctx, service.RegisterTeacherRequest{
				Name:           seedName,
				TelegramUserID: seedTelegramID,
				IsAdmin:        true,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s registered (id %d, telegram id %d)\n", teacher.Name, teacher.ID, teacher.TelegramUserID)
			return nil
		})
	},
}

func init() {
	seedAdminCmd.Flags().StringVar(&seedName, "name", "", "teacher display name")
	seedAdminCmd.Flags().Int64Var(&seedTelegramID, "telegram-id", 0, "numeric Telegram user id")
	_ = seedAdminCmd.MarkFlagRequired("name")
	_ = seedAdminCmd.MarkFlagRequired("telegram-id")

	rootCmd.AddCommand(migrateCmd, seedAdminCmd)
}

func withDatabase(ctx context.Context, fn func(context.Context, *sqlx.DB, *zap.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	return fn(ctx, db, logr)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
