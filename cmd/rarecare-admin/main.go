// Command rarecare-admin runs operator tasks against a rarecare deployment:
// migrations, patient token handling, bulk imports and model checks.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vcscsvcscs/rarecare-backend/internal/app"
	"github.com/vcscsvcscs/rarecare-backend/internal/audit"
	"github.com/vcscsvcscs/rarecare-backend/internal/config"
	"github.com/vcscsvcscs/rarecare-backend/internal/security"
	"github.com/vcscsvcscs/rarecare-backend/internal/service"
	"github.com/vcscsvcscs/rarecare-backend/pkg/model"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "rarecare-admin",
		Short:         "Operator tasks for the rarecare backend",
		SilenceUsage:  true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(checkModelCmd())

	return rootCmd
}

// loadRuntime reads the full configuration and builds its logger
func loadRuntime() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := app.NewLogger(cfg.Logging, cfg.Server.Environment)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			defer logger.Sync()

			applied, err := app.Migrate(cmd.Context(), cfg.Database.URL, logger)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Database is up to date.")
				return nil
			}
			for _, v := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", v)
			}
			return nil
		},
	}
}

// encryptorFromFlags builds the token encryptor from --key or ID_ENCRYPTION_KEY
func encryptorFromFlags(cmd *cobra.Command) (*security.Encryptor, error) {
	v := viper.New()
	if err := v.BindEnv("key", "ID_ENCRYPTION_KEY"); err != nil {
		return nil, err
	}
	if err := v.BindPFlag("key", cmd.Flags().Lookup("key")); err != nil {
		return nil, err
	}

	raw := v.GetString("key")
	if raw == "" {
		return nil, fmt.Errorf("an encryption key is required (--key or ID_ENCRYPTION_KEY)")
	}
	key, err := security.ParseKey(raw)
	if err != nil {
		return nil, err
	}
	return security.NewEncryptor(key)
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue and decode patient tokens",
	}
	cmd.PersistentFlags().String("key", "", "32 byte key, hex or base64 (defaults to ID_ENCRYPTION_KEY)")

	issueCmd := &cobra.Command{
		Use:   "issue [patient-id]",
		Short: "Issue a token for a patient, generating a new patient ID when none is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			encryptor, err := encryptorFromFlags(cmd)
			if err != nil {
				return err
			}

			patientID := uuid.NewString()
			if len(args) == 1 {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("patient id must be a UUID: %w", err)
				}
				patientID = id.String()
			}

			token, err := encryptor.EncryptID(patientID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "patient_id: %s\ntoken:      %s\n", patientID, token)
			return nil
		},
	}

	decodeCmd := &cobra.Command{
		Use:   "decode <token>",
		Short: "Print the patient ID sealed in a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			encryptor, err := encryptorFromFlags(cmd)
			if err != nil {
				return err
			}
			patientID, err := encryptor.DecryptID(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), patientID)
			return nil
		},
	}

	cmd.AddCommand(issueCmd, decodeCmd)
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a tracking export for a patient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patientID, _ := cmd.Flags().GetString("patient")
			conditionName, _ := cmd.Flags().GetString("condition")
			source, _ := cmd.Flags().GetString("source")

			if _, err := uuid.Parse(patientID); err != nil {
				return fmt.Errorf("--patient must be a UUID: %w", err)
			}
			condition, err := model.ParseConditionType(conditionName)
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			pool, err := app.OpenDatabase(ctx, cfg.Database, logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			archive, err := app.NewArchive(ctx, cfg.Azure.Storage, logger)
			if err != nil {
				return err
			}
			statsCache, redisClient := app.NewStatsCache(ctx, cfg.Redis, logger)
			if redisClient != nil {
				defer redisClient.Close()
			}

			repos := app.NewRepositories(pool, logger)
			trackingService := service.NewTrackingService(
				repos.Tracking,
				statsCache,
				archive,
				service.NewInsightGenerator(nil, cfg.Azure.OpenAI.Timeout, logger),
				audit.NewLogger(pool, logger),
				cfg.Insights.CacheTTL,
				logger,
			)

			result, err := trackingService.Import(ctx, service.ImportRequest{
				PatientID: patientID,
				Condition: condition,
				Raw:       raw,
				Filename:  filepath.Base(args[0]),
				Hint:      source,
			})
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(map[string]any{
				"condition":    condition,
				"source":       result.Record.Metadata.Source,
				"added":        result.Added,
				"skipped":      result.Skipped,
				"created":      result.Created,
				"totalEntries": len(result.Record.Entries),
				"archivePath":  result.Record.Metadata.ArchivePath,
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().String("patient", "", "patient ID (UUID)")
	cmd.Flags().String("condition", "", "condition type: epilepsy, diabetes, migraine or custom")
	cmd.Flags().String("source", "", "source name stored for generic imports")
	_ = cmd.MarkFlagRequired("patient")
	_ = cmd.MarkFlagRequired("condition")
	return cmd
}

func checkModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-model",
		Short: "Send a one-line prompt to the configured model deployment",
		RunE: func(cmd *cobra.Command, args []string) error {
			timeout, _ := cmd.Flags().GetDuration("timeout")

			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			defer logger.Sync()

			completer, err := app.NewModel(cfg.Azure.OpenAI, logger)
			if err != nil {
				return err
			}
			if completer == nil {
				return fmt.Errorf("azure.openai is not configured")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			start := time.Now()
			reply, err := completer.Complete(ctx, []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage("Answer with a single word."),
				openai.UserMessage("Reply with OK."),
			})
			if err != nil {
				return fmt.Errorf("model check failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "deployment %s answered %q in %s\n",
				cfg.Azure.OpenAI.Deployment, reply, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().Duration("timeout", 30*time.Second, "request timeout")
	return cmd
}
