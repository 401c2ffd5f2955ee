package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	awsadapter "github.com/yairfalse/billing-enforcer/internal/aws"
	"github.com/yairfalse/billing-enforcer/internal/config"
	"github.com/yairfalse/billing-enforcer/internal/enforcer"
	"github.com/yairfalse/billing-enforcer/internal/telemetry"
)

var (
	invokeEvent      string
	invokeRegion     string
	invokeEnvFile    string
	invokeConfigFile string
	invokeDryRun     bool
)

// invokeCmd replays a captured event against real AWS
var invokeCmd = &cobra.Command{
	Use:   "invoke",
	Short: "Process a single event locally",
	Long: `Run the enforcement pipeline once for an EventBridge event read from a
file (or stdin with "-"), using local AWS credentials.

Use --dry-run to describe the table without deleting it or publishing anything.`,
	Example: `  billing-enforcer invoke --event event.json --dry-run
  billing-enforcer invoke --event - --region us-west-2 < event.json
  billing-enforcer invoke --event event.json --env-file sandbox.env`,
	RunE: runInvoke,
}

func init() {
	rootCmd.AddCommand(invokeCmd)

	invokeCmd.Flags().StringVarP(&invokeEvent, "event", "e", "", "Path to the event JSON, or - for stdin")
	invokeCmd.Flags().StringVarP(&invokeRegion, "region", "r", "", "AWS region (defaults to the AWS environment)")
	invokeCmd.Flags().StringVar(&invokeEnvFile, "env-file", ".env", "Dotenv file loaded before reading configuration")
	invokeCmd.Flags().StringVarP(&invokeConfigFile, "config", "c", "", "Optional TOML config file")
	invokeCmd.Flags().BoolVar(&invokeDryRun, "dry-run", false, "Log deletes, events and notifications instead of performing them")
	_ = invokeCmd.MarkFlagRequired("event")
}

func runInvoke(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := loadEnvFile(invokeEnvFile); err != nil {
		return err
	}

	cfg, err := loadConfig(configPath(invokeConfigFile))
	if err != nil {
		return err
	}

	if err := telemetry.SetupLogging(cfg.Log.Level, true); err != nil {
		return err
	}

	raw, err := readEvent(invokeEvent, cmd.InOrStdin())
	if err != nil {
		return err
	}

	clients, err := awsadapter.NewClients(ctx, invokeRegion)
	if err != nil {
		return err
	}

	enf, err := buildEnforcer(cfg, clients, invokeDryRun)
	if err != nil {
		return err
	}

	return invoke(ctx, enf, raw, cmd.OutOrStdout())
}

// invoke runs one event and prints the response as JSON.
func invoke(ctx context.Context, enf *enforcer.Enforcer, raw []byte, out io.Writer) error {
	resp, err := newHandler(enf, nil)(ctx, raw)
	if err != nil {
		return fmt.Errorf("handle event: %w", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func readEvent(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read event from stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read event file: %w", err)
	}
	return data, nil
}

// loadEnvFile loads a dotenv file without overriding variables already set.
// A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// configPath prefers an explicit --config flag over ENFORCER_CONFIG.
func configPath(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(config.EnvConfigFile)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
