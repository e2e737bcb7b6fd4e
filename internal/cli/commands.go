// Package cli is the cortexbi command line: the HTTP server and a one-shot
// ask command that prints the answer to the terminal.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cortexai/cortexbi/internal/config"
	"github.com/cortexai/cortexbi/internal/server"
)

const version = "1.0.0"

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:   "cortexbi",
		Short: "Ask questions of your warehouse in plain language",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if path, _ := cmd.Flags().GetString("config"); path != "" {
				os.Setenv("CORTEXBI_CONFIG", path)
			}
			loaded, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				loaded.LogLevel = "debug"
			}
			setupLogging(loaded)
			cfg = loaded
			return nil
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCmd(&cfg))
	rootCmd.AddCommand(newAskCmd(&cfg))
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("config", "", "Configuration file path (JSON or YAML)")

	return rootCmd
}

func newServeCmd(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv, err := server.New(ctx, *cfg)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
}

func newAskCmd(cfg **config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [QUESTION]",
		Short: "Answer one question and print the tables, chart and insights",
		Long: `Answer one question end to end and print the result.
Example: cortexbi ask "hours per employee last month"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			timeout, _ := cmd.Flags().GetDuration("timeout")
			sql, _ := cmd.Flags().GetString("sql")
			return runAsk(cmd.Context(), *cfg, strings.Join(args, " "), sql, timeout)
		},
	}
	cmd.Flags().Duration("timeout", 5*time.Minute, "Give up after this long")
	cmd.Flags().String("sql", "", "Run this SQL instead of generating it")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(titleStyle.Render("cortexbi v" + version))
		},
	}
}

func runAsk(ctx context.Context, cfg *config.Config, question, sql string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	conv := app.Conversations.Create()
	defer app.Conversations.Delete(conv.ID())

	fmt.Println(titleStyle.Render(question))

	h, err := submit(ctx, conv, question, sql)
	if err != nil {
		printNotices(conv.Notices())
		return err
	}
	sess, err := h.Wait(ctx)
	if err != nil {
		return err
	}
	printSession(sess)
	printNotices(conv.Notices())
	return nil
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}
