// Command hintctl runs the hint engine locally: an interactive chat, single
// questions, or an MCP server over stdio.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hint-agent/internal/app"
	"hint-agent/internal/config"
	"hint-agent/internal/integrations/paramstore"
	"hint-agent/internal/logging"
	"hint-agent/internal/mcptools"
	"hint-agent/internal/repository"
	"hint-agent/internal/session"
	"hint-agent/internal/usecase"
)

const version = "0.3.0"

// apiKeyEnv names the environment variable holding each provider's key.
var apiKeyEnv = map[string]string{
	config.ProviderOpenAI:    "OPENAI_API_KEY",
	config.ProviderAnthropic: "ANTHROPIC_API_KEY",
	config.ProviderGemini:    "GEMINI_API_KEY",
}

type rootFlags struct {
	configPath string
	provider   string
	baseURL    string
	chunks     string
	db         string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "hintctl",
		Short:         "Progressive adventure-game hints from the command line",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "YAML config file")
	pf.StringVar(&flags.provider, "provider", "", "generation provider: openai, anthropic or gemini")
	pf.StringVar(&flags.baseURL, "base-url", "", "override the provider API base URL")
	pf.StringVar(&flags.chunks, "chunks", "", "YAML chunk file for local retrieval")
	pf.StringVar(&flags.db, "db", "", "SQLite file for sessions (in-memory when empty)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(newChatCmd(flags), newAskCmd(flags), newMCPCmd(flags))
	return root
}

func newAskCmd(flags *rootFlags) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := buildService(flags)
			if err != nil {
				return err
			}
			defer cleanup()

			out, err := svc.SubmitTurn(cmd.Context(), usecase.TurnInput{
				SessionID: sessionID,
				Text:      strings.Join(args, " "),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Text)
			fmt.Fprintf(cmd.ErrOrStderr(), "session: %s\n", out.SessionID)
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session to continue")
	return cmd
}

func newChatCmd(flags *rootFlags) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat; /clear resets the session, /quit exits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, cleanup, err := buildService(flags)
			if err != nil {
				return err
			}
			defer cleanup()
			return runChat(cmd, svc, sessionID)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session to continue")
	return cmd
}

func runChat(cmd *cobra.Command, svc *usecase.HintService, sessionID string) error {
	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/clear":
			if sessionID != "" {
				if _, err := svc.ClearSession(cmd.Context(), sessionID); err != nil {
					return err
				}
			}
			sessionID = ""
			fmt.Fprintln(out, "Session cleared.")
			continue
		}

		res, err := svc.SubmitTurn(cmd.Context(), usecase.TurnInput{SessionID: sessionID, Text: line})
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
			continue
		}
		sessionID = res.SessionID
		fmt.Fprintln(out, res.Text)
	}
}

func newMCPCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve ask_hint and clear_session as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			svc, cleanup, err := buildService(flags)
			if err != nil {
				return err
			}
			defer cleanup()
			return server.ServeStdio(mcptools.NewServer(svc, version))
		},
	}
}

// loadConfig layers defaults, the config file, the environment and flags.
func loadConfig(flags *rootFlags) (config.Config, error) {
	cfg := config.Default()
	if flags.configPath != "" {
		if err := cfg.LoadFile(flags.configPath); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&cfg.Provider, flags.provider)
	override(&cfg.ProviderBaseURL, flags.baseURL)
	override(&cfg.ChunksFile, flags.chunks)
	override(&cfg.SQLitePath, flags.db)
	override(&cfg.LogLevel, flags.logLevel)
	return cfg, cfg.Validate()
}

func buildService(flags *rootFlags) (*usecase.HintService, func(), error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(cfg.LogLevel, true)
	if err != nil {
		return nil, nil, err
	}
	closers := []func() error{func() error { _ = logger.Sync(); return nil }}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("cleanup failed", zap.Error(err))
			}
		}
	}

	gen, err := app.NewGenerator(cfg, paramstore.StaticKey(os.Getenv(apiKeyEnv[cfg.Provider])))
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	retriever, closeRetriever, err := app.NewRetriever(cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, closeRetriever)

	storeOpts := []session.Option{session.WithLogger(logger)}
	if cfg.SQLitePath != "" {
		db, err := repository.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, db.Close)
		storeOpts = append(storeOpts, session.WithBackend(db))
	}

	opts := cfg.ServiceOptions()
	opts.Logger = logger
	svc, err := usecase.NewHintService(gen, retriever, session.New(cfg.MaxSessions, storeOpts...), opts)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}
