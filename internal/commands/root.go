// Package commands provides CLI commands for polychat.
package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/diogo/polychat/internal/config"
)

// Version info (set at build time)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
)

// globalFlags are shared by every command
type globalFlags struct {
	baseURL  string
	logLevel string
	logFile  string
}

// queryFlags only apply to the one-shot query
type queryFlags struct {
	file string
	copy bool
	raw  bool
}

// NewRootCmd creates the polychat command tree
func NewRootCmd(deps *Dependencies) *cobra.Command {
	if deps == nil {
		deps = NewDependencies()
	}
	gf := &globalFlags{}
	qf := &queryFlags{}

	cmd := &cobra.Command{
		Use:   "polychat [message]",
		Short: "Terminal client for the polytechnic chatbot",
		Long: `polychat sends questions to a chatbot service (POST {base_url}/chatbot)
and reveals the answer line by line, highlighting section headings.

Examples:
  polychat chat                          Start interactive chat
  polychat "fees for civil engineering"  Ask a single question
  polychat -f question.txt               Read the question from a file
  echo "hostel facilities" | polychat    Read the question from stdin
  polychat config set base_url http://10.0.0.5:5000`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				fmt.Fprintf(deps.Stdout, "polychat %s (built %s)\n", Version, BuildTime)
				return nil
			}

			message, ok, err := readMessage(deps.Stdin, qf.file, args)
			if err != nil {
				return err
			}
			if !ok {
				return cmd.Help()
			}

			s, err := loadSession(deps, gf)
			if err != nil {
				return err
			}
			defer s.close()

			return runQuery(deps, s, qf, message)
		},
	}

	cmd.PersistentFlags().StringVar(&gf.baseURL, "base-url", "", "Chatbot service address (default from config)")
	cmd.PersistentFlags().StringVar(&gf.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&gf.logFile, "log-file", "", "Log file path, or - for stderr")
	cmd.Flags().StringVarP(&qf.file, "file", "f", "", "Read the message from file")
	cmd.Flags().BoolVarP(&qf.copy, "copy", "c", false, "Copy the reply to the clipboard")
	cmd.Flags().BoolVarP(&qf.raw, "raw", "r", false, "Print the reply without styling or animation")
	cmd.Flags().BoolP("version", "v", false, "Show version and exit")

	cmd.AddCommand(newChatCmd(deps, gf))
	cmd.AddCommand(newConfigCmd(deps))

	return cmd
}

// rootCmd is the command run by Execute
var rootCmd = NewRootCmd(nil)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, formatErrorMessage(err))
		os.Exit(1)
	}
}

// readMessage picks the message from --file, the argument or piped stdin.
// ok is false when none of them was given.
func readMessage(stdin io.Reader, file string, args []string) (string, bool, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", false, fmt.Errorf("failed to read file: %w", err)
		}
		return string(data), true, nil
	}

	if len(args) > 0 {
		return args[0], true, nil
	}

	if stdinHasData(stdin) {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", false, fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), true, nil
	}

	return "", false, nil
}

// stdinHasData is false for an interactive terminal
func stdinHasData(r io.Reader) bool {
	if r == nil {
		return false
	}
	f, ok := r.(*os.File)
	if !ok {
		return true
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// session is the configuration and logger resolved for one command run
type session struct {
	cfg    config.Config
	log    zerolog.Logger
	closer io.Closer
}

func (s *session) close() {
	if s.closer != nil {
		_ = s.closer.Close()
	}
}

// loadSession resolves config from file, .env, environment and flags, in
// increasing precedence, and opens the diagnostic log.
func loadSession(deps *Dependencies, gf *globalFlags) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(deps.Stderr, "Warning: %v, using defaults\n", err)
	}

	if v := strings.TrimSpace(gf.baseURL); v != "" {
		cfg.BaseURL = v
	}
	if gf.logLevel != "" {
		cfg.LogLevel = gf.logLevel
	}
	if gf.logFile != "" {
		cfg.LogFile = gf.logFile
	}

	log, closer, err := deps.NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	log.Debug().
		Str("base_url", cfg.BaseURL).
		Str("version", Version).
		Msg("session started")

	return &session{cfg: cfg, log: log, closer: closer}, nil
}
