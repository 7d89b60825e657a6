package commands

import (
	"io"
	"os"

	"github.com/atotto/clipboard"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/diogo/polychat/internal/api"
	"github.com/diogo/polychat/internal/config"
	"github.com/diogo/polychat/internal/logging"
	"github.com/diogo/polychat/internal/render"
	"github.com/diogo/polychat/internal/tui"
)

// TUIInterface defines the methods required from the TUI package.
type TUIInterface interface {
	RunChat(conv tui.Conversation, feed tui.Feed, baseURL string, opts render.Options) error
}

// Dependencies holds the external dependencies for the commands.
// This allows for dependency injection and easier testing.
type Dependencies struct {
	// NewClient builds the chatbot client for the resolved configuration.
	NewClient func(cfg config.Config, log zerolog.Logger) (api.ChatbotClient, error)

	// NewLogger builds the diagnostic logger.
	NewLogger func(cfg config.Config) (zerolog.Logger, io.Closer, error)

	// TUI is the terminal user interface.
	TUI TUIInterface

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// IsTTY reports whether stdout is a terminal.
	IsTTY func() bool

	// IsStderrTTY reports whether stderr is a terminal.
	IsStderrTTY func() bool

	// Copy writes text to the system clipboard.
	Copy func(string) error
}

// DefaultTUI is the production implementation of TUIInterface.
type DefaultTUI struct{}

func (d *DefaultTUI) RunChat(conv tui.Conversation, feed tui.Feed, baseURL string, opts render.Options) error {
	return tui.RunChat(conv, feed, baseURL, opts)
}

// NewDependencies creates a new Dependencies struct with default implementations.
func NewDependencies() *Dependencies {
	return &Dependencies{
		NewClient:   newChatbotClient,
		NewLogger:   newLogger,
		TUI:         &DefaultTUI{},
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		IsTTY:       isStdoutTTY,
		IsStderrTTY: isStderrTTY,
		Copy:        clipboard.WriteAll,
	}
}

func newChatbotClient(cfg config.Config, log zerolog.Logger) (api.ChatbotClient, error) {
	return api.NewClient(cfg.BaseURL,
		api.WithTimeout(cfg.Timeout()),
		api.WithLogger(log),
	)
}

func newLogger(cfg config.Config) (zerolog.Logger, io.Closer, error) {
	file := cfg.LogFile
	if file != logging.Stderr {
		path, err := config.GetLogPath(cfg)
		if err != nil {
			return zerolog.Nop(), nil, err
		}
		file = path
	}
	return logging.New(logging.Options{Level: cfg.LogLevel, File: file})
}

// isStdoutTTY returns true if stdout is connected to a terminal
func isStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// isStderrTTY returns true if stderr is connected to a terminal
func isStderrTTY() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}
