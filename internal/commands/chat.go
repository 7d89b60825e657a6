package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/diogo/polychat/internal/chat"
	"github.com/diogo/polychat/internal/render"
	"github.com/diogo/polychat/internal/reveal"
	"github.com/diogo/polychat/internal/tui"
)

func newChatCmd(deps *Dependencies, gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session with the chatbot.

The session opens on a landing view; press Enter to start chatting.
Commands: /clear empties the conversation, /copy copies the last reply,
/stop drops the latest reply (stopping it if it is still arriving),
/home returns to the landing view. Type 'exit', 'quit', or press Ctrl+C
to end the session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(deps, gf)
			if err != nil {
				return err
			}
			defer s.close()

			return runChat(deps, s)
		},
	}
}

func runChat(deps *Dependencies, s *session) error {
	client, err := deps.NewClient(s.cfg, s.log)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	defer client.Close()

	if s.cfg.TUITheme != "" && !render.SetTUITheme(s.cfg.TUITheme) {
		s.log.Warn().Str("theme", s.cfg.TUITheme).Msg("unknown TUI theme, using default")
	}
	tui.UpdateTheme()

	transcript := chat.NewTranscript()
	controller := chat.NewController(client, transcript,
		chat.WithLogger(s.log),
		chat.WithRenderer(reveal.NewRenderer(
			reveal.WithInterval(s.cfg.RevealInterval()),
			reveal.WithLogger(s.log),
		)),
	)
	defer controller.Close()

	s.log.Info().Str("base_url", client.BaseURL()).Msg("chat session started")
	return deps.TUI.RunChat(controller, transcript, client.BaseURL(), render.OptionsFromConfig(s.cfg))
}
