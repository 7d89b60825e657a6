package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/polychat/internal/chat"
	"github.com/diogo/polychat/internal/models"
	"github.com/diogo/polychat/internal/render"
	"github.com/diogo/polychat/internal/reveal"
	"github.com/diogo/polychat/internal/tui"
)

// errNoReply is returned when the chatbot could not answer
var errNoReply = errors.New("the chatbot did not answer")

// Gradient colors for animation
var gradientColors = []lipgloss.Color{
	lipgloss.Color("#ff6b6b"), // Red
	lipgloss.Color("#feca57"), // Yellow
	lipgloss.Color("#48dbfb"), // Cyan
	lipgloss.Color("#ff9ff3"), // Pink
	lipgloss.Color("#54a0ff"), // Blue
	lipgloss.Color("#5f27cd"), // Purple
	lipgloss.Color("#00d2d3"), // Teal
	lipgloss.Color("#1dd1a1"), // Green
}

var (
	colorText     = lipgloss.Color("#c0caf5")
	colorTextMute = lipgloss.Color("#3b4261")
	colorSuccess  = lipgloss.Color("#9ece6a")
	colorFailure  = lipgloss.Color("#f7768e")
)

var (
	userLineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a"))

	botLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7aa2f7")).
			Bold(true)

	failureStyle = lipgloss.NewStyle().Foreground(colorFailure)
)

// spinner is the animated typing placeholder of the one-shot query
type spinner struct {
	w       io.Writer
	message string
	stop    chan struct{}
	done    chan struct{}
	mu      sync.Mutex
	frame   int
	stopped bool
}

func newSpinner(w io.Writer, message string) *spinner {
	return &spinner{
		w:       w,
		message: message,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// start begins the animation
func (s *spinner) start() {
	go func() {
		defer close(s.done)

		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		// Hide cursor
		fmt.Fprint(s.w, "\033[?25l")

		for {
			select {
			case <-s.stop:
				// Clear line and show cursor
				fmt.Fprint(s.w, "\r\033[K\033[?25h")
				return
			case <-ticker.C:
				s.mu.Lock()
				s.render()
				s.frame++
				s.mu.Unlock()
			}
		}
	}()
}

// render draws the current animation frame
func (s *spinner) render() {
	chars := []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

	spinColor := gradientColors[s.frame%len(gradientColors)]
	spinnerChar := lipgloss.NewStyle().Foreground(spinColor).Bold(true).Render(chars[s.frame%len(chars)])

	var dots strings.Builder
	numDots := (s.frame / 3) % 4
	for i := 0; i < 3; i++ {
		if i < numDots {
			dotColor := gradientColors[(s.frame+i)%len(gradientColors)]
			dots.WriteString(lipgloss.NewStyle().Foreground(dotColor).Render("●"))
		} else {
			dots.WriteString(lipgloss.NewStyle().Foreground(colorTextMute).Render("○"))
		}
	}

	msg := lipgloss.NewStyle().Foreground(colorText).Render(s.message)
	fmt.Fprintf(s.w, "\r\033[K%s %s %s", spinnerChar, msg, dots.String())
}

// stopOnce safely closes the stop channel only once
func (s *spinner) stopOnce() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		close(s.stop)
		s.stopped = true
	}
}

// stopWithSuccess stops the spinner and shows success message
func (s *spinner) stopWithSuccess(message string) {
	s.stopOnce()
	<-s.done

	checkmark := lipgloss.NewStyle().Foreground(colorSuccess).Bold(true).Render("✓")
	msg := lipgloss.NewStyle().Foreground(colorSuccess).Render(message)
	fmt.Fprintf(s.w, "%s %s\n", checkmark, msg)
}

// stopWithError stops the spinner and clears its line
func (s *spinner) stopWithError() {
	s.stopOnce()
	<-s.done
}

// consoleView prints a conversation to the terminal. Reply lines go to out,
// everything else to errOut so piped output only carries the reply.
type consoleView struct {
	out    io.Writer
	errOut io.Writer
	// styled colors the reply lines
	styled bool
	// errStyled enables colors, the spinner and the bot label on errOut
	errStyled bool
	// quiet suppresses everything but reply lines and failures
	quiet bool

	mu            sync.Mutex
	spin          *spinner
	placeholderID string
	reply         strings.Builder
	lines         int
	failure       string
}

func (v *consoleView) Append(msg models.Message) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch {
	case msg.IsUser():
		if !v.quiet {
			text := msg.Text
			if v.errStyled {
				text = userLineStyle.Render(text)
			}
			fmt.Fprintln(v.errOut, text)
		}
	case msg.Pending:
		v.placeholderID = msg.ID
		if v.errStyled {
			v.spin = newSpinner(v.errOut, msg.Text)
			v.spin.start()
		}
	case msg.Failed:
		v.failure = msg.Text
		text := msg.Text
		if v.errStyled {
			text = failureStyle.Render(text)
		}
		fmt.Fprintln(v.errOut, text)
	default:
		if v.errStyled {
			fmt.Fprintln(v.errOut, botLabelStyle.Render("Bot"))
		}
	}
	return nil
}

func (v *consoleView) Remove(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if id == v.placeholderID && v.spin != nil {
		v.spin.stopWithError()
		v.spin = nil
	}
	return nil
}

func (v *consoleView) AppendLine(_ string, line models.Line) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.lines > 0 {
		v.reply.WriteString("\n")
	}
	v.reply.WriteString(line.Text)
	v.lines++

	text := line.Text
	if v.styled {
		text = render.Line(line)
	}
	_, err := fmt.Fprintln(v.out, text)
	return err
}

func (v *consoleView) Reset() error {
	return nil
}

// Reply returns the revealed reply text
func (v *consoleView) Reply() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.reply.String()
}

// Failure returns the failure notice, if the request failed
func (v *consoleView) Failure() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.failure
}

var _ chat.View = (*consoleView)(nil)

// runQuery sends a single message and reveals the reply on stdout
func runQuery(deps *Dependencies, s *session, qf *queryFlags, message string) error {
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("message cannot be empty")
	}

	client, err := deps.NewClient(s.cfg, s.log)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	defer client.Close()

	styled := !qf.raw && deps.IsTTY()
	view := &consoleView{
		out:       deps.Stdout,
		errOut:    deps.Stderr,
		styled:    styled,
		errStyled: !qf.raw && deps.IsStderrTTY(),
		quiet:     qf.raw,
	}

	// No animation when the output is not watched
	interval := time.Duration(0)
	if styled {
		interval = s.cfg.RevealInterval()
	}

	controller := chat.NewController(client, view,
		chat.WithLogger(s.log),
		chat.WithRenderer(reveal.NewRenderer(
			reveal.WithInterval(interval),
			reveal.WithLogger(s.log),
		)),
	)
	defer controller.Close()

	if _, ok := controller.Submit(message); !ok {
		return fmt.Errorf("message cannot be empty")
	}
	controller.Wait()

	if view.Failure() != "" {
		return fmt.Errorf("%w (%s)", errNoReply, client.BaseURL())
	}

	if qf.copy || s.cfg.CopyToClipboard {
		copyReply(deps, view.Reply(), qf.raw)
	}
	return nil
}

// copyReply puts the reply on the clipboard; failures only warn
func copyReply(deps *Dependencies, reply string, quiet bool) {
	if err := deps.Copy(reply); err != nil {
		fmt.Fprintln(deps.Stderr, failureStyle.Render(fmt.Sprintf("⚠ Failed to copy to clipboard: %v", err)))
		return
	}
	if !quiet {
		fmt.Fprintln(deps.Stderr, lipgloss.NewStyle().Foreground(colorSuccess).Render("✓ Copied to clipboard"))
	}
}

// formatErrorMessage formats a command error for the terminal
func formatErrorMessage(err error) string {
	if errors.Is(err, errNoReply) {
		return failureStyle.Render(fmt.Sprintf("✗ %v", err)) +
			"\n  Details are in the log: polychat.log in the config directory, or use --log-file -"
	}
	return tui.FormatError(err)
}
