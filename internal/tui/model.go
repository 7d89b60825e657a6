package tui

import (
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/polychat/internal/chat"
	apierrors "github.com/diogo/polychat/internal/errors"
	"github.com/diogo/polychat/internal/render"
)

// Conversation is the part of chat.Controller the TUI drives
type Conversation interface {
	Submit(raw string) (chat.Turn, bool)
	Discard(id string) error
	Reset() error
}

// Feed is the message list the TUI displays
type Feed interface {
	Snapshot() []chat.Entry
	Changes() <-chan struct{}
	LastReply() (string, bool)
}

// transcriptChangedMsg is sent whenever the feed changed
type transcriptChangedMsg struct{}

// Chat commands typed into the input
const (
	cmdClear = "/clear"
	cmdCopy  = "/copy"
	cmdHome  = "/home"
	cmdStop  = "/stop"
)

const welcomeMarkdown = `# Polytechnic Assistant

Ask about **polytechnic colleges**, courses, fees, admissions and facilities.

- 🏫 college details
- 📍 locations and 📞 contact numbers
- 📜 courses and 🏷 fees

Press **Enter** to start chatting.`

// Model represents the TUI state
type Model struct {
	conv    Conversation
	feed    Feed
	baseURL string

	renderOpts render.Options
	copyFn     func(string) error

	// UI components
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	// State
	landing     bool
	landingView string
	lastTurn    chat.Turn
	ready       bool
	pending     bool
	notice      string
	err         error

	// Dimensions
	width  int
	height int
}

// NewChatModel creates a chat TUI model that starts on the landing view
func NewChatModel(conv Conversation, feed Feed, baseURL string, opts render.Options) Model {
	ta := textarea.New()
	ta.Placeholder = "Type your message here..."
	ta.CharLimit = 4000
	ta.ShowLineNumbers = false
	ta.SetHeight(1)
	ta.Focus()

	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle().Foreground(colorText)
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(colorTextDim)
	ta.BlurredStyle = ta.FocusedStyle

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = loadingStyle

	return Model{
		conv:       conv,
		feed:       feed,
		baseURL:    baseURL,
		renderOpts: opts,
		copyFn:     clipboard.WriteAll,
		textarea:   ta,
		spinner:    s,
		landing:    true,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		waitForChange(m.feed.Changes()),
	)
}

// waitForChange blocks until the feed signals a change
func waitForChange(changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return transcriptChangedMsg{}
	}
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 4 // Header panel with border
		inputHeight := 4  // Input panel with border
		statusHeight := 2 // Status bar and notice
		padding := 2

		vpHeight := m.height - headerHeight - inputHeight - statusHeight - padding
		if vpHeight < 5 {
			vpHeight = 5
		}
		contentWidth := m.width - 4

		if !m.ready {
			m.viewport = viewport.New(contentWidth, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = contentWidth
			m.viewport.Height = vpHeight
		}
		m.textarea.SetWidth(contentWidth - 4)
		m.landingView = m.renderLanding(contentWidth)
		m.updateViewport()

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.landing {
			return m.updateLanding(msg)
		}

		switch msg.String() {
		case "esc":
			m.landing = true
			return m, nil
		case "enter":
			return m.submit()
		}

	case transcriptChangedMsg:
		m.updateViewport()
		m.viewport.GotoBottom()
		cmds = append(cmds, waitForChange(m.feed.Changes()))

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
		if m.pending {
			m.updateViewport()
		}
	}

	// Only pass KeyMsg to the textarea to prevent escape sequence leaks
	if _, ok := msg.(tea.KeyMsg); ok && !m.landing {
		m.textarea, cmd = m.textarea.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// updateLanding handles keys while the landing view is shown
func (m Model) updateLanding(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.landing = false
		m.textarea.Focus()
		return m, textarea.Blink
	case "esc", "q":
		return m, tea.Quit
	}
	return m, nil
}

// submit handles Enter in the chat view
func (m Model) submit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textarea.Value())
	m.notice = ""
	m.err = nil

	switch input {
	case "exit", "quit", "/exit", "/quit":
		return m, tea.Quit
	case cmdHome:
		m.textarea.Reset()
		m.landing = true
		return m, nil
	case cmdClear:
		m.textarea.Reset()
		m.lastTurn = chat.Turn{}
		if err := m.conv.Reset(); err != nil {
			m.err = err
		}
		m.updateViewport()
		return m, nil
	case cmdCopy:
		m.textarea.Reset()
		m.copyLastReply()
		return m, nil
	case cmdStop:
		m.textarea.Reset()
		m.dropLastReply()
		m.updateViewport()
		return m, nil
	}

	if turn, ok := m.conv.Submit(m.textarea.Value()); ok {
		m.lastTurn = turn
		m.textarea.Reset()
	}
	return m, nil
}

// dropLastReply removes the answer to the latest message, stopping it if it
// is still on its way
func (m *Model) dropLastReply() {
	if m.lastTurn.ID == "" {
		m.notice = "Nothing to stop"
		return
	}
	dropped := false
	for _, id := range []string{m.lastTurn.PlaceholderID, m.lastTurn.ReplyID} {
		err := m.conv.Discard(id)
		switch {
		case err == nil:
			dropped = true
		case !apierrors.IsDetached(err):
			m.err = err
			return
		}
	}
	m.lastTurn = chat.Turn{}
	if dropped {
		m.notice = "Dropped the last reply"
	} else {
		m.notice = "Nothing to stop"
	}
}

func (m *Model) copyLastReply() {
	reply, ok := m.feed.LastReply()
	if !ok {
		m.notice = "Nothing to copy yet"
		return
	}
	if err := m.copyFn(reply); err != nil {
		m.err = err
		return
	}
	m.notice = "Copied last reply to clipboard"
}

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return loadingStyle.Render("  Initializing...")
	}
	contentWidth := m.width - 4

	if m.landing {
		return lipgloss.JoinVertical(
			lipgloss.Left,
			m.renderHeader(contentWidth),
			m.landingView,
			m.renderStatusBar(contentWidth),
		)
	}

	var sections []string
	sections = append(sections, m.renderHeader(contentWidth))

	var messagesContent string
	if len(m.feed.Snapshot()) == 0 {
		messagesContent = hintStyle.Render("No messages yet. Ask something below.")
	} else {
		messagesContent = m.viewport.View()
	}
	sections = append(sections, messagesAreaStyle.
		Width(contentWidth).
		Height(m.viewport.Height).
		Render(messagesContent))

	input := lipgloss.JoinVertical(
		lipgloss.Left,
		inputLabelStyle.Render("You"),
		m.textarea.View(),
	)
	sections = append(sections, inputPanelStyle.Width(contentWidth).Render(input))
	sections = append(sections, m.renderStatusBar(contentWidth))

	if m.err != nil {
		sections = append(sections, FormatError(m.err))
	} else if m.notice != "" {
		sections = append(sections, noticeStyle.Render(m.notice))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader(width int) string {
	header := lipgloss.JoinHorizontal(
		lipgloss.Center,
		titleStyle.Render("🏫 Polychat"),
		hintStyle.Render("  •  "),
		subtitleStyle.Render(m.baseURL),
	)
	return headerStyle.Width(width).Render(header)
}

// renderLanding renders the welcome markdown, falling back to plain text
func (m Model) renderLanding(width int) string {
	rendered, err := render.Markdown(welcomeMarkdown, m.renderOpts.WithWidth(width-6))
	if err != nil {
		rendered = welcomeMarkdown
	}
	return landingStyle.Width(width).Render(strings.TrimRight(rendered, "\n"))
}

type shortcut struct {
	key  string
	desc string
}

var (
	chatShortcuts = []shortcut{
		{"Enter", "Send"},
		{"Esc", "Home"},
		{"/clear /copy /stop", "Commands"},
		{"Ctrl+C", "Quit"},
	}
	landingShortcuts = []shortcut{
		{"Enter", "Start chat"},
		{"Esc", "Quit"},
	}
)

// renderStatusBar renders the bottom status bar with shortcuts
func (m Model) renderStatusBar(width int) string {
	shortcuts := chatShortcuts
	if m.landing {
		shortcuts = landingShortcuts
	}

	items := make([]string, 0, len(shortcuts))
	for _, s := range shortcuts {
		items = append(items, statusKeyStyle.Render(s.key)+statusDescStyle.Render(" "+s.desc))
	}
	return statusBarStyle.Width(width).Align(lipgloss.Center).Render(strings.Join(items, "  │  "))
}

// updateViewport refreshes the viewport content from the feed
func (m *Model) updateViewport() {
	entries := m.feed.Snapshot()
	width := m.viewport.Width - 4
	if width < 10 {
		width = 10
	}

	m.pending = false
	var content strings.Builder
	for i, e := range entries {
		if i > 0 {
			content.WriteString("\n")
		}
		content.WriteString(renderEntry(e, width, m.spinner.View()))
		content.WriteString("\n")
		if e.Pending {
			m.pending = true
		}
	}
	m.viewport.SetContent(content.String())
}

// renderEntry renders one message of the list
func renderEntry(e chat.Entry, width int, spin string) string {
	switch {
	case e.IsUser():
		return userMessageStyle.Width(width).Render(e.Text)
	case e.Pending:
		return loadingStyle.Render(spin + " " + e.Text)
	case e.Failed:
		return errorStyle.Width(width).Render(e.Text)
	}
	return botLabelStyle.Render("Bot") + "\n" +
		botMessageStyle.Width(width).Render(render.Lines(e.Lines))
}

// RunChat starts the chat TUI
func RunChat(conv Conversation, feed Feed, baseURL string, opts render.Options) error {
	m := NewChatModel(conv, feed, baseURL, opts)

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
	)

	_, err := p.Run()
	return err
}
