package models

// Origin tells who produced a message
type Origin string

const (
	OriginUser Origin = "user"
	OriginBot  Origin = "bot"
)

// Message is one entry of the conversation view.
// Bot messages start empty and grow line by line while a reply is revealed.
type Message struct {
	ID     string
	Origin Origin
	Text   string

	// Pending marks the typing placeholder standing in for a reply
	Pending bool
	// Failed marks a visible notice that the reply could not be fetched
	Failed bool
}

// Line is a single revealed row of a bot reply
type Line struct {
	Text     string
	Emphasis bool
}

// NewLine builds a Line, emphasizing it when it starts with a marker glyph
func NewLine(text string) Line {
	return Line{Text: text, Emphasis: IsHeading(text)}
}

// UserMessage creates the message shown for submitted text
func UserMessage(id, text string) Message {
	return Message{ID: id, Origin: OriginUser, Text: UserPrefix + text}
}

// PlaceholderMessage creates the typing indicator for a pending reply
func PlaceholderMessage(id string) Message {
	return Message{ID: id, Origin: OriginBot, Text: TypingText, Pending: true}
}

// ReplyContainer creates the empty bot message a reply is revealed into
func ReplyContainer(id string) Message {
	return Message{ID: id, Origin: OriginBot}
}

// IsUser returns true when the message was typed by the user
func (m Message) IsUser() bool {
	return m.Origin == OriginUser
}
