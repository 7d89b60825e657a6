// Package models contains data types and constants for the chatbot client.
package models

import (
	"strings"
	"time"
)

// Endpoints relative to the configured base URL
const (
	EndpointChatbot = "/chatbot"
)

// DefaultBaseURL is where the chatbot service listens when nothing else is configured
const DefaultBaseURL = "http://127.0.0.1:5000"

// DefaultRevealInterval is the delay between two revealed reply lines
const DefaultRevealInterval = 20 * time.Millisecond

// Display texts
const (
	UserPrefix      = "You: "
	TypingText      = "Bot is typing..."
	FailureTemplate = "Sorry, the chatbot could not answer: %s"
)

// MarkerGlyphs are the section-header prefixes that get emphasized when revealed.
// Order: school, document, tag, location, email, phone, building.
var MarkerGlyphs = []string{
	"🏫",
	"📜",
	"🏷",
	"📍",
	"📧",
	"📞",
	"🏢",
}

// IsHeading reports whether a reply line starts with one of the marker glyphs
func IsHeading(line string) bool {
	for _, glyph := range MarkerGlyphs {
		if strings.HasPrefix(line, glyph) {
			return true
		}
	}
	return false
}

// DefaultHeaders returns the headers sent with every chatbot request
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}
}
