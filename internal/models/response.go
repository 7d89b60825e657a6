package models

import (
	"fmt"
	"strings"
)

// ChatRequest is the JSON body posted to the chatbot endpoint
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the JSON body returned by the chatbot endpoint
type ChatResponse struct {
	Response string `json:"response"`
}

// Outcome is the result of one conversation turn's request:
// either a reply text or the reason it failed.
type Outcome struct {
	Reply  string
	Reason error
}

// Succeeded returns an Outcome carrying a reply
func Succeeded(reply string) Outcome {
	return Outcome{Reply: reply}
}

// Failed returns an Outcome carrying a failure reason
func Failed(reason error) Outcome {
	return Outcome{Reason: reason}
}

// OK reports whether the request produced a reply
func (o Outcome) OK() bool {
	return o.Reason == nil
}

// FailureText is the user-visible notice for a failed outcome
func (o Outcome) FailureText() string {
	if o.Reason == nil {
		return ""
	}
	return fmt.Sprintf(FailureTemplate, o.Reason.Error())
}

// SplitLines splits text on line breaks. Empty lines are kept and the
// empty string yields a single empty line. A "\r" before the break is dropped.
func SplitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
