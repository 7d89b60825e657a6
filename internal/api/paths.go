package api

// GJSON paths for extracting values from chatbot replies.
const (
	// PathResponse holds the reply text
	PathResponse = "response"
)
