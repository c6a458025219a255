// ABOUTME: Typed errors for the OpenAI client
// ABOUTME: Distinguishes upstream failures from data-shape and budget errors
package llm

import "fmt"

// NoChoicesError reports a chat completion that returned no choices. The
// call succeeded at the transport level but the response shape is unusable.
type NoChoicesError struct {
	Model string
}

func (e *NoChoicesError) Error() string {
	return fmt.Sprintf("chat completion from %s returned no choices", e.Model)
}

// NoTextError reports a transcription response with no text field.
type NoTextError struct {
	Filename string
}

func (e *NoTextError) Error() string {
	return fmt.Sprintf("transcription of %s returned no text", e.Filename)
}

// TokenLimitError reports a prompt that exceeds the configured budget before
// any API call is made. Not retryable.
type TokenLimitError struct {
	Tokens int
	Limit  int
}

func (e *TokenLimitError) Error() string {
	return fmt.Sprintf("prompt of %d tokens exceeds limit of %d", e.Tokens, e.Limit)
}
