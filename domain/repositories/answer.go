package repositories

import "context"

// FallbackReply is spoken or displayed whenever the answer service cannot
// produce a real reply. The user always gets a response, never a raw error.
const FallbackReply = "Sorry, I'm having trouble responding right now."

// AnswerClient sends a finalized transcript to the remote AI-answer
// endpoint. Implementations never return an empty-handed failure: on any
// error the reply is FallbackReply and the error carries the typed cause
// for the session's error message.
type AnswerClient interface {
	Ask(ctx context.Context, transcript string) (string, error)
}
