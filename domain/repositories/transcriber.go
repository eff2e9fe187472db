package repositories

import "context"

// UploadResult is the remote transcription endpoint's response. The
// server answers with either a transcript (to be sent on to the answer
// service) or, when it pre-answered the turn itself, a ready reply in
// Response.
type UploadResult struct {
	Transcript string `json:"transcript"`
	Text       string `json:"text"`
	Response   string `json:"response"`
}

// Transcriber uploads a recorded audio buffer to the remote transcription
// endpoint. Used by the record-then-upload capture strategy.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (UploadResult, error)
}
