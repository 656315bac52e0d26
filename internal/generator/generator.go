// Package generator produces call transcripts and summaries.
package generator

import (
	"context"
	"errors"
)

// TranscriptRequest carries what a transcriber may draw on. Recording fields
// are empty when the provider has not delivered a recording.
type TranscriptRequest struct {
	Goal            string
	ExpertName      string
	UserName        string
	ContextText     string
	ProviderCallSID string
	RecordingURL    string
}

type Transcriber interface {
	Transcribe(ctx context.Context, req TranscriptRequest) (string, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, transcript, goal string) (string, error)
}

var ErrEmptyOutput = errors.New("generator: empty output")
