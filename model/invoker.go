// Package model invokes the remote chat-completion service. It provides a
// cancellable, optionally streaming Invoker over any OpenAI-compatible
// endpoint, plus the Compactor that backs the memory package's remote
// summarization and entity extraction.
package model

import (
	"context"

	"github.com/wirechat/wirechat/core/protocol"
)

// Params are per-request generation parameters. Zero values fall back to
// the client's configured defaults.
type Params struct {
	Model        string
	Temperature  *float64
	MaxTokens    int
	EnableSearch bool
}

// Invoker is a cancellable call to the remote generation service.
type Invoker interface {
	// Complete performs a blocking call and returns the full response text.
	Complete(ctx context.Context, turns []protocol.Turn, params Params) (string, error)
	// Stream starts a streaming call. Fragments arrive in generation order
	// with no duplication; cancelling ctx aborts the underlying transport.
	Stream(ctx context.Context, turns []protocol.Turn, params Params) (Stream, error)
}

// Stream is a finite, non-restartable sequence of text fragments. Recv
// returns io.EOF once the upstream call has reported successful completion,
// and the context error once cancellation is observed; either way no
// further fragments follow. Close releases the underlying transport and is
// safe to call more than once.
type Stream interface {
	Recv() (string, error)
	Close() error
}
