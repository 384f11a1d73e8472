// Package tracing wires optional Langfuse tracing into eino callbacks so
// every prompt and completion of the answer chain is recorded.
package tracing

import (
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

// Setup registers the Langfuse callback handler as a global eino handler if
// LANGFUSE_PUBLIC_KEY and LANGFUSE_SECRET_KEY are set. It returns a flush
// function that must be called before process exit so queued traces are
// sent, and whether tracing is enabled. When Langfuse is not configured the
// flush function is a no-op.
func Setup() (func(), bool) {
	publicKey := os.Getenv("LANGFUSE_PUBLIC_KEY")
	secretKey := os.Getenv("LANGFUSE_SECRET_KEY")
	if publicKey == "" || secretKey == "" {
		return func() {}, false
	}

	host := os.Getenv("LANGFUSE_HOST")
	if host == "" {
		host = "http://localhost:3000"
	}

	handler, flush := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      host,
		PublicKey: publicKey,
		SecretKey: secretKey,
		Name:      "pdfrag",
		Release:   os.Getenv("PDFRAG_RELEASE"),
	})
	callbacks.AppendGlobalHandlers(handler)

	return flush, true
}
