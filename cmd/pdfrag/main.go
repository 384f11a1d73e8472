// Command pdfrag answers questions about a folder of PDF documents. It
// indexes the documents into a vector collection (`pdfrag ingest`), answers
// single questions from the command line (`pdfrag ask`) and serves the same
// operations over HTTP (`pdfrag serve`).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/54b3r/pdfrag-go/cmd/pdfrag/commands"
)

func main() {
	if err := commands.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
