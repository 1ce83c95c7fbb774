package main

import (
	"context"
	"os"

	"github.com/fatih/color"

	"go-ask/internal/apperr"
)

func main() {
	ctx := context.Background()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		red := color.New(color.FgRed)
		red.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(apperr.ExitCode(err))
	}
}
