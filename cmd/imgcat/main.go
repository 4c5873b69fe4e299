package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"imgcat/internal/catalog"
	"imgcat/internal/reconcile"
)

// Exit codes. A run that leaves failed subtrees behind is resumable and
// exits 2 so schedulers can tell it apart from a hard failure.
const (
	exitFailure    = 1
	exitIncomplete = 2
)

func main() {
	os.Exit(run(newRootCommand().Execute))
}

func run(execute func() error) int {
	err := execute()
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "interrupted; re-run to resume")
		return exitIncomplete
	case len(reconcile.Subtrees(err)) > 0, errors.Is(err, reconcile.ErrIncomplete):
		fmt.Fprintln(os.Stderr, err)
		return exitIncomplete
	case errors.Is(err, catalog.ErrSchemaMismatch):
		fmt.Fprintf(os.Stderr, "%v (the catalog was created by another imgcat release)\n", err)
		return exitFailure
	default:
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
}
