// Command docingest downloads a document corpus, pushes it through the
// ingestion service and verifies the result in the vector store.
//
// Examples:
//
//	docingest run --documents ./kb --collection handbook
//	docingest run --config pipeline.toml
//	DOCINGEST_SOURCE_ENABLED=true DOCINGEST_SOURCE_BUCKET=kb docingest acquire
//	docingest probe --config staging.toml
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
)

// Exit codes.
const (
	exitOK                 = 0
	exitFatal              = 1
	exitVerificationFailed = 2
)

// errVerificationFailed signals a completed run whose store counts fell short.
var errVerificationFailed = errors.New("verification failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return exitCode(cmd.ExecuteContext(ctx), stderr)
}

// exitCode maps a command error to the process exit status, printing fatal
// errors and their hints.
func exitCode(err error, stderr io.Writer) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errVerificationFailed):
		fmt.Fprintln(stderr, err)
		return exitVerificationFailed
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(stderr, "interrupted")
		return exitFatal
	default:
		fmt.Fprintln(stderr, "Error:", err)
		if hint := errors.FlattenHints(err); hint != "" {
			fmt.Fprintln(stderr, "Hint:", hint)
		}
		return exitFatal
	}
}
