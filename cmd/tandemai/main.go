// Command tandemai drives the supervisor/worker orchestrator: serve it
// over HTTP, evaluate a prompt version against the fixed query set, or
// compare two completed evaluation runs.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/CuriosityQuantified/tandemai/cmd/tandemai/commands"
)

func main() {
	err := commands.Execute()
	if err == nil {
		os.Exit(0)
	}

	var exitErr *commands.ExitError
	if errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, exitErr.Error())
		os.Exit(exitErr.Code)
	}

	// Any error not carrying its own exit code is a usage failure:
	// unknown command, bad flags, missing required flags.
	fmt.Fprintln(os.Stderr, err)
	os.Exit(2)
}
