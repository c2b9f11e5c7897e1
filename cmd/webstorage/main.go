// Command webstorage serves and queries a trusted-statement record store.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/webstorage/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}
	// Commands print their own *ExitError; anything else comes from cobra
	// (unknown command, bad flag).
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
