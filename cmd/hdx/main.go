// hdx runs payloads through deception-oriented transform pipelines defined
// in CUE. See "hdx --help" for the commands.
package main

import (
	"fmt"
	"os"

	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "hdx: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
