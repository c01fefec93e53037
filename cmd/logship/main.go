// Command logship runs the centralized log-ingestion and fan-out
// service described in SPEC_FULL.md.
package main

import (
	"fmt"
	"os"

	"github.com/acaciaworks/logship/cmd/logship/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
