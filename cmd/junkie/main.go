// Command junkie runs the chat assistant daemon: it listens for gateway
// events, schedules turns, and replies.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:          "junkie",
		Short:        "Chat assistant orchestration daemon",
		Version:      version,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
