package main

import (
	"fmt"
	"os"

	"github.com/telekom/contact-relay/pkg/cli"
)

func main() {
	root := cli.NewRootCommand(cli.DefaultOptions())
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
