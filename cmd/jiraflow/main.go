package main

import (
	"os"

	"github.com/kiracore/jiraflow/cmd/jiraflow/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
