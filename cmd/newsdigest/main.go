package main

import (
	"os"

	"NewsDigest/cmd/newsdigest/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
