package main

import "github.com/use-agent/pledgescope/cmd/pledgescope-cli/cmd"

func main() {
	cmd.Execute()
}
