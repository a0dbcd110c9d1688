package main

import "github.com/agentic-research/dirgraph/cmd"

func main() {
	cmd.Execute()
}
