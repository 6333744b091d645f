// Package main is the entry point for the Herald CLI.
package main

import (
	"github.com/heraldbot/herald/cmd/herald/commands"
)

func main() {
	commands.Execute()
}
