// Package main is the palefill program.
package main

import "github.com/martok/palefill/internal/cmd"

func main() {
	cmd.Main()
}
