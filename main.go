package main

import "github.com/philipparndt/smithforge/internal/cmd"

func main() {
	cmd.Parse()
}
