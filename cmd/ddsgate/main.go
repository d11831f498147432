package main

import "github.com/ppiankov/ddsgate/internal/cli"

func main() {
	cli.Execute()
}
