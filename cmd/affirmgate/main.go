package main

import "github.com/ppiankov/affirmgate/internal/cli"

func main() {
	cli.Execute()
}
