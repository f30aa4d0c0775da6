package main

import "github.com/gibridargos/live-suhbat/internal/cli"

func main() {
	cli.Execute()
}
