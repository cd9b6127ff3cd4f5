package main

import "github.com/slipway-ci/slipway/internal/cli"

func main() {
	cli.Execute()
}
