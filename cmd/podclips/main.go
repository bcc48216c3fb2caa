package main

import "github.com/forPelevin/podclips/internal/cli"

func main() {
	cli.Main()
}
