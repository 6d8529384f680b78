package main

import "andrust/internal/cli"

func main() {
	cli.Execute()
}
