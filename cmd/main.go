package main

import "genderage/internal/cli"

func main() {
	cli.Execute()
}
