package main

import "thsrbook/internal/cli"

func main() {
	cli.Execute()
}
