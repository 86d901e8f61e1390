package main

import "hostboot/internal/cli"

func main() {
	cli.Execute()
}
