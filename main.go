package main

import "micli/cli"

const Version = "0.1.0"

func main() {
	cli.Execute(Version)
}
