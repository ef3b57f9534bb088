package main

import "p2p-exchange-client/internal/cli"

func main() {
	cli.Execute()
}
