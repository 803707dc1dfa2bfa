package main

import "github.com/mcoot/chesschain-go/internal/cli"

func main() {
	cli.Execute()
}
