package main

import "github.com/underwoo/ncep-reanal/internal/cli"

func main() {
	cli.Execute()
}
