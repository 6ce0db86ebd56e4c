package main

import (
	"os"

	"github.com/jo-hoe/cdbgen/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
