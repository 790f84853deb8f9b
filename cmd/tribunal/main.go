package main

import (
	"os"

	"github.com/dshills/tribunal/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
