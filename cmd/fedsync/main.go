package main

import (
	"os"

	"github.com/fedsync/fedsync/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
