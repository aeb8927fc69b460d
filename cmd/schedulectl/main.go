package main

import (
	"os"

	"github.com/noah-isme/class-schedule/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
