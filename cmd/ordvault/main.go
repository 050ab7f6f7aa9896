package main

import (
	"context"
	"os"

	"github.com/dmitrijs2005/ordvault/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background()))
}
