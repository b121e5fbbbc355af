package main

import (
	"context"
	"os"

	"github.com/devHaitham481/A-Team/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background()))
}
