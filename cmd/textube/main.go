package main

import (
	"os"

	"github.com/guiyumin/textube/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
