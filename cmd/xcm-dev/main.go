package main

import (
	"os"

	"github.com/xcaliburmoon/xcm-dev/cmd/xcm-dev/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
