package main

import (
	"os"

	"github.com/nfrund/chatapp/cmd/chatapp/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
