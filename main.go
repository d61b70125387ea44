package main

import (
	"os"

	"github.com/kebairia/bacli/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
