package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Stderr.WriteString("playstyle: " + err.Error() + "\n")
		os.Exit(1)
	}
}
