package main

import (
	"fmt"
	"os"

	"github.com/nholik/sail-sentinel/internal/ui"
)

func main() {
	root := newRootCmd(newApp(os.Stdin, os.Stdout, os.Stderr))
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.ErrorMsg("%v", err))
		os.Exit(1)
	}
}
