// Command dnaconv manages and serves a DNA converter controller.
package main

import (
	"os"

	_ "dnaconverter/internal/plugins/builtin"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
