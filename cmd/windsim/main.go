// Command windsim runs a procedural wind field over a demo physics scene.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "windsim:", err)
		os.Exit(1)
	}
}
