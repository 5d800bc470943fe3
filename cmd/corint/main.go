// Command corint is the minimal CLI surface over the compiler and runtime
// (spec §6.4): compile a repository, run a single decision, or lint a
// repository without a config tree.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
