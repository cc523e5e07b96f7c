// spherecli is a terminal client for Task Sphere: log in, work your
// lists and queue, and watch the shared board update live.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
