// Command bookcachectl inspects and manages the book cache snapshot.
package main

import "os"

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
