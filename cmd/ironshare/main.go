package main

import (
	"os"

	"github.com/awnumar/memguard"

	"github.com/jmcleod/ironshare/cmd/ironshare/cmd"
)

func main() {
	err := cmd.Execute()
	// Wipe any locked buffers still alive before exiting.
	memguard.Purge()
	if err != nil {
		os.Exit(1)
	}
}
