package main

import (
	"fmt"
	"os"
)

func exitError(err error) {
	fmt.Fprintf(os.Stderr, "gitread: %v\n", err)
	os.Exit(1)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		exitError(err)
	}
}
