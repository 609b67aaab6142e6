package main

import (
	"fmt"
	"os"
)

func main() {
	Execute()
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	if tip := hint(err); tip != "" {
		fmt.Fprintf(os.Stderr, "Tip: %s\n", tip)
	}
	os.Exit(1)
}
