package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := buildRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "specd:", err)
		os.Exit(1)
	}
}
