// Command fintrackctl runs maintenance and reporting tasks directly against
// the fintrack store.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
