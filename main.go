// ./main.go
package main

import (
	"github.com/pmensalt/primefaces/cmd"
)

// main is the entry point for the pfgo CLI.
func main() {
	cmd.Execute()
}
