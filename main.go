// The main package for the salemonitor executable.
package main

import (
	"github.com/JakeFAU/sale-monitor/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
