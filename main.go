// The main package for the campcrawler executable.
package main

import (
	_ "time/tzdata"

	"github.com/JakeFAU/campground-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
