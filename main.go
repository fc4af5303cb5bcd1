// The main package for the freelance-crawler executable.
package main

import (
	"github.com/ulritter/freelance-crawler/cmd"
)

func main() {
	cmd.Execute()
}
