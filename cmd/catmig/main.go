// Command catmig validates instances and migrates them along schema mappings.
package main

import (
	"os"

	"github.com/mesh-intelligence/catmig/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
