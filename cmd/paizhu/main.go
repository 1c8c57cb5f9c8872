// Command paizhu manages the offline inspection records of one tablet:
// records, attachment files, settings and sync archives.
package main

import (
	"os"

	"github.com/mesh-intelligence/paizhu/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
