package main

import (
	"os"

	"github.com/harrison/pkgcat/internal/cmd"
)

// A reader closing our stdout (a truncated pipe) kills the process via
// the runtime's default SIGPIPE disposition rather than surfacing as a
// write error, so the scan loop never sees a broken pipe.
func main() {
	os.Exit(cmd.Execute(os.Args[1:]))
}
