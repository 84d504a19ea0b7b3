package cmd

import "errors"

// errNoPatterns is returned when the invocation names no file patterns
// after the '--' separator.
var errNoPatterns = errors.New("no files to search for (specify patterns after '--')")
