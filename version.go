package sitecost

import _ "embed"

// Version is the release of the library and the CLI.
//
//go:embed VERSION
var Version string
