// Package pkg holds the identity of the hbml project.
package pkg

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var version string

// Version is the semantic version embedded from the VERSION file.
var Version = strings.TrimSpace(version)

const (
	// Name is the command name; it also names the config and cache
	// directories.
	Name = "hbml"
	// Description is the one-line summary shown in help output.
	Description = "Indentation-based markup template compiler"
)
