// Package rahzom holds identifying information shared by the CLI and
// documentation: the project's version constants.
package rahzom

import "fmt"

const (
	// VersionMajor is the current major version of rahzom.
	VersionMajor = 0
	// VersionMinor is the current minor version of rahzom.
	VersionMinor = 1
	// VersionPatch is the current patch version of rahzom.
	VersionPatch = 0
)

// Version is the full version identifier.
var Version = fmt.Sprintf("%d.%d.%d", VersionMajor, VersionMinor, VersionPatch)
