// Package utils provides bespoke, one off utils that don't make sense to be
// their own package
package utils

import "fmt"

// Set at build time with -ldflags "-X github.com/papercomputeco/quill/pkg/utils.Version=...".
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)

// VersionString is the one-line form printed by "quill version".
func VersionString() string {
	return fmt.Sprintf("quill %s (%s, built %s)", Version, Sha, Buildtime)
}
