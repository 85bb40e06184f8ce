// Package utils provides bespoke, one off utils that don't make sense to be
// their own package
package utils

// Build metadata, set with -ldflags at release time.
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)

// VersionString formats the build metadata for "runstream version".
func VersionString() string {
	return Version + " (" + Sha + ", built " + Buildtime + ")"
}
