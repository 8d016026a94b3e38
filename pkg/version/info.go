package version

import "fmt"

var (
	// Version Build Time Injected information
	Version    string
	CommitHash string
	BuildTime  string
	OS         string
	Arch       string
)

// GetVersion returns the version information in a human consumable way.
// This is intended to be used when the user requests the version
// information.
func GetVersion() string {
	return makeVersionString(Version, CommitHash, OS, Arch)
}

func makeVersionString(version, commitHash, os, arch string) (versionString string) {
	versionString = fmt.Sprintf("%s(%s)", version, commitHash)

	if os != "" && arch != "" {
		versionString = fmt.Sprintf("%s/%s-%s", versionString, os, arch)
	} else if os != "" {
		versionString = fmt.Sprintf("%s/%s", versionString, os)
	}

	return versionString
}
