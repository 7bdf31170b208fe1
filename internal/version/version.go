// Package version holds the service version.
package version

import "fmt"

// Version is the bumped-on-release semantic version.
var Version = "0.3.1"

// DevVersion is the developing version.
var DevVersion = "0.3.1"

func GetCurrentVersion(mode string) string {
	if mode == "dev" || mode == "demo" {
		return DevVersion
	}
	return Version
}

func GetSemverVersion(mode string) string {
	return fmt.Sprintf("v%s", GetCurrentVersion(mode))
}
