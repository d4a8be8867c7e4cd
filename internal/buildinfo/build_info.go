package buildinfo

import "fmt"

// BuildInfo holds the build identity of an executable artifact.
type BuildInfo struct {
	Version    string
	CommitHash string
	BuildDate  string
}

// New fills a BuildInfo from the values linked in at build time.
func New(version, commitHash, buildDate string) BuildInfo {
	return BuildInfo{Version: version, CommitHash: commitHash, BuildDate: buildDate}
}

// String returns the build info as a string.
func (i BuildInfo) String() string {
	return fmt.Sprintf("version %s (%s) built on %s", i.Version, i.CommitHash, i.BuildDate)
}
