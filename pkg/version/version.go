package version

import (
	"fmt"
	"runtime"
)

// Name is the product name reported by the binary and the HTTP API
const Name = "Framekit"

// Build information, set with -ldflags "-X github.com/zsiec/framekit/pkg/version.Version=..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
	OS        = runtime.GOOS
	Arch      = runtime.GOARCH
)

// Info describes the running build.
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

func GetInfo() Info {
	return Info{
		Name:      Name,
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        OS,
		Arch:      Arch,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit: %s, built: %s, go: %s, os/arch: %s/%s)",
		i.Name, i.Version, i.GitCommit, i.BuildTime, i.GoVersion, i.OS, i.Arch)
}

// Short returns "<name> <version>".
func (i Info) Short() string {
	return fmt.Sprintf("%s %s", i.Name, i.Version)
}

// IsRelease reports whether the binary was built with a version stamp.
func (i Info) IsRelease() bool {
	return i.Version != "" && i.Version != "dev"
}
