package app

import (
	"runtime/debug"
	"strings"
)

// Set with -ldflags "-X github.com/openchat/disqus/internal/app.BuildVersion=...".
var (
	BuildVersion = "dev"
	BuildCommit  = ""
)

type BuildInfo struct {
	Version     string `json:"version"`
	Commit      string `json:"commit"`
	CommitShort string `json:"commit_short"`
	Modified    bool   `json:"modified"`
}

// UserAgent identifies this build on outgoing API requests.
func (b BuildInfo) UserAgent() string {
	agent := "disqus-go/" + b.Version
	if b.CommitShort != "" && b.CommitShort != "unknown" {
		agent += " (" + b.CommitShort + ")"
	}
	return agent
}

type vcsSettings struct {
	moduleVersion string
	revision      string
	modified      string
}

func CurrentBuildInfo() BuildInfo {
	settings := vcsSettings{}
	if info, ok := debug.ReadBuildInfo(); ok {
		settings.moduleVersion = strings.TrimSpace(info.Main.Version)
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				settings.revision = strings.TrimSpace(setting.Value)
			case "vcs.modified":
				settings.modified = strings.TrimSpace(setting.Value)
			}
		}
	}
	return resolveBuildInfo(strings.TrimSpace(BuildVersion), strings.TrimSpace(BuildCommit), settings)
}

func resolveBuildInfo(version string, commit string, settings vcsSettings) BuildInfo {
	if version == "" {
		version = "dev"
	}
	if version == "dev" && settings.moduleVersion != "" && settings.moduleVersion != "(devel)" {
		version = settings.moduleVersion
	}
	if commit == "" {
		commit = settings.revision
	}
	if commit == "" {
		commit = "unknown"
	}

	short := commit
	if len(short) > 12 {
		short = short[:12]
	}
	return BuildInfo{
		Version:     version,
		Commit:      commit,
		CommitShort: short,
		Modified:    settings.modified == "true",
	}
}
