// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

// Package version holds build information stamped in at link time.
package version

import "fmt"

var (
	// commitSHA is set during the build via -ldflags.
	commitSHA string
	// latestVersion is the closest release tag, set during the build.
	latestVersion string
	// date is the build date, set during the build.
	date string
)

// Info carries the build information printed by the version command and
// the startup log line.
type Info struct {
	GitCommit  string `json:"gitCommit"`
	GitVersion string `json:"gitVersion"`
	BuildDate  string `json:"buildDate"`
}

// Get returns the build information stamped into the binary.
func Get() Info {
	return Info{
		GitCommit:  commitSHA,
		GitVersion: latestVersion,
		BuildDate:  date,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("git-commit=%s, git-version=%s, build-date=%s",
		i.GitCommit, i.GitVersion, i.BuildDate)
}
