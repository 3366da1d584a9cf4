// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package git

import (
	"net/url"
	"strings"
)

// GitHubRepo identifies a repository hosted on github.com.
type GitHubRepo struct {
	Owner string
	Name  string
}

// ParseGitHubRemote recognizes https, ssh and scp-style github.com remotes.
// ok is false for any other host.
func ParseGitHubRemote(remote string) (repo GitHubRepo, ok bool) {
	remote = strings.TrimSpace(remote)
	if remote == "" {
		return GitHubRepo{}, false
	}

	var path string
	if strings.HasPrefix(remote, "git@github.com:") {
		path = strings.TrimPrefix(remote, "git@github.com:")
	} else {
		u, err := url.Parse(remote)
		if err != nil || !strings.EqualFold(u.Hostname(), "github.com") {
			return GitHubRepo{}, false
		}
		path = u.Path
	}

	path = strings.Trim(path, "/")
	path = strings.TrimSuffix(path, ".git")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return GitHubRepo{}, false
	}
	return GitHubRepo{Owner: parts[0], Name: parts[1]}, true
}

// TreeURL links to branch on github.com.
func (r GitHubRepo) TreeURL(branch string) string {
	return "https://github.com/" + r.Owner + "/" + r.Name + "/tree/" + branch
}

// PullRequestURL opens the new pull request form for branch.
func (r GitHubRepo) PullRequestURL(branch string) string {
	return "https://github.com/" + r.Owner + "/" + r.Name + "/pull/new/" + branch
}
