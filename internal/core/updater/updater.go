// Package updater replaces the running binary with the latest GitHub
// release.
package updater

import (
	"context"
	"fmt"
	"strings"

	"github.com/creativeprojects/go-selfupdate"

	"github.com/guiyumin/textube/internal/core/version"
)

const (
	repoOwner = "guiyumin"
	repoName  = "textube"
)

// Release is the newest published release.
type Release struct {
	Version   string
	URL       string
	Newer     bool
	AssetName string
}

func newUpdater() (*selfupdate.Updater, error) {
	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, err
	}
	return selfupdate.NewUpdater(selfupdate.Config{Source: source})
}

// currentVersion strips the leading "v" release tags carry.
func currentVersion() string {
	return strings.TrimPrefix(version.Version, "v")
}

func detectLatest(ctx context.Context, u *selfupdate.Updater) (*selfupdate.Release, error) {
	latest, found, err := u.DetectLatest(ctx, selfupdate.NewRepositorySlug(repoOwner, repoName))
	if err != nil {
		return nil, fmt.Errorf("failed to check for updates: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("no releases found for %s/%s", repoOwner, repoName)
	}
	return latest, nil
}

// Check reports the latest release and whether it is newer than this build.
func Check(ctx context.Context) (*Release, error) {
	u, err := newUpdater()
	if err != nil {
		return nil, err
	}
	latest, err := detectLatest(ctx, u)
	if err != nil {
		return nil, err
	}
	return &Release{
		Version:   latest.Version(),
		URL:       latest.URL,
		Newer:     !latest.LessOrEqual(currentVersion()),
		AssetName: latest.AssetName,
	}, nil
}

// Update installs the latest release over the running executable. It
// returns the installed version, or "" when already up to date.
func Update(ctx context.Context) (string, error) {
	u, err := newUpdater()
	if err != nil {
		return "", err
	}
	latest, err := detectLatest(ctx, u)
	if err != nil {
		return "", err
	}
	if latest.LessOrEqual(currentVersion()) {
		return "", nil
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	if err := u.UpdateTo(ctx, latest, exe); err != nil {
		return "", fmt.Errorf("failed to update: %w", err)
	}
	return latest.Version(), nil
}
