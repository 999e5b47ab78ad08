package config

import (
	"errors"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// InitialVersion is used when the workspace has no version tags
var InitialVersion = Version{Major: 0, Minor: 1, Patch: 0}

// LatestTaggedVersion returns the highest X.Y.Z tag of the git repository containing dir.
// The boolean is false when dir is not inside a repository or carries no version tag.
func LatestTaggedVersion(dir string) (Version, bool, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return Version{}, false, nil
		}

		return Version{}, false, err
	}

	tags, err := repo.Tags()
	if err != nil {
		return Version{}, false, err
	}

	var latest Version
	found := false

	err = tags.ForEach(func(ref *plumbing.Reference) error {
		v, err := ParseVersion(ref.Name().Short())
		if err != nil {
			return nil // not a version tag
		}

		if !found || v.Compare(latest) > 0 {
			latest = v
			found = true
		}

		return nil
	})
	if err != nil {
		return Version{}, false, err
	}

	return latest, found, nil
}

// DefaultVersion computes the next patch release after the latest version tag
func DefaultVersion(dir string) (Version, error) {
	latest, found, err := LatestTaggedVersion(dir)
	if err != nil {
		return Version{}, err
	}

	if !found {
		return InitialVersion, nil
	}

	return latest.BumpPatch(), nil
}
