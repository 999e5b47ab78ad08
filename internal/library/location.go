package library

import (
	"fmt"
	"strings"
)

// Location describes where the sources of a library come from. It is one of
// GitLocation, TarLocation or PathLocation.
type Location interface {
	fmt.Stringer
	isLocation()
}

// GitLocation is a repository checked out at a tag, a branch or a commit.
// With no ref the default branch is used.
type GitLocation struct {
	URL    string
	Tag    string
	Branch string
	Commit string
}

// GitHub returns the location of a public GitHub repository
func GitHub(owner, repo string) GitLocation {
	return GitLocation{URL: fmt.Sprintf("https://github.com/%s/%s.git", owner, repo)}
}

// WithTag returns a copy of l pinned to tag
func (l GitLocation) WithTag(tag string) GitLocation {
	l.Tag, l.Branch, l.Commit = tag, "", ""
	return l
}

// WithBranch returns a copy of l following branch
func (l GitLocation) WithBranch(branch string) GitLocation {
	l.Tag, l.Branch, l.Commit = "", branch, ""
	return l
}

// WithCommit returns a copy of l pinned to a commit hash
func (l GitLocation) WithCommit(commit string) GitLocation {
	l.Tag, l.Branch, l.Commit = "", "", commit
	return l
}

func (l GitLocation) String() string {
	switch {
	case l.Tag != "":
		return l.URL + "@tag:" + l.Tag
	case l.Branch != "":
		return l.URL + "@branch:" + l.Branch
	case l.Commit != "":
		return l.URL + "@commit:" + l.Commit
	}

	return l.URL
}

func (GitLocation) isLocation() {}

// Archive is the compression of a tarball
type Archive int

const (
	Gzip Archive = iota
	Xz
)

func (a Archive) String() string {
	if a == Xz {
		return "xz"
	}

	return "gzip"
}

// ArchiveFromURL guesses the compression from the file extension
func ArchiveFromURL(url string) Archive {
	if strings.HasSuffix(url, ".tar.xz") || strings.HasSuffix(url, ".txz") {
		return Xz
	}

	return Gzip
}

// TarLocation is a remote tarball. Sources is the directory inside the archive
// that holds the sources, empty when they are at the archive root.
type TarLocation struct {
	URL     string
	Archive Archive
	Sources string
}

// Tarball returns the location of a remote archive, guessing its compression
func Tarball(url, sources string) TarLocation {
	return TarLocation{URL: url, Archive: ArchiveFromURL(url), Sources: sources}
}

func (l TarLocation) String() string {
	return l.URL + "#" + l.Sources
}

func (TarLocation) isLocation() {}

// PathLocation is a directory on disk. Relative paths are resolved against the workspace.
type PathLocation struct {
	Path string
}

func (l PathLocation) String() string {
	return l.Path
}

func (PathLocation) isLocation() {}
