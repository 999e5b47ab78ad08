package library

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGitLocation_String(t *testing.T) {
	base := GitHub("madler", "zlib")

	assert.Equal(t, "https://github.com/madler/zlib.git", base.String())
	assert.Equal(t, "https://github.com/madler/zlib.git@tag:v1.2.11", base.WithTag("v1.2.11").String())
	assert.Equal(t, "https://github.com/madler/zlib.git@branch:develop", base.WithTag("v1").WithBranch("develop").String())
	assert.Equal(t, "https://github.com/madler/zlib.git@commit:abc", base.WithCommit("abc").String())
}

func TestArchiveFromURL(t *testing.T) {
	assert.Equal(t, Xz, ArchiveFromURL("https://cairographics.org/snapshots/cairo-1.17.4.tar.xz"))
	assert.Equal(t, Gzip, ArchiveFromURL("https://cairographics.org/releases/pixman-0.40.0.tar.gz"))
}
