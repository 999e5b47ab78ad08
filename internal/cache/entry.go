package cache

import "time"

// Entry records what was compiled into one cache directory
type Entry struct {
	// Key is name/target/profile
	Key string `json:"key"`

	Name    string `json:"name"`
	Target  string `json:"target"`
	Profile string `json:"profile"`
	Version string `json:"version"`

	// Fingerprint of the recipe the directory was compiled from
	Fingerprint string `json:"fingerprint"`

	// Artifact is the compiled shared library inside the cache directory
	Artifact string `json:"artifact"`

	// Checksum is the SHA256 of the artifact
	Checksum string `json:"checksum"`

	// Timestamp when this entry was created
	Timestamp time.Time `json:"timestamp"`
}
