package version

// Populated at link time via -ldflags "-X github.com/Norgate-AV/bundler/internal/version.Version=..."
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)
