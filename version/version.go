package version

const Version = "0.1.0"

var (
	// Set with -ldflags "-X github.com/DOIDFoundation/tmrpc/version.Commit=..."
	Commit string
	Date   string

	VersionWithMeta = Version + "-unstable"
)
