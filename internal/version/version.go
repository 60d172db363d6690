// Package version provides build version information for codehint.
package version

// Overridden at build time:
// go build -ldflags "-X codehint/internal/version.Version=0.4.0 -X codehint/internal/version.Commit=abc123"
var (
	// Version is the semantic version of codehint
	Version = "0.3.0"

	// Commit is the git commit hash (set at build time)
	Commit = "unknown"

	// BuildDate is the build timestamp (set at build time)
	BuildDate = "unknown"
)

// Info returns a formatted version string
func Info() string {
	if Commit != "unknown" && len(Commit) > 7 {
		return Version + " (" + Commit[:7] + ")"
	}
	return Version
}

// Full returns complete version information
func Full() string {
	return "codehint version " + Version + "\n" +
		"Commit: " + Commit + "\n" +
		"Built: " + BuildDate
}

// UserAgent is sent on every outbound HTTP request (engine queries, file fetches).
func UserAgent() string {
	return "codehint/" + Version
}
