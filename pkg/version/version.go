// Package version provides version information for the gold price service.
package version

// Version is the current version of the gold price service.
const Version = "1.0.0"

// AgentString returns the full agent string with versioning.
// Format: @jush-website/goldprice-go@v{version}
func AgentString() string {
	return "@jush-website/goldprice-go@v" + Version
}
