// Package version holds the release version stamped into the CLI.
package version

// Current is the release version, without a "v" prefix.
const Current = "0.3.0"
