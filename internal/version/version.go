// Package version pins the tool version recorded in run reports and
// reported by the CLI.
package version

// Version is the ratom release version.
const Version = "1.0.0"
