// ABOUTME: Version information for the metronome
// ABOUTME: Reported by the CLI and the bridge status call
package version

const (
	// Version is the current release
	Version = "0.3.0"

	// Product is the name reported to bridge clients
	Product = "Resonate Metronome"

	// Manufacturer identifies the maker in bridge status replies
	Manufacturer = "Resonate"
)
