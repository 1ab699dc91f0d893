// Package rsicalc holds the distribution metadata of the RSI calculator.
package rsicalc

const (
	Name        = "rsicalc"
	Version     = "0.2"
	Description = "Relative Strength Index Calculator"
	License     = "BSD"
)

// String returns the name and version as printed by "rsicalc -version".
func String() string {
	return Name + " " + Version
}
