//go:build race

package testutil

// Race is true when the binary is built with -race.
const Race = true
