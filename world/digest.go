package world

import (
	"github.com/opencontainers/go-digest"
)

// digestString and digestBytes compute the content-addressed sums
// AccessRecord and package memo compare on replay (spec §4.G), using the
// same digest library the memo cache's keys are built from so a World
// access-log entry and a memo key are comparable without a conversion
// step.
func digestString(s string) string {
	return digest.FromString(s).String()
}

func digestBytes(b []byte) string {
	return digest.FromBytes(b).String()
}
