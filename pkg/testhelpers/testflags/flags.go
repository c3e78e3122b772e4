package testflags

import (
	"flag"
	"testing"
)

var unitTest = flag.Bool("unit", true, "Run the unit go tests")

// UnitTest gates the calling test behind the -unit flag (on by default)
// and runs it in parallel with the rest of the package.
func UnitTest(t *testing.T) {
	if !*unitTest && !testing.Short() {
		t.SkipNow()
	}
	t.Parallel()
}

// BadUnitTestWithSideEffects is UnitTest without the parallelism, for the
// rare test that mutates process-wide state.
func BadUnitTestWithSideEffects(t *testing.T) {
	if !*unitTest && !testing.Short() {
		t.SkipNow()
	}
}
