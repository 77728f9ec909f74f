package version

import (
	"runtime/debug"
	"testing"
)

var describeTests = []struct {
	release string
	main    string
	ok      bool
	out     string
}{
	{"devel", "", false, "absint (no version)"},
	{"devel", "(devel)", true, "absint (no version)"},
	{"devel", "v0.2.0", true, "absint (devel, v0.2.0)"},
	{"v0.3.0", "v0.2.0", true, "absint v0.3.0"},
}

func TestDescribe(t *testing.T) {
	defer func(v string) { Version = v }(Version)
	for _, tc := range describeTests {
		Version = tc.release
		info := &debug.BuildInfo{Main: debug.Module{Path: "honnef.co/go/absval", Version: tc.main}}
		if got := describe("absint", info, tc.ok); got != tc.out {
			t.Errorf("describe(%q, %q) == %q, expected %q", tc.release, tc.main, got, tc.out)
		}
	}
}
