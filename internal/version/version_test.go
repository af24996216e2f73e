package version

import (
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	b := Get()
	assert.Equal(t, Name, b.Name)
	assert.Equal(t, Version, b.Version)
	assert.Equal(t, runtime.Version(), b.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, b.Platform)
	assert.LessOrEqual(t, len(b.Commit), 12)
}

func TestGetPrefersLinkerValues(t *testing.T) {
	oldV, oldC, oldD := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = oldV, oldC, oldD })
	Version, Commit, Date = "0.4.0", "0123456789abcdef", "2026-10-01"

	b := Get()
	assert.Equal(t, "0.4.0", b.Version)
	assert.Equal(t, "0123456789ab", b.Commit)
	assert.Equal(t, "2026-10-01", b.Date)
}

func TestFillVCS(t *testing.T) {
	b := BuildInfo{Date: "2026-10-01"}
	fillVCS(&b, []debug.BuildSetting{
		{Key: "vcs.revision", Value: "feedface"},
		{Key: "vcs.time", Value: "2026-09-30T10:00:00Z"},
		{Key: "vcs.modified", Value: "true"},
	})
	assert.Equal(t, "feedface", b.Commit)
	assert.Equal(t, "2026-10-01", b.Date, "linker date wins")
	assert.True(t, b.Modified)
}

func TestString(t *testing.T) {
	b := BuildInfo{Name: Name, Version: "0.4.0", GoVersion: "go1.25.7", Platform: "linux/amd64"}
	assert.Equal(t, "swarmintel 0.4.0 (none, built unknown, go1.25.7 linux/amd64)", b.String())

	b.Commit, b.Modified, b.Date = "feedface", true, "2026-10-01"
	assert.Equal(t, "swarmintel 0.4.0 (feedface+dirty, built 2026-10-01, go1.25.7 linux/amd64)", b.String())
}

func TestAbbrev(t *testing.T) {
	assert.Equal(t, "", abbrev(""))
	assert.Equal(t, "feedface", abbrev("feedface"))
	assert.Equal(t, "0123456789ab", abbrev("0123456789abcdef"))
}
