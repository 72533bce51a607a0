package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	oldVersion, oldSHA, oldTime := Version, GitSHA, BuildTime
	t.Cleanup(func() { Version, GitSHA, BuildTime = oldVersion, oldSHA, oldTime })

	assert.Equal(t, "mco dev (commit unknown, built unknown)", String("mco"))

	Version, GitSHA, BuildTime = "0.3.1", "abc1234", "2026-10-01T12:00:00Z"
	assert.Equal(t, "mcofit 0.3.1 (commit abc1234, built 2026-10-01T12:00:00Z)", String("mcofit"))
}
