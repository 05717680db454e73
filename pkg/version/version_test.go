package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GitCommit)
	assert.NotEmpty(t, info.GoVersion)
	assert.NotEmpty(t, info.Platform)
	assert.True(t, info.BuildTime.IsZero(), "default build date is not a timestamp")
}

func TestGetBuildInfoParsesBuildDate(t *testing.T) {
	original := BuildDate
	t.Cleanup(func() { BuildDate = original })

	BuildDate = "2026-01-13T20:00:00Z"
	info := GetBuildInfo()
	assert.True(t, info.BuildTime.Equal(time.Date(2026, 1, 13, 20, 0, 0, 0, time.UTC)))
}

func TestUserAgent(t *testing.T) {
	original := Version
	t.Cleanup(func() { Version = original })

	Version = "1.4.0"
	assert.Equal(t, "cosmo/1.4.0 ("+Platform+")", UserAgent())
}
