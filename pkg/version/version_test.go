package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	info := Info()
	assert.Equal(t, Version, info["version"])
	assert.Equal(t, GitCommit, info["gitCommit"])
	assert.NotEmpty(t, info["goVersion"])
}

func TestString(t *testing.T) {
	s := String()
	assert.True(t, strings.HasPrefix(s, "holomem "+Version))
	assert.Contains(t, s, GitCommit)
}
