package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsGitURL(t *testing.T) {
	for source, want := range map[string]bool{
		"https://github.com/acme/app":  true,
		"http://git.internal/acme/app": true,
		"git@github.com:acme/app.git":  true,
		"/srv/checkouts/app.git":       true,
		".":                            false,
		"./app":                        false,
		"/home/ci/workspace/app":       false,
	} {
		assert.Equal(t, want, isGitURL(source), "source %q", source)
	}
}
