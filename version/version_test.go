package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserAgent(t *testing.T) {
	dev := Info{Version: "dev", CommitHash: "abcdef1234"}
	assert.Equal(t, "autoblog-health/dev+abcdef1", dev.UserAgent("health"))

	tagged := Info{Version: "1.2.0", CommitHash: "abcdef1234"}
	assert.Equal(t, "autoblog-publisher/1.2.0", tagged.UserAgent("publisher"))
}

func TestString(t *testing.T) {
	assert.Equal(t, "autoblog dev (commit abc, built now)", Info{Version: "dev", CommitHash: "abc", BuildTime: "now"}.String())
	assert.Equal(t, "autoblog 1.0 (commit abc, built now)", Info{Version: "1.0", CommitHash: "abc", BuildTime: "now"}.String())
	assert.Equal(t, "abc", Info{CommitHash: "abc"}.Short())
}
