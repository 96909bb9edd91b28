package buildinfo

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetVersion(t *testing.T) {
	old := version
	t.Cleanup(func() { version = old })

	SetVersion("")
	assert.Equal(t, old, version)
	SetVersion("v1.2.3")
	assert.Equal(t, "v1.2.3", Version())
}

func TestPlatform(t *testing.T) {
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, Platform())
}
