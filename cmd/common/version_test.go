package common

import (
	"bytes"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintVersion(t *testing.T) {
	var buf bytes.Buffer
	PrintVersion(&buf, "swingbot")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, "swingbot v"+Version+" (Crypto Swing Bot)", lines[0])
	assert.Contains(t, lines[2], runtime.Version())
}

func TestGetVersionInfo(t *testing.T) {
	info := GetVersionInfo()
	assert.Equal(t, ProjectRepo, info.Repository)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Architecture)
}
