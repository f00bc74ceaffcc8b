package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWSLMountPath(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple drive path", `C:\Users\alice\proj`, "/mnt/c/Users/alice/proj"},
		{"lower-cases drive letter", `D:\Work`, "/mnt/d/Work"},
		{"drive root", `C:\`, "/mnt/c"},
		{"bare drive", `C:`, "/mnt/c"},
		{"mixed separators", `e:\a/b\c`, "/mnt/e/a/b/c"},
		{"already posix passes through", "/home/u/proj", "/home/u/proj"},
		{"relative passes through", `proj\sub`, `proj\sub`},
		{"empty passes through", "", ""},
		{"no drive pattern passes through", `:\oops`, `:\oops`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WSLMountPath(tt.in))
		})
	}
}

func TestPlatformString(t *testing.T) {
	assert.Equal(t, "Windows", PlatformWindows.String())
	assert.Equal(t, "WSL", PlatformWSL.String())
	assert.Equal(t, "Unknown", Platform("bogus").String())
}

func TestDetectIsCached(t *testing.T) {
	first := Detect()
	assert.Equal(t, first, Detect())
	assert.NotEqual(t, PlatformUnknown, first)
}
