package session

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLaunchSpec_POSIX(t *testing.T) {
	t.Setenv(assistantCommandEnv, "assist --yes")
	t.Setenv("SHELL", "/bin/zsh")

	spec := BuildLaunchSpec("/home/u/proj", false)

	assert.Equal(t, "/bin/sh", spec.Path)
	require.Len(t, spec.Args, 2)
	assert.Equal(t, "-c", spec.Args[0])
	assert.Equal(t, "cd '/home/u/proj' && assist --yes; exec '/bin/zsh'", spec.Args[1])
	assert.Equal(t, "/home/u/proj", spec.Dir, "native shells get the directory as-is")
}

func TestBuildLaunchSpec_ResumeAppendsContinue(t *testing.T) {
	t.Setenv(assistantCommandEnv, "assist")

	spec := BuildLaunchSpec("/tmp", true)
	assert.Contains(t, spec.Args[1], "assist --continue;")

	spec = BuildLaunchSpec("/tmp", false)
	assert.NotContains(t, spec.Args[1], "--continue")
}

func TestBuildLaunchSpec_DefaultCommand(t *testing.T) {
	t.Setenv(assistantCommandEnv, "")

	spec := BuildLaunchSpec("/tmp", false)
	assert.Contains(t, spec.Args[1], defaultAssistantCommand)
}

func TestBuildLaunchSpec_QuotesAwkwardPaths(t *testing.T) {
	t.Setenv(assistantCommandEnv, "assist")

	spec := BuildLaunchSpec("/tmp/it's here", false)
	assert.Contains(t, spec.Args[1], `cd '/tmp/it'\''s here' &&`)
}

func TestWSLLaunchSpec(t *testing.T) {
	spec := wslLaunchSpec(`C:\Users\alice\proj`, "assist --yes")

	assert.Equal(t, "wsl.exe", spec.Path)
	require.Len(t, spec.Args, 3)
	assert.Equal(t, []string{"bash", "-lc"}, spec.Args[:2])
	assert.Equal(t, "cd '/mnt/c/Users/alice/proj' && assist --yes; exec bash", spec.Args[2])
	assert.Empty(t, spec.Dir, "the cd happens inside WSL, not in the host process layer")
}

func TestSanitizedEnv(t *testing.T) {
	t.Setenv("CLAUDECODE", "1")
	t.Setenv("CLAUDE_CODE_ENTRYPOINT", "cli")
	t.Setenv("CLAUDE_CODE_SSE_PORT", "4000")
	t.Setenv("KEEP_ME", "yes")

	env := sanitizedEnv()

	for _, kv := range env {
		for _, stripped := range nestedSessionVars {
			assert.False(t, strings.HasPrefix(kv, stripped+"="),
				"nested-assistant marker %s must be stripped", stripped)
		}
	}
	assert.Contains(t, env, "KEEP_ME=yes")

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	var homes []string
	for _, kv := range env {
		if strings.HasPrefix(kv, "HOME=") {
			homes = append(homes, kv)
		}
	}
	assert.Equal(t, []string{"HOME=" + home}, homes, "exactly one HOME, forced to the detected user home")
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, "'plain'", shellQuote("plain"))
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
	assert.Equal(t, "''", shellQuote(""))
}
