package session

import (
	"fmt"
	"os"
	"strings"

	"github.com/clayshell/clayshell/internal/platform"
)

// Assistant command selection. The environment override wins over the
// config file; the default runs the assistant with confirmation prompts
// disabled so an unattended session never stalls on a permission dialog.
const (
	defaultAssistantCommand = "claude --dangerously-skip-permissions"
	assistantCommandEnv     = "CLAYSHELL_ASSISTANT_CMD"
	resumeFlag              = "--continue"
)

// nestedSessionVars mark "already inside an assistant" in the environment.
// They are stripped so a session spawned from within an assistant-driven
// shell does not detect itself as nested and change behavior.
var nestedSessionVars = []string{
	"CLAUDECODE",
	"CLAUDE_CODE_ENTRYPOINT",
	"CLAUDE_CODE_SSE_PORT",
}

// LaunchSpec describes exactly how to start one session process:
// executable, argument vector, working directory, and environment.
// Building a spec performs no I/O and cannot fail.
type LaunchSpec struct {
	Path string
	Args []string
	Dir  string
	Env  []string
}

// BuildLaunchSpec constructs the launch spec for a session in dir.
// When resume is true the assistant is asked to continue its prior
// conversation in that directory.
func BuildLaunchSpec(dir string, resume bool) LaunchSpec {
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = home
		}
	}

	command := assistantCommand()
	if resume {
		command += " " + resumeFlag
	}

	if !platform.HasPOSIXShell() {
		return wslLaunchSpec(dir, command)
	}

	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/bash"
	}

	// The trailing exec keeps an interactive shell alive in the session's
	// directory after the assistant exits, so the user can keep working.
	script := fmt.Sprintf("cd %s && %s; exec %s", shellQuote(dir), command, shellQuote(shell))
	return LaunchSpec{
		Path: "/bin/sh",
		Args: []string{"-c", script},
		Dir:  dir,
		Env:  sanitizedEnv(),
	}
}

// wslLaunchSpec routes the session through the WSL bridge on hosts without
// a native POSIX shell. The cd happens inside the script because the
// translated mount path only exists inside the WSL environment.
func wslLaunchSpec(dir, command string) LaunchSpec {
	mounted := platform.WSLMountPath(dir)
	script := fmt.Sprintf("cd %s && %s; exec bash", shellQuote(mounted), command)
	return LaunchSpec{
		Path: "wsl.exe",
		Args: []string{"bash", "-lc", script},
		Env:  sanitizedEnv(),
	}
}

// assistantCommand resolves the assistant command line: env override first,
// then config file, then the built-in default.
func assistantCommand() string {
	if cmd := strings.TrimSpace(os.Getenv(assistantCommandEnv)); cmd != "" {
		return cmd
	}
	if cfg, err := LoadUserConfig(); err == nil && cfg.AssistantCommand != "" {
		return cfg.AssistantCommand
	}
	return defaultAssistantCommand
}

// sanitizedEnv copies the host environment, forces HOME to the detected
// user home, and strips nested-assistant marker variables.
func sanitizedEnv() []string {
	env := make([]string, 0, len(os.Environ())+1)
	for _, kv := range os.Environ() {
		if isStrippedVar(kv) || strings.HasPrefix(kv, "HOME=") {
			continue
		}
		env = append(env, kv)
	}
	if home, err := os.UserHomeDir(); err == nil {
		env = append(env, "HOME="+home)
	}
	return env
}

func isStrippedVar(kv string) bool {
	for _, name := range nestedSessionVars {
		if strings.HasPrefix(kv, name+"=") {
			return true
		}
	}
	return false
}

// shellQuote single-quotes a string for safe interpolation into a shell
// command. An embedded single quote ends the quoted run, emits an escaped
// quote, and reopens quoting.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
