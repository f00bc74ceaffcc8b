package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"unicode"
)

// Platform represents the detected host platform.
type Platform string

const (
	PlatformMacOS   Platform = "macos"
	PlatformLinux   Platform = "linux"
	PlatformWSL     Platform = "wsl"
	PlatformWindows Platform = "windows"
	PlatformUnknown Platform = "unknown"
)

var (
	detectedPlatform Platform
	detectionDone    bool
)

// Detect returns the current platform, caching the result.
func Detect() Platform {
	if detectionDone {
		return detectedPlatform
	}
	detectedPlatform = detectPlatform()
	detectionDone = true
	return detectedPlatform
}

func detectPlatform() Platform {
	switch runtime.GOOS {
	case "darwin":
		return PlatformMacOS
	case "windows":
		return PlatformWindows
	case "linux":
		if isWSL() {
			return PlatformWSL
		}
		return PlatformLinux
	default:
		return PlatformUnknown
	}
}

// isWSL reports whether this Linux environment is a WSL distribution.
func isWSL() bool {
	if os.Getenv("WSL_DISTRO_NAME") != "" {
		return true
	}
	procVersion, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	v := strings.ToLower(string(procVersion))
	return strings.Contains(v, "microsoft")
}

// HasPOSIXShell reports whether the platform carries a native POSIX shell.
// Windows hosts go through the WSL bridge instead.
func HasPOSIXShell() bool {
	return Detect() != PlatformWindows
}

// WSLMountPath rewrites a Windows drive-letter path to the WSL mount
// convention: `C:\Users\alice` becomes `/mnt/c/Users/alice`. Paths that do
// not match the drive-letter pattern are returned unchanged (best-effort,
// not an error).
func WSLMountPath(path string) string {
	if len(path) < 2 || path[1] != ':' || !unicode.IsLetter(rune(path[0])) {
		return path
	}
	drive := strings.ToLower(path[:1])
	rest := strings.ReplaceAll(path[2:], `\`, "/")
	rest = strings.TrimPrefix(rest, "/")
	if rest == "" {
		return "/mnt/" + drive
	}
	return "/mnt/" + drive + "/" + rest
}

// String returns a human-readable platform name.
func (p Platform) String() string {
	switch p {
	case PlatformMacOS:
		return "macOS"
	case PlatformLinux:
		return "Linux"
	case PlatformWSL:
		return "WSL"
	case PlatformWindows:
		return "Windows"
	default:
		return "Unknown"
	}
}

// CheckFsnotifySupport checks if a path's filesystem supports fsnotify
// events reliably. Returns a warning message when the path sits on a
// problematic filesystem (9p, nfs, cifs, sshfs), or "" when watching
// should work. Hot reload degrades to restart-time sync in that case.
func CheckFsnotifySupport(path string) string {
	if runtime.GOOS != "linux" {
		return ""
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return ""
	}

	mounts, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return ""
	}

	// Longest matching mountpoint wins.
	var matchedMount, matchedFsType string
	for _, line := range strings.Split(string(mounts), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		if strings.HasPrefix(absPath, fields[1]) && len(fields[1]) > len(matchedMount) {
			matchedMount = fields[1]
			matchedFsType = fields[2]
		}
	}

	switch {
	case matchedFsType == "9p":
		return "overlay on 9p mount (WSL Windows filesystem): file watching disabled; edits apply on next restart"
	case matchedFsType == "nfs" || matchedFsType == "nfs4":
		return "overlay on NFS mount: file watching may be unreliable"
	case matchedFsType == "cifs" || matchedFsType == "smbfs":
		return "overlay on CIFS/SMB mount: file watching may be unreliable"
	case strings.HasPrefix(matchedFsType, "fuse.sshfs"):
		return "overlay on SSHFS mount: file watching disabled; edits apply on next restart"
	}
	return ""
}
