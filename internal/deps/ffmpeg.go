package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const versionTimeout = 5 * time.Second

// CheckFFmpeg resolves binary and reads its version banner. A binary that
// resolves but prints no banner is still reported available.
func CheckFFmpeg(ctx context.Context, binary string) Status {
	result := Status{
		Name:        "FFmpeg",
		Description: "Required for conversion",
	}
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	result.Command = binary

	resolved, err := exec.LookPath(binary)
	if err != nil {
		result.Detail = fmt.Sprintf("binary %q not found", binary)
		return result
	}
	result.Command = resolved
	result.Available = true

	checkCtx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	output, err := exec.CommandContext(checkCtx, resolved, "-hide_banner", "-version").Output() //nolint:gosec
	if err != nil {
		result.Detail = fmt.Sprintf("version check failed: %v", err)
		return result
	}
	result.Detail = parseVersion(string(output))
	return result
}

// parseVersion extracts "N.N" from a first line like "ffmpeg version 6.1.1 Copyright ...".
func parseVersion(output string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	fields := strings.Fields(line)
	for i, field := range fields {
		if field == "version" && i+1 < len(fields) {
			return "version " + fields[i+1]
		}
	}
	return ""
}
