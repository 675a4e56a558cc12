// Package layout derives every path reframe touches from a source video path:
// the converted output, the claim marker, and the hidden partial file ffmpeg
// writes before publication.
package layout

import (
	"path/filepath"
	"strings"
)

const partialInfix = ".partial"

// OutputPath returns the converted artifact path for source. The result depends
// only on the source base name, so repeated calls always agree.
func OutputPath(outputDir, source, suffix, container string) string {
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if !strings.HasPrefix(container, ".") && container != "" {
		container = "." + container
	}
	return filepath.Join(outputDir, stem+suffix+container)
}

// MarkerPath returns the claim marker sidecar for source.
func MarkerPath(source, markerSuffix string) string {
	return source + markerSuffix
}

// PartialPath returns the hidden sibling of output that receives ffmpeg's
// in-progress writes for one attempt. Two sources sharing a stem map to the
// same output, so attempt keeps their partial files apart.
func PartialPath(output, attempt string) string {
	dir := filepath.Dir(output)
	base := filepath.Base(output)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if attempt = strings.TrimSpace(attempt); attempt != "" {
		stem += "." + attempt
	}
	return filepath.Join(dir, "."+stem+partialInfix+ext)
}

// IsSupported reports whether path carries an allow-listed extension. The
// comparison ignores case; extensions must be given with a leading dot.
func IsSupported(path string, extensions []string) bool {
	ext := filepath.Ext(path)
	if ext == "" {
		return false
	}
	for _, allowed := range extensions {
		if strings.EqualFold(ext, allowed) {
			return true
		}
	}
	return false
}

// IsInternal reports whether path is a file reframe itself creates (a claim
// marker or a partial output) and must never treat as a new source.
func IsInternal(path, markerSuffix string) bool {
	base := filepath.Base(path)
	if markerSuffix != "" && strings.HasSuffix(base, markerSuffix) {
		return true
	}
	if strings.HasPrefix(base, ".") {
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		if strings.HasSuffix(stem, partialInfix) {
			return true
		}
	}
	return false
}

// IsOutput reports whether path is an artifact reframe publishes: a file
// directly inside outputDir whose name ends in suffix plus container.
func IsOutput(path, outputDir, suffix, container string) bool {
	if outputDir == "" || filepath.Clean(filepath.Dir(path)) != filepath.Clean(outputDir) {
		return false
	}
	if container != "" && !strings.HasPrefix(container, ".") {
		container = "." + container
	}
	tail := suffix + container
	base := filepath.Base(path)
	return tail != "" && len(base) > len(tail) && strings.EqualFold(base[len(base)-len(tail):], tail)
}

// SourceForMarker maps a marker path back to the source it claims. The second
// result is false when marker does not end with markerSuffix.
func SourceForMarker(marker, markerSuffix string) (string, bool) {
	if markerSuffix == "" || !strings.HasSuffix(marker, markerSuffix) {
		return "", false
	}
	return strings.TrimSuffix(marker, markerSuffix), true
}
