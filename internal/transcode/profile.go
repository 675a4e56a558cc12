package transcode

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"reframe/internal/config"
	"reframe/internal/layout"
)

// Profile holds the immutable composition and codec parameters.
type Profile struct {
	Width            int
	Height           int
	ForegroundHeight int
	Blur             string

	LogoPath  string
	LogoWidth int
	LogoGap   int

	VideoCodec   string
	Preset       string
	CRF          int
	PixelFormat  string
	FastStart    bool
	AudioCodec   string
	AudioBitrate string
}

// ProfileFromConfig builds a Profile from the loaded configuration.
func ProfileFromConfig(cfg *config.Config) Profile {
	return Profile{
		Width:            cfg.Output.Width,
		Height:           cfg.Output.Height,
		ForegroundHeight: cfg.Output.ForegroundHeight,
		Blur:             cfg.Encoder.Blur,
		LogoPath:         cfg.LogoPath(),
		LogoWidth:        cfg.Logo.Width,
		LogoGap:          cfg.Logo.Gap,
		VideoCodec:       cfg.Encoder.VideoCodec,
		Preset:           cfg.Encoder.Preset,
		CRF:              cfg.Encoder.CRF,
		PixelFormat:      cfg.Encoder.PixelFormat,
		FastStart:        cfg.Encoder.FastStart,
		AudioCodec:       cfg.Encoder.AudioCodec,
		AudioBitrate:     cfg.Encoder.AudioBitrate,
	}
}

// Job is one conversion attempt: where to read, where to write, and the exact
// ffmpeg argument vector.
type Job struct {
	Source  string
	Output  string
	Partial string
	Logo    string
	Filter  string
	Args    []string
}

// FilterGraph returns the -filter_complex expression. The composed video is
// labeled [v].
func (p Profile) FilterGraph() string {
	w, h, fh := p.Width, p.Height, p.ForegroundHeight
	if fh <= 0 || fh > h {
		fh = w
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[0:v]scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d", w, h, w, h)
	if blur := strings.TrimSpace(p.Blur); blur != "" {
		b.WriteString(",boxblur=")
		b.WriteString(blur)
	}
	b.WriteString("[bg];")
	fmt.Fprintf(&b, "[0:v]scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d[fg];", w, fh, w, fh)

	if p.LogoPath == "" {
		b.WriteString("[bg][fg]overlay=(W-w)/2:(H-h)/2,setsar=1[v]")
		return b.String()
	}

	b.WriteString("[bg][fg]overlay=(W-w)/2:(H-h)/2[base];")
	logo := "[1:v]"
	if p.LogoWidth > 0 {
		fmt.Fprintf(&b, "[1:v]scale=%d:-1[logo];", p.LogoWidth)
		logo = "[logo]"
	}
	// Logo sits centered horizontally, LogoGap pixels below the band.
	fmt.Fprintf(&b, "[base]%soverlay=(W-w)/2:(H+%d)/2+%d,setsar=1[v]", logo, fh, p.LogoGap)
	return b.String()
}

// Job builds the ConversionJob for source writing to output. attempt names the
// partial file, so concurrent attempts that target one output never share it.
func (p Profile) Job(source, output, attempt string) Job {
	partial := layout.PartialPath(output, attempt)
	filter := p.FilterGraph()

	args := []string{"-hide_banner", "-nostdin", "-y", "-i", source}
	if p.LogoPath != "" {
		args = append(args, "-i", p.LogoPath)
	}
	args = append(args,
		"-filter_complex", filter,
		"-map", "[v]",
		"-map", "0:a?",
		"-c:v", p.VideoCodec,
	)
	if p.Preset != "" {
		args = append(args, "-preset", p.Preset)
	}
	args = append(args, "-crf", strconv.Itoa(p.CRF))
	if p.PixelFormat != "" {
		args = append(args, "-pix_fmt", p.PixelFormat)
	}
	if p.FastStart && supportsFastStart(output) {
		args = append(args, "-movflags", "+faststart")
	}
	if p.AudioCodec != "" {
		args = append(args, "-c:a", p.AudioCodec)
	}
	if p.AudioBitrate != "" {
		args = append(args, "-b:a", p.AudioBitrate)
	}
	args = append(args, "-f", muxerFor(output), partial)

	return Job{
		Source:  source,
		Output:  output,
		Partial: partial,
		Logo:    p.LogoPath,
		Filter:  filter,
		Args:    args,
	}
}

func muxerFor(output string) string {
	switch strings.ToLower(filepath.Ext(output)) {
	case ".mov":
		return "mov"
	case ".mkv":
		return "matroska"
	case ".webm":
		return "webm"
	default:
		return "mp4"
	}
}

func supportsFastStart(output string) bool {
	switch strings.ToLower(filepath.Ext(output)) {
	case ".mp4", ".m4v", ".mov":
		return true
	default:
		return false
	}
}
