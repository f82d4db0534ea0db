// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

type lookPathFunc func(string) (string, error)

// resolveBinaries fills FFprobeBin from a sibling of an explicit ffmpeg path,
// then expands bare names through PATH when they can be found. Names that
// cannot be found are kept so the error surfaces on first use.
func resolveBinaries(f *FFmpegConfig, lookPath lookPathFunc) {
	f.Bin = strings.TrimSpace(f.Bin)
	f.FFprobeBin = strings.TrimSpace(f.FFprobeBin)

	if f.FFprobeBin == "" {
		f.FFprobeBin = siblingProbe(f.Bin)
	}
	if f.FFprobeBin == "" {
		f.FFprobeBin = "ffprobe"
	}
	f.Bin = expand(f.Bin, lookPath)
	f.FFprobeBin = expand(f.FFprobeBin, lookPath)
}

// siblingProbe maps /opt/ffmpeg/bin/ffmpeg to /opt/ffmpeg/bin/ffprobe when
// that file exists.
func siblingProbe(ffmpegBin string) string {
	if !strings.ContainsRune(ffmpegBin, filepath.Separator) {
		return ""
	}
	base := filepath.Base(ffmpegBin)
	if !strings.HasPrefix(base, "ffmpeg") {
		return ""
	}
	candidate := filepath.Join(filepath.Dir(ffmpegBin), "ffprobe"+strings.TrimPrefix(base, "ffmpeg"))
	if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
		return candidate
	}
	return ""
}

func expand(bin string, lookPath lookPathFunc) string {
	if bin == "" || strings.ContainsRune(bin, filepath.Separator) {
		return bin
	}
	if p, err := lookPath(bin); err == nil {
		return p
	}
	return bin
}

var defaultLookPath lookPathFunc = exec.LookPath
