// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package narration

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// ErrInvalidWAV classifies unreadable RIFF/WAVE headers.
var ErrInvalidWAV = errors.New("invalid wav")

// WAVInfo is the subset of the fmt and data chunks needed for timing.
type WAVInfo struct {
	Format        uint16
	Channels      int
	SampleRate    int
	ByteRate      int
	BitsPerSample int
	DataBytes     int64
}

// Duration is data bytes / byte rate.
func (w WAVInfo) Duration() time.Duration {
	if w.ByteRate <= 0 {
		return 0
	}
	return time.Duration(w.DataBytes * int64(time.Second) / int64(w.ByteRate))
}

// WAVDuration reads the RIFF header of path.
func WAVDuration(path string) (time.Duration, error) {
	// #nosec G304 -- paths are run work files
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrMissingAudio, path)
		}
		return 0, err
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	info, err := ReadWAVInfo(f, st.Size())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return info.Duration(), nil
}

// ReadWAVInfo walks the RIFF chunks until the data chunk. size is the total
// file size, used when a streaming writer left the data size unset.
func ReadWAVInfo(r io.Reader, size int64) (WAVInfo, error) {
	var hdr [12]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return WAVInfo{}, fmt.Errorf("%w: short header", ErrInvalidWAV)
	}
	if string(hdr[0:4]) != "RIFF" || string(hdr[8:12]) != "WAVE" {
		return WAVInfo{}, fmt.Errorf("%w: not RIFF/WAVE", ErrInvalidWAV)
	}

	var info WAVInfo
	haveFmt := false
	offset := int64(12)
	for {
		var ch [8]byte
		if _, err := io.ReadFull(r, ch[:]); err != nil {
			return WAVInfo{}, fmt.Errorf("%w: no data chunk", ErrInvalidWAV)
		}
		offset += 8
		id := string(ch[0:4])
		n := int64(binary.LittleEndian.Uint32(ch[4:8]))

		switch id {
		case "fmt ":
			if n < 16 {
				return WAVInfo{}, fmt.Errorf("%w: fmt chunk too small", ErrInvalidWAV)
			}
			buf := make([]byte, n)
			if _, err := io.ReadFull(r, buf); err != nil {
				return WAVInfo{}, fmt.Errorf("%w: short fmt chunk", ErrInvalidWAV)
			}
			info.Format = binary.LittleEndian.Uint16(buf[0:2])
			info.Channels = int(binary.LittleEndian.Uint16(buf[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(buf[4:8]))
			info.ByteRate = int(binary.LittleEndian.Uint32(buf[8:12]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(buf[14:16]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return WAVInfo{}, fmt.Errorf("%w: data before fmt", ErrInvalidWAV)
			}
			if info.ByteRate <= 0 {
				return WAVInfo{}, fmt.Errorf("%w: zero byte rate", ErrInvalidWAV)
			}
			if remaining := size - offset; size > 0 && (n == 0xFFFFFFFF || n > remaining) {
				n = remaining
			}
			info.DataBytes = n
			return info, nil
		default:
			if _, err := io.CopyN(io.Discard, r, n); err != nil {
				return WAVInfo{}, fmt.Errorf("%w: truncated %q chunk", ErrInvalidWAV, id)
			}
		}
		offset += n
		if n%2 == 1 {
			if _, err := io.CopyN(io.Discard, r, 1); err != nil {
				return WAVInfo{}, fmt.Errorf("%w: truncated padding", ErrInvalidWAV)
			}
			offset++
		}
	}
}

// WAVDurationBytes parses an in-memory WAV.
func WAVDurationBytes(b []byte) (time.Duration, error) {
	info, err := ReadWAVInfo(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return 0, err
	}
	return info.Duration(), nil
}

// SilentWAV encodes d of 16-bit PCM silence.
func SilentWAV(d time.Duration, sampleRate, channels int) []byte {
	blockAlign := channels * 2
	samples := int64(d) * int64(sampleRate) / int64(time.Second)
	dataLen := uint32(samples) * uint32(blockAlign)

	var b bytes.Buffer
	b.WriteString("RIFF")
	_ = binary.Write(&b, binary.LittleEndian, 36+dataLen)
	b.WriteString("WAVEfmt ")
	_ = binary.Write(&b, binary.LittleEndian, uint32(16))
	_ = binary.Write(&b, binary.LittleEndian, uint16(1))
	_ = binary.Write(&b, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&b, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&b, binary.LittleEndian, uint32(sampleRate*blockAlign))
	_ = binary.Write(&b, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&b, binary.LittleEndian, uint16(16))
	b.WriteString("data")
	_ = binary.Write(&b, binary.LittleEndian, dataLen)
	b.Write(make([]byte, dataLen))
	return b.Bytes()
}
