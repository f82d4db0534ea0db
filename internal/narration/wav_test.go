// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package narration

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWAVDuration_SilentWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "step-a.wav")
	require.NoError(t, os.WriteFile(path, SilentWAV(3*time.Second, 24000, 1), 0o600))

	d, err := WAVDuration(path)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, d)
}

func TestReadWAVInfo_SkipsUnknownChunks(t *testing.T) {
	wav := SilentWAV(time.Second, 16000, 2)
	// Insert an odd-sized LIST chunk between fmt and data.
	list := []byte("LIST\x03\x00\x00\x00abc\x00")
	withList := append(append(append([]byte{}, wav[:36]...), list...), wav[36:]...)

	d, err := WAVDurationBytes(withList)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)
}

func TestReadWAVInfo_StreamingDataSize(t *testing.T) {
	wav := SilentWAV(2*time.Second, 24000, 1)
	binary.LittleEndian.PutUint32(wav[40:44], 0xFFFFFFFF)

	d, err := WAVDurationBytes(wav)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)
}

func TestReadWAVInfo_Rejects(t *testing.T) {
	_, err := WAVDurationBytes([]byte("ID3\x04not a wav file"))
	assert.True(t, errors.Is(err, ErrInvalidWAV))

	_, err = WAVDuration(filepath.Join(t.TempDir(), "missing.wav"))
	assert.True(t, errors.Is(err, ErrMissingAudio))
}

func TestNormalizeText(t *testing.T) {
	decomposed := "Cafe\u0301  menu\n\tready"
	assert.Equal(t, "Caf\u00e9 menu ready", NormalizeText(decomposed))
}
