// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package tour

import "time"

const (
	DefaultMaxRetries     = 2
	DefaultPaddingSeconds = 1.0
	DefaultLeadInSeconds  = 0.5
	DefaultTypingDelayMS  = 50
	DefaultSpeechSpeed    = 1.0
	DefaultBrowser        = "chromium"

	DefaultVideoCodec   = "libx264"
	DefaultVideoPreset  = "medium"
	DefaultVideoCRF     = 20
	DefaultAudioCodec   = "aac"
	DefaultAudioBitrate = "192k"
	DefaultSampleRate   = 24000
	DefaultChannels     = 1
	DefaultFPS          = 30
	DefaultPixelFormat  = "yuv420p"

	DefaultSlidePattern = "slide-%d.png"
	DefaultSlideAdvance = 5 * time.Second
)

func applyDefaults(s *Spec) {
	st := &s.Settings
	if st.Mode == "" {
		st.Mode = ModeIndependent
	}
	if st.SpeechSpeed == 0 {
		st.SpeechSpeed = DefaultSpeechSpeed
	}
	if st.Browser == "" {
		st.Browser = DefaultBrowser
	}
	if st.MaxRetriesPerStep == nil {
		v := DefaultMaxRetries
		st.MaxRetriesPerStep = &v
	}
	if st.PaddingSeconds == nil {
		v := DefaultPaddingSeconds
		st.PaddingSeconds = &v
	}
	if st.LeadInSeconds == nil {
		v := DefaultLeadInSeconds
		st.LeadInSeconds = &v
	}
	if st.TypingDelayMS == nil {
		v := DefaultTypingDelayMS
		st.TypingDelayMS = &v
	}

	o := &s.Output
	if o.VideoCodec == "" {
		o.VideoCodec = DefaultVideoCodec
	}
	if o.VideoPreset == "" {
		o.VideoPreset = DefaultVideoPreset
	}
	if o.VideoCRF == nil {
		v := DefaultVideoCRF
		o.VideoCRF = &v
	}
	if o.AudioCodec == "" {
		o.AudioCodec = DefaultAudioCodec
	}
	if o.AudioBitrate == "" {
		o.AudioBitrate = DefaultAudioBitrate
	}
	if o.SampleRate == 0 {
		o.SampleRate = DefaultSampleRate
	}
	if o.Channels == 0 {
		o.Channels = DefaultChannels
	}
	if o.FPS == 0 {
		o.FPS = DefaultFPS
	}
	if o.PixelFormat == "" {
		o.PixelFormat = DefaultPixelFormat
	}
	if o.Loudnorm == nil {
		v := true
		o.Loudnorm = &v
	}
}
