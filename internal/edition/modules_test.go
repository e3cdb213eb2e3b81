// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package edition

import (
	"testing"

	"github.com/tomtom215/cartographus/internal/mediaserver"
)

func itemWithMedia(media mediaserver.Media) mediaserver.Item {
	return mediaserver.Item{RatingKey: "1", Media: []mediaserver.Media{media}}
}

func TestResolution(t *testing.T) {
	cases := []struct {
		name  string
		media mediaserver.Media
		want  string
	}{
		{"4k by dimensions", mediaserver.Media{Width: 3840, Height: 2160, VideoResolution: "4k"}, "4K"},
		{"1080p by dimensions", mediaserver.Media{Width: 1920, Height: 1080, VideoResolution: "1080"}, "1080p"},
		{"tolerance band", mediaserver.Media{Width: 1910, Height: 1070, VideoResolution: "1080"}, "1080p"},
		{"falls to sd", mediaserver.Media{Width: 640, Height: 480, VideoResolution: "sd"}, "SD"},
		{"string fallback no dims", mediaserver.Media{VideoResolution: "720"}, "720p"},
		{"no resolution info", mediaserver.Media{}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Resolution(itemWithMedia(tc.media), Settings{})
			if got != tc.want {
				t.Errorf("Resolution() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestVideoCodec(t *testing.T) {
	cases := []struct{ codec, want string }{
		{"h264", "H.264"},
		{"hevc", "H.265"},
		{"av1", "AV1"},
		{"weird", "WEIRD"},
		{"", ""},
	}
	for _, tc := range cases {
		got := VideoCodec(itemWithMedia(mediaserver.Media{VideoCodec: tc.codec}), Settings{})
		if got != tc.want {
			t.Errorf("VideoCodec(%q) = %q, want %q", tc.codec, got, tc.want)
		}
	}
}

func TestAudioCodecAtmosUpgrade(t *testing.T) {
	item := mediaserver.Item{
		Media: []mediaserver.Media{{
			AudioCodec: "truehd",
			Part: []mediaserver.MediaPart{{
				Streams: []mediaserver.Stream{
					{StreamType: 2, Selected: true, DisplayTitle: "English (TrueHD 7.1 Atmos)"},
				},
			}},
		}},
	}
	got := AudioCodec(item, Settings{})
	want := "Dolby TrueHD Atmos"
	if got != want {
		t.Errorf("AudioCodec() = %q, want %q", got, want)
	}
}

func TestAudioCodecDTSXOverride(t *testing.T) {
	item := mediaserver.Item{
		Media: []mediaserver.Media{{
			AudioCodec: "dts",
			Part: []mediaserver.MediaPart{{
				Streams: []mediaserver.Stream{
					{StreamType: 2, Selected: true, DisplayTitle: "English (DTS:X)"},
				},
			}},
		}},
	}
	if got := AudioCodec(item, Settings{}); got != "DTS:X" {
		t.Errorf("AudioCodec() = %q, want DTS:X", got)
	}
}

func TestAudioChannels(t *testing.T) {
	cases := []struct {
		channels int
		want     string
	}{
		{8, "7.1"}, {6, "5.1"}, {2, "2.0"}, {1, "1.0"}, {4, "4ch"}, {0, ""},
	}
	for _, tc := range cases {
		got := AudioChannels(itemWithMedia(mediaserver.Media{AudioChannels: tc.channels}), Settings{})
		if got != tc.want {
			t.Errorf("AudioChannels(%d) = %q, want %q", tc.channels, got, tc.want)
		}
	}
}

func TestShortFilm(t *testing.T) {
	short := mediaserver.Item{Duration: 35 * 60000}
	feature := mediaserver.Item{Duration: 95 * 60000}
	if got := ShortFilm(short, Settings{}); got != "Short Film" {
		t.Errorf("ShortFilm(35m) = %q, want Short Film", got)
	}
	if got := ShortFilm(feature, Settings{}); got != "" {
		t.Errorf("ShortFilm(95m) = %q, want empty", got)
	}
}

func TestDuration(t *testing.T) {
	cases := []struct {
		ms   int64
		want string
	}{
		{125 * 60000, "2h 5m"},
		{45 * 60000, "45m"},
		{0, ""},
	}
	for _, tc := range cases {
		got := Duration(mediaserver.Item{Duration: tc.ms}, Settings{})
		if got != tc.want {
			t.Errorf("Duration(%d) = %q, want %q", tc.ms, got, tc.want)
		}
	}
}

func TestCutDetectsFromFilenameThenTitle(t *testing.T) {
	byFile := mediaserver.Item{
		Title: "Blade Runner",
		Media: []mediaserver.Media{{Part: []mediaserver.MediaPart{{File: "/movies/Blade.Runner.Directors.Cut.mkv"}}}},
	}
	if got := Cut(byFile, Settings{}); got != "Director's Cut" {
		t.Errorf("Cut() = %q, want Director's Cut", got)
	}

	byTitle := mediaserver.Item{Title: "Blade Runner (Final Cut)"}
	if got := Cut(byTitle, Settings{}); got != "Final Cut" {
		t.Errorf("Cut() = %q, want Final Cut", got)
	}

	none := mediaserver.Item{Title: "Blade Runner"}
	if got := Cut(none, Settings{}); got != "" {
		t.Errorf("Cut() = %q, want empty", got)
	}
}

func TestSourceFromFilenameOnly(t *testing.T) {
	item := mediaserver.Item{
		Title: "Remux Edition", // source patterns only check the filename
		Media: []mediaserver.Media{{Part: []mediaserver.MediaPart{{File: "/movies/Movie.2160p.BluRay.REMUX.mkv"}}}},
	}
	if got := Source(item, Settings{}); got != "REMUX" {
		t.Errorf("Source() = %q, want REMUX", got)
	}
}

func TestLanguageExclusion(t *testing.T) {
	item := mediaserver.Item{
		Media: []mediaserver.Media{{Part: []mediaserver.MediaPart{{
			Streams: []mediaserver.Stream{{StreamType: 2, Selected: true, Language: "English"}},
		}}}},
	}
	if got := Language(item, Settings{}); got != "English" {
		t.Errorf("Language() = %q, want English", got)
	}
	if got := Language(item, Settings{ExcludedLanguages: []string{"english"}}); got != "" {
		t.Errorf("Language() with exclusion = %q, want empty", got)
	}
}

func TestSize(t *testing.T) {
	item := mediaserver.Item{
		Media: []mediaserver.Media{{Part: []mediaserver.MediaPart{{Size: 4 * 1024 * 1024 * 1024}}}},
	}
	if got := Size(item, Settings{}); got != "4.0 GB" {
		t.Errorf("Size() = %q, want 4.0 GB", got)
	}
}

func TestDynamicRangeDolbyVisionProfile(t *testing.T) {
	item := mediaserver.Item{
		Media: []mediaserver.Media{{Part: []mediaserver.MediaPart{{
			Streams: []mediaserver.Stream{{StreamType: 1, DOVIProfile: 8}},
		}}}},
	}
	if got := DynamicRange(item, Settings{}); got != "DV P8" {
		t.Errorf("DynamicRange() = %q, want DV P8", got)
	}
}
