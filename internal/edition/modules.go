// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package edition generates a movie's edition string from ~22 pure
// extractor modules, composed in a configurable order, and applies it to
// the media server after backing up the prior value.
package edition

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/tomtom215/cartographus/internal/mediaserver"
)

// Settings configures module behavior; module_order and enabled_modules
// live on the engine instead, per §3's Edition Config shape.
type Settings struct {
	ExcludedLanguages []string
}

func (s Settings) excludes(language string) bool {
	for _, l := range s.ExcludedLanguages {
		if strings.EqualFold(l, language) {
			return true
		}
	}
	return false
}

// Module is a pure extractor: item metadata in, an edition fragment (or ""
// for "no opinion") out.
type Module func(item mediaserver.Item, settings Settings) string

const videoStreamType = 1
const audioStreamType = 2

// mainPartStream returns the selected stream of the given type from the
// main part, falling back to the first stream of that type.
func mainPartStream(item mediaserver.Item, streamType int) (mediaserver.Stream, bool) {
	part, ok := item.MainPart()
	if !ok {
		return mediaserver.Stream{}, false
	}
	var first mediaserver.Stream
	haveFirst := false
	for _, s := range part.Streams {
		if s.StreamType != streamType {
			continue
		}
		if !haveFirst {
			first = s
			haveFirst = true
		}
		if s.Selected {
			return s, true
		}
	}
	return first, haveFirst
}

// resolutionLadder is ordered from highest to lowest; the first entry whose
// width or height clears 85% of the item's reported dimensions wins.
var resolutionLadder = []struct {
	w, h  int
	label string
}{
	{7680, 4320, "8K"},
	{3840, 2160, "4K"},
	{2560, 1440, "2K"},
	{1920, 1080, "1080p"},
	{1280, 720, "720p"},
	{720, 576, "576p"},
	{720, 480, "480p"},
}

// Resolution picks a label from the nearest (width, height) ladder entry,
// falling back to the string form of videoResolution when dimensions are
// unavailable.
func Resolution(item mediaserver.Item, _ Settings) string {
	media, ok := item.MainMedia()
	if !ok || media.VideoResolution == "" {
		return ""
	}
	if media.Width == 0 || media.Height == 0 {
		switch strings.ToLower(media.VideoResolution) {
		case "4k":
			return "4K"
		case "1080":
			return "1080p"
		case "720":
			return "720p"
		case "sd":
			return "SD"
		default:
			return strings.ToUpper(media.VideoResolution)
		}
	}
	for _, rung := range resolutionLadder {
		if float64(media.Width) >= 0.85*float64(rung.w) || float64(media.Height) >= 0.85*float64(rung.h) {
			return rung.label
		}
	}
	return "SD"
}

// DynamicRange emits a Dolby Vision marker when the main video stream
// carries a DOVI profile or presence flag.
func DynamicRange(item mediaserver.Item, _ Settings) string {
	stream, ok := videoStream(item)
	if !ok {
		return ""
	}
	if stream.DOVIProfile > 0 {
		return fmt.Sprintf("DV P%d", stream.DOVIProfile)
	}
	if stream.DOVIPresent {
		return "Dolby Vision"
	}
	return ""
}

var videoCodecMap = map[string]string{
	"h264": "H.264", "h265": "H.265", "hevc": "H.265",
	"mpeg4": "MPEG-4", "mpeg2video": "MPEG-2", "av1": "AV1", "vp9": "VP9",
}

// VideoCodec maps the main media's codec string through a fixed table.
func VideoCodec(item mediaserver.Item, _ Settings) string {
	media, ok := item.MainMedia()
	if !ok || media.VideoCodec == "" {
		return ""
	}
	codec := strings.ToLower(media.VideoCodec)
	if label, ok := videoCodecMap[codec]; ok {
		return label
	}
	return strings.ToUpper(codec)
}

var audioCodecMap = map[string]string{
	"truehd": "Dolby TrueHD", "eac3": "Dolby Digital Plus", "ac3": "Dolby Digital",
	"dts-hd ma": "DTS-HD MA", "dts": "DTS", "flac": "FLAC", "aac": "AAC",
	"mp3": "MP3", "opus": "Opus",
}

// AudioCodec maps the codec through a fixed table, then upgrades the label
// to Atmos/DTS:X by substring-matching the selected audio stream's display
// title.
func AudioCodec(item mediaserver.Item, _ Settings) string {
	media, ok := item.MainMedia()
	if !ok || media.AudioCodec == "" {
		return ""
	}
	codec := strings.ToLower(media.AudioCodec)
	display := audioCodecMap[codec]
	if display == "" {
		display = strings.ToUpper(codec)
	}

	stream, ok := audioStream(item)
	if ok {
		title := strings.ToLower(stream.DisplayTitle)
		switch {
		case strings.Contains(title, "dts:x"):
			display = "DTS:X"
		case strings.Contains(title, "atmos"):
			display += " Atmos"
		}
	}
	return display
}

// AudioChannels maps the integer channel count to its speaker-layout label.
func AudioChannels(item mediaserver.Item, _ Settings) string {
	media, ok := item.MainMedia()
	if !ok || media.AudioChannels == 0 {
		return ""
	}
	switch media.AudioChannels {
	case 8:
		return "7.1"
	case 7:
		return "6.1"
	case 6:
		return "5.1"
	case 2:
		return "2.0"
	case 1:
		return "1.0"
	default:
		return fmt.Sprintf("%dch", media.AudioChannels)
	}
}

// Bitrate formats the main media's bitrate in kbps as "X.Y Mbps".
func Bitrate(item mediaserver.Item, _ Settings) string {
	media, ok := item.MainMedia()
	if !ok || media.Bitrate == 0 {
		return ""
	}
	return fmt.Sprintf("%.1f Mbps", float64(media.Bitrate)/1000)
}

// FrameRate rounds the main video stream's frame rate to the nearest
// canonical value, with ±0.1 tolerance.
func FrameRate(item mediaserver.Item, _ Settings) string {
	stream, ok := videoStream(item)
	if !ok || stream.FrameRate == 0 {
		return ""
	}
	fr := stream.FrameRate
	switch {
	case fr > 23.9 && fr < 24.1:
		return "24fps"
	case fr > 29.9 && fr < 30.1:
		return "30fps"
	case fr > 59.9 && fr < 60.1:
		return "60fps"
	default:
		return fmt.Sprintf("%dfps", int(fr))
	}
}

// patternLabel is one (regex, label) rule; the first match in declaration
// order wins.
type patternLabel struct {
	pattern *regexp.Regexp
	label   string
}

func compilePatterns(pairs [][2]string) []patternLabel {
	out := make([]patternLabel, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, patternLabel{pattern: regexp.MustCompile(`(?i)` + p[0]), label: p[1]})
	}
	return out
}

var cutPatterns = compilePatterns([][2]string{
	{`theatrical[.\s_-]*cut`, "Theatrical Cut"},
	{`director'?s?[.\s_-]*cut`, "Director's Cut"},
	{`producer'?s?[.\s_-]*cut`, "Producer's Cut"},
	{`extended[.\s_-]*(cut|edition)?`, "Extended"},
	{`unrated[.\s_-]*(cut|edition)?`, "Unrated"},
	{`final[.\s_-]*cut`, "Final Cut"},
	{`television[.\s_-]*cut`, "Television Cut"},
	{`international[.\s_-]*cut`, "International Cut"},
	{`redux`, "Redux"},
	{`criterion`, "Criterion"},
	{`remastered`, "Remastered"},
	{`restored`, "Restored"},
})

var releasePatterns = compilePatterns([][2]string{
	{`criterion`, "Criterion"},
	{`anniversary`, "Anniversary Edition"},
	{`collector'?s?[.\s_-]*edition`, "Collector's Edition"},
	{`special[.\s_-]*edition`, "Special Edition"},
	{`diamond[.\s_-]*edition`, "Diamond Edition"},
	{`platinum[.\s_-]*edition`, "Platinum Edition"},
	{`signature[.\s_-]*edition`, "Signature Edition"},
	{`imax`, "IMAX"},
	{`open[.\s_-]*matte`, "Open Matte"},
})

var sourcePatterns = compilePatterns([][2]string{
	{`\bremux\b`, "REMUX"},
	{`\bblu-?ray\b|\bbd\b`, "BluRay"},
	{`\bbdrip\b`, "BDRip"},
	{`\bweb-?dl\b`, "WEB-DL"},
	{`\bwebrip\b`, "WEBRip"},
	{`\bhdtv\b`, "HDTV"},
	{`\bdvd\b`, "DVD"},
	{`\bdvdrip\b`, "DVDRip"},
	{`\bvhs\b`, "VHS"},
	{`\blaserdisc\b`, "LaserDisc"},
})

func matchPatterns(patterns []patternLabel, haystacks ...string) string {
	for _, p := range patterns {
		for _, h := range haystacks {
			if h != "" && p.pattern.MatchString(h) {
				return p.label
			}
		}
	}
	return ""
}

// Cut detects special cut versions from the filename, then the title.
func Cut(item mediaserver.Item, _ Settings) string {
	part, _ := item.MainPart()
	return matchPatterns(cutPatterns, part.File, item.Title)
}

// Release detects special release types from filename or title.
func Release(item mediaserver.Item, _ Settings) string {
	part, _ := item.MainPart()
	return matchPatterns(releasePatterns, part.File, item.Title)
}

// Source detects the media source (BluRay/WEB-DL/etc.) from the filename.
func Source(item mediaserver.Item, _ Settings) string {
	part, ok := item.MainPart()
	if !ok {
		return ""
	}
	return matchPatterns(sourcePatterns, part.File)
}

// ShortFilm emits "Short Film" for runtimes under 40 minutes.
func ShortFilm(item mediaserver.Item, _ Settings) string {
	if item.Duration == 0 {
		return ""
	}
	minutes := float64(item.Duration) / 60000
	if minutes < 40 {
		return "Short Film"
	}
	return ""
}

// Duration renders the runtime as "{h}h {m}m" or "{m}m".
func Duration(item mediaserver.Item, _ Settings) string {
	if item.Duration == 0 {
		return ""
	}
	minutes := item.Duration / 60000
	hours := minutes / 60
	mins := minutes % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

// Rating formats the item's rating to one decimal.
func Rating(item mediaserver.Item, _ Settings) string {
	if item.Rating == 0 {
		return ""
	}
	return fmt.Sprintf("%.1f", item.Rating)
}

func firstTag(tags []mediaserver.NamedTag) string {
	if len(tags) == 0 {
		return ""
	}
	return tags[0].Tag
}

// Director returns the first credited director.
func Director(item mediaserver.Item, _ Settings) string { return firstTag(item.Director) }

// Writer returns the first credited writer.
func Writer(item mediaserver.Item, _ Settings) string { return firstTag(item.Writer) }

// Genre returns the first listed genre.
func Genre(item mediaserver.Item, _ Settings) string { return firstTag(item.Genre) }

// Country returns the first listed country.
func Country(item mediaserver.Item, _ Settings) string { return firstTag(item.Country) }

// Studio returns the item's studio.
func Studio(item mediaserver.Item, _ Settings) string { return item.Studio }

// Language returns the selected (else first) audio stream's language,
// suppressed when it appears in settings.ExcludedLanguages.
func Language(item mediaserver.Item, settings Settings) string {
	stream, ok := audioStream(item)
	if !ok || stream.Language == "" {
		return ""
	}
	if settings.excludes(stream.Language) {
		return ""
	}
	return stream.Language
}

// Size formats the main part's byte size as "X.Y GB" (base 1024^3).
func Size(item mediaserver.Item, _ Settings) string {
	part, ok := item.MainPart()
	if !ok || part.Size == 0 {
		return ""
	}
	gb := float64(part.Size) / math.Pow(1024, 3)
	return fmt.Sprintf("%.1f GB", gb)
}

// ContentRating returns the item's content rating, e.g. "R" or "PG-13".
// Supplements the documented module catalog (see SPEC_FULL.md §4.6).
func ContentRating(item mediaserver.Item, _ Settings) string { return item.ContentRating }

// Flags renders a marker list from boolean metadata flags (HDR10+, IMAX,
// 3D). Disabled by default; supplements the documented catalog.
func Flags(item mediaserver.Item, _ Settings) string {
	var flags []string
	if strings.Contains(strings.ToUpper(item.Title), "IMAX") {
		flags = append(flags, "IMAX")
	}
	if media, ok := item.MainMedia(); ok && strings.Contains(strings.ToUpper(media.VideoResolution), "3D") {
		flags = append(flags, "3D")
	}
	return strings.Join(flags, " ")
}

// videoStream returns the main part's video stream, if the client
// populated per-stream data for this item.
func videoStream(item mediaserver.Item) (mediaserver.Stream, bool) {
	return mainPartStream(item, videoStreamType)
}

// audioStream returns the selected (else first) audio stream.
func audioStream(item mediaserver.Item) (mediaserver.Stream, bool) {
	return mainPartStream(item, audioStreamType)
}
