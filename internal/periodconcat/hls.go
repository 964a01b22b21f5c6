// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package periodconcat

import (
	"cmp"
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
)

// fillerURI is an empty WebVTT document used where a period has no
// subtitles at all.
const fillerURI = "data:text/vtt,WEBVTT"

type hlsMerger struct {
	next int
}

// nextName returns a quoted NAME and URI pair unique within one merge.
func (h *hlsMerger) nextName() (name, uri string) {
	n := "stream_" + strconv.Itoa(h.next)
	h.next++
	return quote(n), quote(n + ".m3u8")
}

type periodStreams struct {
	text     []*MediaPlaylist
	audio    []*MediaPlaylist
	variants []*MediaPlaylist
}

func classify(mp *MasterPlaylist) (periodStreams, error) {
	var ps periodStreams
	for _, m := range mp.Playlists {
		switch k := m.Kind(); k {
		case "SUBTITLES":
			ps.text = append(ps.text, m)
		case "AUDIO":
			ps.audio = append(ps.audio, m)
		case "STREAM-INF":
			ps.variants = append(ps.variants, m)
		default:
			return ps, fmt.Errorf("unrecognized TYPE=%s", k)
		}
	}
	return ps, nil
}

// concat merges the master playlists of all periods, in period order.
func (h *hlsMerger) concat(masters []*MasterPlaylist) (*MasterPlaylist, error) {
	all := make([]periodStreams, len(masters))
	durations := make([]float64, len(masters))
	for i, mp := range masters {
		ps, err := classify(mp)
		if err != nil {
			return nil, fmt.Errorf("period %d: %w", i, err)
		}
		all[i] = ps
		durations[i] = mp.Duration
	}

	out := &MasterPlaylist{}
	for _, d := range durations {
		out.Duration += d
	}
	out.Playlists = append(out.Playlists, h.concatText(all, durations)...)

	audioOnly := true
	for _, ps := range all {
		if hasVideoVariant(ps.variants) {
			audioOnly = false
			break
		}
	}

	if audioOnly {
		pls, err := h.concatAudioOnly(all, durations)
		if err != nil {
			return nil, err
		}
		out.Playlists = append(out.Playlists, pls...)
		return out, nil
	}

	audio, err := h.concatAudio(all)
	if err != nil {
		return nil, err
	}
	out.Playlists = append(out.Playlists, audio...)
	video, err := h.concatVideo(all, durations)
	if err != nil {
		return nil, err
	}
	out.Playlists = append(out.Playlists, video...)
	return out, nil
}

func hasVideoVariant(variants []*MediaPlaylist) bool {
	for _, v := range variants {
		if v.Stream != nil && v.Stream.Type == StreamVideo {
			return true
		}
	}
	return false
}

func (h *hlsMerger) concatText(all []periodStreams, durations []float64) []*MediaPlaylist {
	division := make(map[string][]*MediaPlaylist)
	for i, ps := range all {
		for _, m := range ps.text {
			lang := m.Language()
			if division[lang] == nil {
				division[lang] = make([]*MediaPlaylist, len(all))
			}
			division[lang][i] = m
		}
	}
	langs := sortedKeys(division)

	for i, ps := range all {
		present := make([]string, 0, len(ps.text))
		for _, m := range ps.text {
			present = append(present, m.Language())
		}
		for _, lang := range langs {
			if division[lang][i] != nil {
				continue
			}
			if sub := bestFit(present, lang); sub != lang {
				division[lang][i] = division[sub][i]
			}
		}
	}

	out := make([]*MediaPlaylist, 0, len(langs))
	for _, lang := range langs {
		slots := division[lang]
		contributors := nonNil(slots)
		merged := &MediaPlaylist{Attrs: commonAttrs(contributors)}
		if lang != undetermined {
			merged.Attrs.Set("LANGUAGE", quote(lang))
		}
		name, uri := h.nextName()
		merged.Attrs.Set("NAME", name)
		merged.Attrs.Set("URI", uri)
		merged.TargetDuration = maxTargetDuration(contributors)

		var b strings.Builder
		for i, m := range slots {
			if m != nil {
				b.WriteString(m.Content)
				merged.Duration += m.Duration
			} else {
				b.WriteString(filler(durations[i], merged.TargetDuration))
				merged.Duration += durations[i]
			}
			b.WriteString(tagDiscontinuity + "\n")
		}
		merged.Content = b.String()
		out = append(out, merged)
	}
	return out
}

// filler covers d seconds with empty cues of the target duration plus a
// remainder entry.
func filler(d float64, td int) string {
	var b strings.Builder
	entry := func(secs string) {
		b.WriteString(tagInf + ":" + secs + ",\n" + fillerURI + "\n")
	}
	if td <= 0 {
		if d > 0 {
			entry(formatSeconds(d))
		}
		return b.String()
	}
	n := int(math.Floor(d / float64(td)))
	for range n {
		entry(strconv.Itoa(td))
	}
	if rem := math.Round(math.Mod(d, float64(td))*1000) / 1000; rem > 0 {
		entry(formatSeconds(rem))
	}
	return b.String()
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}

type audioKey struct {
	codec    string
	lang     string
	channels int
}

func compareAudioKeys(a, b audioKey) int {
	return cmp.Or(cmp.Compare(a.codec, b.codec), cmp.Compare(a.lang, b.lang), cmp.Compare(a.channels, b.channels))
}

// divideAudio buckets audio playlists by codec, language and channel count
// and fills every gap with a substitute from the same period.
func divideAudio(all []periodStreams) ([]audioKey, map[audioKey][]*MediaPlaylist, error) {
	codecs := map[string]struct{}{}
	langs := map[string]struct{}{}
	channels := map[int]struct{}{}
	for _, ps := range all {
		for _, m := range ps.audio {
			if m.Stream == nil || m.Stream.Type != StreamAudio {
				uri, _ := m.Attrs.Unquoted("URI")
				return nil, nil, fmt.Errorf("%w: audio playlist %s", ErrMatchFailure, uri)
			}
			codecs[m.Stream.Codec] = struct{}{}
			langs[m.Language()] = struct{}{}
			channels[m.Stream.Channels] = struct{}{}
		}
	}

	division := make(map[audioKey][]*MediaPlaylist)
	var keys []audioKey
	for c := range codecs {
		for l := range langs {
			for ch := range channels {
				k := audioKey{c, l, ch}
				keys = append(keys, k)
				division[k] = make([]*MediaPlaylist, len(all))
			}
		}
	}
	slices.SortFunc(keys, compareAudioKeys)
	for i, ps := range all {
		for _, m := range ps.audio {
			division[audioKey{m.Stream.Codec, m.Language(), m.Stream.Channels}][i] = m
		}
	}

	chs := sortedKeys(channels)
	for i, ps := range all {
		for _, c := range sortedKeys(codecs) {
			var present []string
			for _, m := range ps.audio {
				if m.Stream.Codec == c {
					present = append(present, m.Language())
				}
			}
			for _, l := range sortedKeys(langs) {
				missing := true
				for _, ch := range chs {
					if division[audioKey{c, l, ch}][i] != nil {
						missing = false
						break
					}
				}
				if !missing {
					continue
				}
				sub := bestFit(present, l)
				if sub == l {
					return nil, nil, fmt.Errorf("%w: period %d has no %s audio", ErrIncompatiblePeriods, i, c)
				}
				for _, ch := range chs {
					division[audioKey{c, l, ch}][i] = division[audioKey{c, sub, ch}][i]
				}
			}
		}
	}

	// A missing channel tier takes the highest tier the period has.
	for i := range all {
		for _, c := range sortedKeys(codecs) {
			for _, l := range sortedKeys(langs) {
				var top *MediaPlaylist
				for _, ch := range chs {
					if m := division[audioKey{c, l, ch}][i]; m != nil {
						top = m
					}
				}
				if top == nil {
					return nil, nil, fmt.Errorf("%w: period %d has no %s audio", ErrIncompatiblePeriods, i, c)
				}
				for _, ch := range chs {
					if k := (audioKey{c, l, ch}); division[k][i] == nil {
						division[k][i] = top
					}
				}
			}
		}
	}
	return keys, division, nil
}

func (h *hlsMerger) mergeAudio(k audioKey, pls []*MediaPlaylist) *MediaPlaylist {
	merged := &MediaPlaylist{Attrs: commonAttrs(pls)}
	if k.lang != undetermined {
		merged.Attrs.Set("LANGUAGE", quote(k.lang))
	}
	name, uri := h.nextName()
	merged.Attrs.Set("NAME", name)
	merged.Attrs.Set("URI", uri)
	maxCh := 0
	for _, m := range pls {
		maxCh = max(maxCh, m.Stream.Channels)
	}
	merged.Attrs.Set("CHANNELS", quote(strconv.Itoa(maxCh)))
	merged.TargetDuration = maxTargetDuration(pls)
	merged.Content, merged.Duration = joinPeriods(pls)
	return merged
}

func (h *hlsMerger) concatAudio(all []periodStreams) ([]*MediaPlaylist, error) {
	keys, division, err := divideAudio(all)
	if err != nil {
		return nil, err
	}
	out := make([]*MediaPlaylist, 0, len(keys))
	for _, k := range keys {
		out = append(out, h.mergeAudio(k, division[k]))
	}
	return out, nil
}

// concatAudioOnly emits every audio bucket twice: as a rendition and as the
// variant stream that carries it.
func (h *hlsMerger) concatAudioOnly(all []periodStreams, durations []float64) ([]*MediaPlaylist, error) {
	pair := make(map[*MediaPlaylist]*MediaPlaylist)
	for _, ps := range all {
		for _, a := range ps.audio {
			auri, _ := a.Attrs.Get("URI")
			for _, v := range ps.variants {
				if vuri, _ := v.Attrs.Get("URI"); vuri == auri {
					pair[a] = v
					break
				}
			}
		}
	}

	keys, division, err := divideAudio(all)
	if err != nil {
		return nil, err
	}
	out := make([]*MediaPlaylist, 0, 2*len(keys))
	for _, k := range keys {
		pls := division[k]
		audio := h.mergeAudio(k, pls)

		variants := make([]*MediaPlaylist, len(pls))
		for i, a := range pls {
			v, ok := pair[a]
			if !ok {
				uri, _ := a.Attrs.Unquoted("URI")
				return nil, fmt.Errorf("%w: no variant stream for audio playlist %s", ErrMatchFailure, uri)
			}
			variants[i] = v
		}
		variant, err := variantFrom(variants, durations)
		if err != nil {
			return nil, err
		}
		uri, _ := audio.Attrs.Get("URI")
		variant.Attrs.Set("URI", uri)
		variant.TargetDuration = audio.TargetDuration
		variant.Content = audio.Content
		variant.Duration = audio.Duration
		out = append(out, audio, variant)
	}
	return out, nil
}

type videoKey struct {
	codec string
	res   Resolution
}

func (h *hlsMerger) concatVideo(all []periodStreams, durations []float64) ([]*MediaPlaylist, error) {
	codecs := map[string]struct{}{}
	var resolutions []Resolution
	for _, ps := range all {
		for _, m := range ps.variants {
			uri, _ := m.Attrs.Unquoted("URI")
			if m.Stream == nil {
				return nil, fmt.Errorf("%w: variant stream %s", ErrMatchFailure, uri)
			}
			if m.Stream.Type != StreamVideo {
				return nil, fmt.Errorf("%w: audio-only variant stream %s next to video periods", ErrIncompatiblePeriods, uri)
			}
			codecs[m.Stream.Codec] = struct{}{}
			if !slices.Contains(resolutions, m.Stream.Resolution) {
				resolutions = append(resolutions, m.Stream.Resolution)
			}
		}
	}
	slices.SortFunc(resolutions, func(a, b Resolution) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})

	division := make(map[videoKey][]*MediaPlaylist)
	var keys []videoKey
	for _, c := range sortedKeys(codecs) {
		for _, r := range resolutions {
			k := videoKey{c, r}
			keys = append(keys, k)
			division[k] = make([]*MediaPlaylist, len(all))
		}
	}

	for i, ps := range all {
		for _, c := range sortedKeys(codecs) {
			var top *MediaPlaylist
			have := make(map[Resolution]*MediaPlaylist)
			for _, m := range ps.variants {
				if m.Stream.Codec != c {
					continue
				}
				have[m.Stream.Resolution] = m
				if top == nil || top.Stream.Resolution.Less(m.Stream.Resolution) {
					top = m
				}
			}
			if top == nil {
				return nil, fmt.Errorf("%w: period %d has no %s video", ErrIncompatiblePeriods, i, c)
			}
			for _, r := range resolutions {
				m, ok := have[r]
				if !ok {
					m = top
				}
				division[videoKey{c, r}][i] = m
			}
		}
	}

	out := make([]*MediaPlaylist, 0, len(keys))
	for _, k := range keys {
		pls := division[k]
		merged, err := variantFrom(pls, durations)
		if err != nil {
			return nil, err
		}
		_, uri := h.nextName()
		merged.Attrs.Set("URI", uri)
		merged.TargetDuration = maxTargetDuration(pls)
		merged.Content, merged.Duration = joinPeriods(pls)
		out = append(out, merged)
	}
	return out, nil
}

// variantFrom builds the attributes of a merged variant stream: shared
// attributes, peak and duration-weighted average bandwidth, and the union of
// codecs.
func variantFrom(pls []*MediaPlaylist, durations []float64) (*MediaPlaylist, error) {
	merged := &MediaPlaylist{Attrs: commonAttrs(pls)}
	peak, avg, err := bandwidth(pls, durations)
	if err != nil {
		return nil, err
	}
	merged.Attrs.Set("BANDWIDTH", strconv.Itoa(peak))
	merged.Attrs.Set("AVERAGE-BANDWIDTH", strconv.Itoa(avg))
	merged.Attrs.Set("CODECS", codecUnion(pls))
	return merged, nil
}

func bandwidth(pls []*MediaPlaylist, durations []float64) (peak, avg int, err error) {
	var weighted, total float64
	for i, m := range pls {
		raw, ok := m.Attrs.Get("BANDWIDTH")
		if !ok {
			return 0, 0, fmt.Errorf("variant stream without BANDWIDTH")
		}
		b, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, fmt.Errorf("parse BANDWIDTH %q: %w", raw, err)
		}
		peak = max(peak, b)
		a := b
		if raw, ok := m.Attrs.Get("AVERAGE-BANDWIDTH"); ok {
			if a, err = strconv.Atoi(raw); err != nil {
				return 0, 0, fmt.Errorf("parse AVERAGE-BANDWIDTH %q: %w", raw, err)
			}
		}
		weighted += float64(a) * durations[i]
		total += durations[i]
	}
	if total == 0 {
		return peak, peak, nil
	}
	return peak, int(math.Ceil(weighted / total)), nil
}

func codecUnion(pls []*MediaPlaylist) string {
	var codecs []string
	for _, m := range pls {
		raw, _ := m.Attrs.Unquoted("CODECS")
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" && !slices.Contains(codecs, c) {
				codecs = append(codecs, c)
			}
		}
	}
	return quote(strings.Join(codecs, ","))
}

// joinPeriods concatenates playlist bodies with a discontinuity after each period.
func joinPeriods(pls []*MediaPlaylist) (string, float64) {
	var b strings.Builder
	var d float64
	for _, m := range pls {
		b.WriteString(m.Content)
		b.WriteString(tagDiscontinuity + "\n")
		d += m.Duration
	}
	return b.String(), d
}

func commonAttrs(pls []*MediaPlaylist) Attributes {
	lists := make([]Attributes, len(pls))
	for i, m := range pls {
		lists[i] = m.Attrs
	}
	return common(lists)
}

func maxTargetDuration(pls []*MediaPlaylist) int {
	td := 0
	for _, m := range pls {
		td = max(td, m.TargetDuration)
	}
	return td
}

func nonNil(pls []*MediaPlaylist) []*MediaPlaylist {
	out := make([]*MediaPlaylist, 0, len(pls))
	for _, m := range pls {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// MergeHLS reads the master playlist named name in every period's output
// directory and writes one merged master playlist, plus its media playlists,
// to outputDir.
func MergeHLS(periods []Period, outputDir, name, comment string) error {
	if len(periods) == 0 {
		return fmt.Errorf("%w: no periods", ErrIncompatiblePeriods)
	}
	header, mediaHdr, err := masterHeader(filepath.Join(periods[0].OutputDir, name))
	if err != nil {
		return fmt.Errorf("read master header: %w", err)
	}

	masters := make([]*MasterPlaylist, 0, len(periods))
	for _, p := range periods {
		mp, err := readMasterPlaylist(filepath.Join(p.OutputDir, name), p, outputDir)
		if err != nil {
			return err
		}
		masters = append(masters, mp)
	}

	merged, err := (&hlsMerger{}).concat(masters)
	if err != nil {
		return err
	}

	master, files := merged.render(header, comment, mediaHdr)
	for _, uri := range sortedKeys(files) {
		if err := renameio.WriteFile(filepath.Join(outputDir, filepath.FromSlash(uri)), []byte(files[uri]), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", uri, err)
		}
	}
	if err := renameio.WriteFile(filepath.Join(outputDir, name), []byte(master), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
