// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package periodconcat

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

// headerTags may appear only once per playlist and are shared by all
// merged playlists.
var headerTags = []string{"#EXTM3U", "#EXT-X-VERSION", "#EXT-X-PLAYLIST-TYPE"}

const (
	tagInf            = "#EXTINF"
	tagByteRange      = "#EXT-X-BYTERANGE"
	tagMap            = "#EXT-X-MAP"
	tagEndList        = "#EXT-X-ENDLIST"
	tagTargetDuration = "#EXT-X-TARGETDURATION"
	tagDiscontinuity  = "#EXT-X-DISCONTINUITY"
	tagMedia          = "#EXT-X-MEDIA"
	tagStreamInf      = "#EXT-X-STREAM-INF"
)

// MediaPlaylist is one media playlist body without its shared header, plus
// what its master playlist declares about it.
type MediaPlaylist struct {
	Attrs          Attributes
	Duration       float64
	TargetDuration int
	Content        string

	// Stream is the declared output stream the segments belong to. Nil for
	// playlists without segments.
	Stream *OutputStream
}

func isHeaderTag(line string) bool {
	for _, t := range headerTags {
		if strings.HasPrefix(line, t) {
			return true
		}
	}
	return false
}

// Kind returns the TYPE attribute, or "STREAM-INF" for variant streams.
func (m *MediaPlaylist) Kind() string {
	if t, ok := m.Attrs.Get("TYPE"); ok {
		return t
	}
	return "STREAM-INF"
}

// Language returns the LANGUAGE attribute or "und".
func (m *MediaPlaylist) Language() string {
	if l, ok := m.Attrs.Unquoted("LANGUAGE"); ok && l != "" {
		return l
	}
	return undetermined
}

// rebase joins a playlist URI to the period directory. URLs and absolute
// paths are kept.
func rebase(periodRel, uri string) string {
	if periodRel == "" || periodRel == "." || strings.Contains(uri, "://") ||
		strings.HasPrefix(uri, "data:") || path.IsAbs(uri) {
		return uri
	}
	return path.Join(periodRel, uri)
}

// parseMediaPlaylist reads the media playlist file and rewrites segment
// URIs so they resolve from the output directory.
func parseMediaPlaylist(r io.Reader, attrs Attributes, period Period, periodRel string) (*MediaPlaylist, error) {
	m := &MediaPlaylist{Attrs: attrs}
	var b strings.Builder
	var firstSegment, mapURI string

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		switch {
		case strings.HasPrefix(line, tagInf):
			raw, _, _ := strings.Cut(strings.TrimPrefix(line, tagInf+":"), ",")
			d, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return nil, fmt.Errorf("parse %s %q: %w", tagInf, line, err)
			}
			m.Duration += d
			b.WriteString(line + "\n")
			if !sc.Scan() {
				return nil, fmt.Errorf("%s without segment URI", tagInf)
			}
			next := strings.TrimRight(sc.Text(), "\r")
			if strings.HasPrefix(next, tagByteRange) {
				b.WriteString(next + "\n")
				if !sc.Scan() {
					return nil, fmt.Errorf("%s without segment URI", tagByteRange)
				}
				next = strings.TrimRight(sc.Text(), "\r")
			}
			uri := strings.TrimSpace(next)
			if firstSegment == "" {
				firstSegment = uri
			}
			b.WriteString(rebase(periodRel, uri) + "\n")
		case strings.HasPrefix(line, tagMap):
			mattrs := parseAttributes(line)
			uri, ok := mattrs.Unquoted("URI")
			if !ok {
				return nil, fmt.Errorf("%s without URI", tagMap)
			}
			if mapURI == "" {
				mapURI = uri
			}
			mattrs.Set("URI", quote(rebase(periodRel, uri)))
			b.WriteString(tagMap + ":" + mattrs.String() + "\n")
		case isHeaderTag(line), strings.HasPrefix(line, tagEndList):
		case strings.HasPrefix(line, tagTargetDuration):
			td, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, tagTargetDuration+":")))
			if err != nil {
				return nil, fmt.Errorf("parse %s %q: %w", tagTargetDuration, line, err)
			}
			m.TargetDuration = td
		default:
			b.WriteString(line + "\n")
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	m.Content = b.String()

	if firstSegment == "" && mapURI == "" {
		return m, nil
	}
	for _, uri := range []string{firstSegment, mapURI} {
		if uri == "" {
			continue
		}
		if s, ok := period.match(uri); ok {
			m.Stream = s
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: segment %q in %s", ErrMatchFailure, firstSegment, period.OutputDir)
}

func readMediaPlaylist(dir string, attrs Attributes, period Period, periodRel string) (*MediaPlaylist, error) {
	uri, ok := attrs.Unquoted("URI")
	if !ok {
		return nil, fmt.Errorf("playlist entry without URI: %s", attrs)
	}
	f, err := os.Open(filepath.Join(dir, filepath.FromSlash(uri)))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	m, err := parseMediaPlaylist(f, attrs, period, periodRel)
	if err != nil {
		return nil, fmt.Errorf("media playlist %s: %w", uri, err)
	}
	return m, nil
}

// render returns the playlist file contents.
func (m *MediaPlaylist) render(header string) string {
	var b strings.Builder
	b.WriteString(header)
	fmt.Fprintf(&b, "%s:%d\n", tagTargetDuration, m.TargetDuration)
	b.WriteString(m.Content)
	b.WriteString(tagEndList + "\n")
	return b.String()
}

// mediaHeader collects the header tags of a media playlist.
func mediaHeader(r io.Reader) (string, error) {
	var b strings.Builder
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if isHeaderTag(line) {
			b.WriteString(line + "\n")
		}
	}
	return b.String(), sc.Err()
}
