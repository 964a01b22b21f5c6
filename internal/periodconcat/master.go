// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package periodconcat

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MasterPlaylist is an ordered list of media playlists. Entries with a TYPE
// attribute are written as #EXT-X-MEDIA, the rest as #EXT-X-STREAM-INF.
type MasterPlaylist struct {
	Playlists []*MediaPlaylist
	Duration  float64
}

// readMasterPlaylist parses the master playlist of one period together with
// every media playlist it references.
func readMasterPlaylist(file string, period Period, outputDir string) (*MasterPlaylist, error) {
	dir := filepath.Dir(file)
	rel, err := filepath.Rel(outputDir, dir)
	if err != nil {
		return nil, fmt.Errorf("relative period dir: %w", err)
	}
	rel = filepath.ToSlash(rel)

	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	mp := &MasterPlaylist{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		var attrs Attributes
		switch {
		case strings.HasPrefix(line, tagMedia):
			attrs = parseAttributes(line)
		case strings.HasPrefix(line, tagStreamInf):
			attrs = parseAttributes(line)
			if !sc.Scan() {
				return nil, fmt.Errorf("%s: %s without URI", file, tagStreamInf)
			}
			attrs.Set("URI", quote(strings.TrimSpace(sc.Text())))
		default:
			continue
		}
		m, err := readMediaPlaylist(dir, attrs, period, rel)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		mp.Playlists = append(mp.Playlists, m)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(mp.Playlists) > 0 {
		mp.Duration = mp.Playlists[len(mp.Playlists)-1].Duration
	}
	return mp, nil
}

// masterHeader returns the master playlist lines preceding the first stream
// entry, and the media header of the first referenced media playlist.
func masterHeader(file string) (master, media string, err error) {
	f, err := os.Open(file)
	if err != nil {
		return "", "", err
	}
	defer func() { _ = f.Close() }()

	var b strings.Builder
	var uri string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.HasPrefix(line, tagMedia) {
			uri, _ = parseAttributes(line).Unquoted("URI")
			break
		}
		if strings.HasPrefix(line, tagStreamInf) {
			if sc.Scan() {
				uri = strings.TrimSpace(sc.Text())
			}
			break
		}
		b.WriteString(strings.TrimLeft(line, " \t") + "\n")
	}
	if err := sc.Err(); err != nil {
		return "", "", err
	}
	if uri == "" {
		return b.String(), "", nil
	}

	mf, err := os.Open(filepath.Join(filepath.Dir(file), filepath.FromSlash(uri)))
	if err != nil {
		return "", "", err
	}
	defer func() { _ = mf.Close() }()
	media, err = mediaHeader(mf)
	return b.String(), media, err
}

// render returns the master playlist contents and the media playlists to
// write, keyed by URI.
func (mp *MasterPlaylist) render(header, comment, mediaHeader string) (string, map[string]string) {
	files := make(map[string]string)
	var b strings.Builder
	b.WriteString(header)
	if comment != "" {
		b.WriteString("## " + comment + "\n\n")
	}
	for _, m := range mp.Playlists {
		if _, ok := m.Attrs.Get("TYPE"); !ok {
			continue
		}
		uri, _ := m.Attrs.Unquoted("URI")
		files[uri] = m.render(mediaHeader)
		b.WriteString(tagMedia + ":" + m.Attrs.String() + "\n")
	}
	b.WriteString("\n")
	for _, m := range mp.Playlists {
		if _, ok := m.Attrs.Get("TYPE"); ok {
			continue
		}
		attrs := m.Attrs.Clone()
		raw, _ := attrs.Delete("URI")
		uri := unquote(raw)
		files[uri] = m.render(mediaHeader)
		b.WriteString(tagStreamInf + ":" + attrs.String() + "\n")
		b.WriteString(uri + "\n")
	}
	return b.String(), files
}
