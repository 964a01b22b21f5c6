// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package periodconcat merges independently packaged periods into one
// multi-period DASH manifest and one HLS master playlist.
package periodconcat

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"

	"github.com/shaka-project/shaka-streamer-sub000/internal/node"
)

var (
	// ErrMatchFailure means a media playlist could not be tied to any declared output stream.
	ErrMatchFailure = errors.New("periodconcat: no output stream matches media playlist")
	// ErrIncompatiblePeriods means the periods cannot be merged into one presentation.
	ErrIncompatiblePeriods = errors.New("periodconcat: incompatible periods")
)

// StreamType is the media type of an output stream.
type StreamType string

const (
	StreamAudio StreamType = "audio"
	StreamVideo StreamType = "video"
	StreamText  StreamType = "text"
)

// Resolution is a named video resolution tier.
type Resolution struct {
	Name   string
	Width  int
	Height int
}

// Less orders resolutions by height, then width, then name.
func (r Resolution) Less(o Resolution) bool {
	if r.Height != o.Height {
		return r.Height < o.Height
	}
	if r.Width != o.Width {
		return r.Width < o.Width
	}
	return r.Name < o.Name
}

func (r Resolution) String() string {
	if r.Name != "" {
		return r.Name
	}
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// OutputStream is one stream declared by the packaging stage of a period.
// Segment is the file name of the stream's media segments; it may be a
// glob pattern (e.g. "audio_en_2c_128k_aac_*.mp4") for segmented output.
type OutputStream struct {
	Type       StreamType
	Codec      string
	Language   string
	Channels   int
	Resolution Resolution
	Segment    string
}

// Period is one independently packaged part of the presentation.
type Period struct {
	OutputDir string
	Streams   []OutputStream
	Node      node.Node
}

func (p Period) has(t StreamType) bool {
	for _, s := range p.Streams {
		if s.Type == t {
			return true
		}
	}
	return false
}

// match returns the stream whose segment name matches uri.
func (p Period) match(uri string) (*OutputStream, bool) {
	name := path.Base(filepath.ToSlash(uri))
	for i := range p.Streams {
		s := &p.Streams[i]
		if s.Segment == "" {
			continue
		}
		if s.Segment == name {
			return s, true
		}
		if ok, err := path.Match(s.Segment, name); err == nil && ok {
			return s, true
		}
	}
	return nil, false
}
