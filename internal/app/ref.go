package app

import (
	"fmt"
	"net/url"
	"strings"
)

// RefKind names what a user supplied reference points at.
type RefKind string

const (
	RefTrack    RefKind = "track"
	RefAlbum    RefKind = "album"
	RefPlaylist RefKind = "playlist"
)

// Ref is a parsed reference to a catalogue item.
type Ref struct {
	Kind RefKind
	ID   string
}

func (r Ref) String() string {
	return string(r.Kind) + ":" + r.ID
}

// ParseRef accepts "album:77", "track:1", "playlist:<uuid>" or a web URL
// containing /album/77, /track/1 or /playlist/<uuid>.
func ParseRef(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ref{}, fmt.Errorf("empty reference")
	}

	if kind, id, ok := strings.Cut(s, ":"); ok && !strings.HasPrefix(id, "//") {
		return newRef(kind, id, s)
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return Ref{}, fmt.Errorf("unrecognized reference %q", s)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+1 < len(parts); i++ {
		switch RefKind(parts[i]) {
		case RefTrack, RefAlbum, RefPlaylist:
			return newRef(parts[i], parts[i+1], s)
		}
	}
	return Ref{}, fmt.Errorf("no track, album or playlist in %q", s)
}

func newRef(kind, id, raw string) (Ref, error) {
	id = strings.TrimSpace(id)
	switch k := RefKind(strings.ToLower(strings.TrimSpace(kind))); k {
	case RefTrack, RefAlbum, RefPlaylist:
		if id == "" {
			return Ref{}, fmt.Errorf("missing id in %q", raw)
		}
		return Ref{Kind: k, ID: id}, nil
	}
	return Ref{}, fmt.Errorf("unknown reference kind in %q", raw)
}
