package resolver

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// maxDepth bounds every recursive payload walk.
const maxDepth = 32

// Shape is the structural classification of an untyped payload object.
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeTrack
	ShapeAlbum
	ShapeArtist
)

func (s Shape) String() string {
	switch s {
	case ShapeTrack:
		return "track"
	case ShapeAlbum:
		return "album"
	case ShapeArtist:
		return "artist"
	}
	return "unknown"
}

// visitSet tracks maps and slices by identity so self-referential payloads
// terminate.
type visitSet map[uintptr]bool

// enter marks v as visited and reports whether it was new.
func (s visitSet) enter(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice:
		if rv.Len() == 0 {
			return true
		}
		p := rv.Pointer()
		if s[p] {
			return false
		}
		s[p] = true
	}
	return true
}

// FindItems returns the first "items" array in payload.
//
// Containers are visited depth-first. For each object the value under
// categoryKey is searched before the remaining properties, which are
// visited in sorted key order.
func FindItems(payload any, categoryKey string) []any {
	items, _ := findItems(payload, categoryKey, visitSet{}, 0)
	return items
}

func findItems(v any, key string, visited visitSet, depth int) ([]any, bool) {
	if depth > maxDepth || !visited.enter(v) {
		return nil, false
	}
	switch t := v.(type) {
	case map[string]any:
		if items, ok := t["items"].([]any); ok {
			return items, true
		}
		if key != "" {
			if child, ok := t[key]; ok {
				if items, ok := findItems(child, key, visited, depth+1); ok {
					return items, true
				}
			}
		}
		for _, k := range sortedKeys(t) {
			if k == key {
				continue
			}
			if items, ok := findItems(t[k], key, visited, depth+1); ok {
				return items, true
			}
		}
	case []any:
		for _, e := range t {
			if items, ok := findItems(e, key, visited, depth+1); ok {
				return items, true
			}
		}
	}
	return nil, false
}

// findFirst returns the first object, depth-first, that satisfies pred.
func findFirst(payload any, pred func(map[string]any) bool) map[string]any {
	return findFirstIn(payload, pred, visitSet{}, 0)
}

func findFirstIn(v any, pred func(map[string]any) bool, visited visitSet, depth int) map[string]any {
	if depth > maxDepth || !visited.enter(v) {
		return nil
	}
	switch t := v.(type) {
	case map[string]any:
		if pred(t) {
			return t
		}
		for _, k := range sortedKeys(t) {
			if m := findFirstIn(t[k], pred, visited, depth+1); m != nil {
				return m
			}
		}
	case []any:
		for _, e := range t {
			if m := findFirstIn(e, pred, visited, depth+1); m != nil {
				return m
			}
		}
	}
	return nil
}

// Classify applies the structural predicates to v.
func Classify(v any) Shape {
	m, ok := v.(map[string]any)
	if !ok {
		return ShapeUnknown
	}
	switch {
	case isTrack(m):
		return ShapeTrack
	case isAlbum(m):
		return ShapeAlbum
	case isArtist(m):
		return ShapeArtist
	}
	return ShapeUnknown
}

// isTrack: numeric id, string title, numeric duration, numeric trackNumber
// and a non-null album object.
func isTrack(m map[string]any) bool {
	if !isTrackish(m) || !isNumber(m["trackNumber"]) {
		return false
	}
	album, ok := m["album"].(map[string]any)
	return ok && album != nil
}

// isTrackish is the relaxed track predicate for lists already known to
// hold tracks.
func isTrackish(m map[string]any) bool {
	return isNumber(m["id"]) && isString(m["title"]) && isNumber(m["duration"])
}

// isAlbum: numeric id, string title, a cover or a track count, and no
// per-track fields.
func isAlbum(m map[string]any) bool {
	if !isNumber(m["id"]) || !isString(m["title"]) {
		return false
	}
	if _, ok := m["trackNumber"]; ok {
		return false
	}
	return isString(m["cover"]) || isNumber(m["numberOfTracks"])
}

// isArtist: numeric id, string name and no title.
func isArtist(m map[string]any) bool {
	if _, ok := m["title"]; ok {
		return false
	}
	return isNumber(m["id"]) && isString(m["name"])
}

// isPlaylist: string uuid and title.
func isPlaylist(m map[string]any) bool {
	return isString(m["uuid"]) && isString(m["title"])
}

// Harvested holds entities collected from a free-form payload.
type Harvested struct {
	Tracks  []map[string]any
	Albums  []map[string]any
	Artists []map[string]any
}

// Harvest walks payload and collects track, album and artist shaped objects,
// deduplicated by id. Classified tracks and albums are not descended into.
func Harvest(payload any) *Harvested {
	h := &Harvested{}
	seen := map[string]bool{}
	harvest(payload, h, seen, visitSet{}, 0)
	return h
}

func harvest(v any, h *Harvested, seen map[string]bool, visited visitSet, depth int) {
	if depth > maxDepth || !visited.enter(v) {
		return
	}
	switch t := v.(type) {
	case map[string]any:
		shape := Classify(t)
		key := shape.String() + ":" + idString(t["id"])
		switch shape {
		case ShapeTrack:
			if !seen[key] {
				seen[key] = true
				h.Tracks = append(h.Tracks, t)
			}
			return
		case ShapeAlbum:
			if !seen[key] {
				seen[key] = true
				h.Albums = append(h.Albums, t)
			}
			return
		case ShapeArtist:
			if !seen[key] {
				seen[key] = true
				h.Artists = append(h.Artists, t)
			}
		}
		for _, k := range sortedKeys(t) {
			harvest(t[k], h, seen, visited, depth+1)
		}
	case []any:
		for _, e := range t {
			harvest(e, h, seen, visited, depth+1)
		}
	}
}

// unwrapItem returns the entity inside {"item": {...}, "type": ...} wrappers.
func unwrapItem(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	if inner, ok := m["item"].(map[string]any); ok {
		return inner, true
	}
	return m, true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int64, int32, json.Number:
		return true
	}
	return false
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func idString(v any) string {
	switch t := v.(type) {
	case float64:
		return fmt.Sprintf("%.0f", t)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
