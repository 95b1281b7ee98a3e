package router

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jsildura/cloudstream-sub000/internal/model"
)

// Rewrite moves rawURL from one target onto another.
//
// The path below from's base path is re-rooted under to's base path. The
// raw query and fragment are carried over byte for byte, except that a
// quality parameter below preferred is raised to it when the two targets
// belong to different categories. A quality is never lowered.
func Rewrite(rawURL string, from, to model.Target, preferred model.Quality) (string, error) {
	if from.Name == to.Name && from.BaseURL == to.BaseURL {
		return rawURL, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("rewrite %q: %w", rawURL, err)
	}
	fromBase, err := url.Parse(from.BaseURL)
	if err != nil {
		return "", fmt.Errorf("rewrite: bad base %q: %w", from.BaseURL, err)
	}
	toBase, err := url.Parse(to.BaseURL)
	if err != nil {
		return "", fmt.Errorf("rewrite: bad base %q: %w", to.BaseURL, err)
	}

	path := u.EscapedPath()
	if prefix := strings.TrimSuffix(fromBase.EscapedPath(), "/"); prefix != "" && hasPathPrefix(path, prefix) {
		path = path[len(prefix):]
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var b strings.Builder
	b.WriteString(toBase.Scheme)
	b.WriteString("://")
	b.WriteString(toBase.Host)
	b.WriteString(strings.TrimSuffix(toBase.EscapedPath(), "/"))
	b.WriteString(path)

	query := u.RawQuery
	if from.Category != to.Category && preferred != "" {
		query = upgradeQuality(query, preferred)
	}
	if query != "" || u.ForceQuery {
		b.WriteByte('?')
		b.WriteString(query)
	}
	if u.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(u.EscapedFragment())
	}
	return b.String(), nil
}

// hasPathPrefix reports whether prefix matches path on a segment boundary.
func hasPathPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

// upgradeQuality raises every quality pair in a raw query that ranks below
// preferred, leaving all other pairs untouched.
func upgradeQuality(rawQuery string, preferred model.Quality) string {
	if rawQuery == "" {
		return rawQuery
	}
	parts := strings.Split(rawQuery, "&")
	for i, part := range parts {
		key, value, _ := strings.Cut(part, "=")
		if key != "quality" {
			continue
		}
		current, err := url.QueryUnescape(value)
		if err != nil {
			continue
		}
		if model.Quality(strings.ToUpper(current)).Rank() < preferred.Rank() {
			parts[i] = "quality=" + url.QueryEscape(string(preferred))
		}
	}
	return strings.Join(parts, "&")
}

// isCanonicalLookup reports whether u addresses a single entity, or a search
// other than the plain track search.
func isCanonicalLookup(u *url.URL) bool {
	path := u.Path
	for _, seg := range []string{"/album/", "/artist/", "/playlist/"} {
		if strings.Contains(path, seg) || strings.HasSuffix(path, strings.TrimSuffix(seg, "/")) {
			return true
		}
	}
	if strings.Contains(path, "/search") {
		return !u.Query().Has("s")
	}
	return false
}
