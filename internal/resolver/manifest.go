package resolver

import (
	"encoding/base64"
	"html"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	urlPattern      = regexp.MustCompile(`https?://[^\s"'<>]+`)
	probeSegment    = regexp.MustCompile(`^\d+\.mp4$`)
	singleFileShape = regexp.MustCompile(`^[^/]+\.[A-Za-z0-9]{2,5}$`)
)

// audioMarkers identify URLs that point at media.
var audioMarkers = []string{".flac", ".m4a", ".mp4", ".mp3", ".aac", ".m4s", "token="}

// namespaceHosts serve XML schema boilerplate found in DASH manifests.
var namespaceHosts = []string{"w3.org", "standards.iso.org", "dashif.org", "xmlns.com", "purl.org"}

// DecodeManifest recovers a playable URL from a base64 playback manifest.
//
// URL-safe and standard alphabets are accepted, padded or not. A JSON
// manifest with a non-empty urls array yields its first entry; anything
// else is scanned for the first URL that looks like media.
func DecodeManifest(manifest string) (string, error) {
	text, err := decodeBase64(manifest)
	if err != nil {
		return "", &ManifestUnresolvableError{Reason: "invalid base64: " + err.Error()}
	}

	if gjson.Valid(text) {
		urls := gjson.Get(text, "urls")
		if urls.IsArray() {
			if arr := urls.Array(); len(arr) > 0 && arr[0].String() != "" {
				return arr[0].String(), nil
			}
		}
	}

	for _, candidate := range urlPattern.FindAllString(text, -1) {
		candidate = strings.TrimRight(html.UnescapeString(candidate), ".,;)")
		if usableURL(candidate) {
			return candidate, nil
		}
	}
	return "", &ManifestUnresolvableError{Reason: "no usable url in manifest"}
}

func decodeBase64(s string) (string, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, "=")
	s = strings.NewReplacer("+", "-", "/", "_", "\n", "", "\r", "").Replace(s)
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func usableURL(raw string) bool {
	if strings.Contains(raw, "$Number") {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, ns := range namespaceHosts {
		if host == ns || strings.HasSuffix(host, "."+ns) {
			return false
		}
	}

	last := path.Base(u.Path)
	if probeSegment.MatchString(last) {
		return false
	}

	lower := strings.ToLower(raw)
	for _, marker := range audioMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return singleFileShape.MatchString(last)
}
