package model

import "net/url"

// Target is one mirror of the content API.
type Target struct {
	// Name identifies the mirror. Attempt orders are deduplicated by name.
	Name string

	// BaseURL is the API root, optionally with a base path ("https://host/v1").
	BaseURL string

	// Weight is the relative selection weight. Non-positive weights exclude
	// the target from random selection.
	Weight int

	// RequiresProxy routes requests through the passthrough proxy.
	RequiresProxy bool

	// Category groups mirrors into service tiers. Falling back across tiers
	// upgrades the quality query parameter.
	Category string
}

// Valid reports whether the target can take part in weighted selection.
func (t Target) Valid() bool {
	if t.Weight <= 0 {
		return false
	}
	u, err := url.Parse(t.BaseURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
