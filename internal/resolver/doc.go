// Package resolver produces track, album, artist and playlist metadata and
// playable stream descriptors from mirrors that disagree about schemas.
//
// Payloads are decoded into generic JSON values and searched structurally:
// FindItems locates the first "items" array at any depth, Classify sorts
// objects into track, album and artist shapes, and Harvest collects them
// from free-form discography modules.
//
// ResolveStream negotiates quality. A hi-res request silently degrades to
// lossless when the mirror cannot confirm hi-res, and each tier is retried
// a few times before giving up:
//
//	desc, err := res.ResolveStream(ctx, "77646170", model.QualityHiResLossless)
//	var rl *resolver.RateLimitError
//	if errors.As(err, &rl) {
//	    // back off
//	}
package resolver
