// Package router turns a logical API request into a live response despite
// any subset of mirrors being unreachable or misbehaving.
//
// # Selection
//
// Targets carry relative weights. A cumulative-weight table is built lazily
// from the valid targets and rebuilt only when the target list changes:
//
//	r := router.New(router.Config{Targets: targets}, client, log)
//	t, err := r.Select()
//
// # Attempt Order
//
// Canonical entity lookups (album, artist, playlist, non-track search) try
// the primary target first. Everything else starts at a weighted-random
// target. The remaining targets follow in configured order.
//
// # Execution
//
// Execute rewrites the request URL onto each target in turn, routes through
// the passthrough proxy when a target requires it, and classifies each
// answer:
//
//	resp, err := r.Execute(ctx, router.Request{URL: r.Endpoint("/album/", q)}, router.Options{})
//
// Network failures, HTTP errors, upstream error bodies disguised as 200s and
// validator rejections all fail over to the next target. When every attempt
// is spent the best remaining response is returned, or a *ConnectivityError.
package router
