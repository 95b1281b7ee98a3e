// Package server exposes the pipeline over HTTP.
//
// It serves two things: a passthrough proxy for mirrors that refuse
// cross-origin browser requests, and a small API over the resolver and the
// download manager.
//
// Routes:
//
//	GET /health
//	GET /api/proxy?url=<encoded>
//	GET /api/stream/:id?quality=
//	GET /api/tracks/:id/download?quality=&mp3=
//	GET /api/albums/:id/export?mode=zip|csv&quality=
//
// Usage:
//
//	srv := server.New(server.Config{Addr: ":8080"}, server.Deps{
//	    Catalog:   res,
//	    Downloads: mgr,
//	    Fetcher:   client,
//	}, log)
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal("server stopped", zap.Error(err))
//	}
package server
