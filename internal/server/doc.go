// Package server hosts the Fiber HTTP glue for the page cache: a middleware
// that hands every completed response to pagecache.Cache.CacheIfNeeded, plus
// the request-id and recover middlewares the admin daemon runs behind.
// The host application registers named routes (app.Get(...).Name("web.x"));
// the route name is what the allow/deny lists are matched against. Paths
// under /-/ are reserved for admin endpoints and are never cached.
package server
