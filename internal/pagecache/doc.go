// Package pagecache decides which responses become static page files and
// where they live on disk.
//
// A response is cached when the request is a GET answered with 200 and its
// route name matches the allow-list but not the deny-list. The request path
// plus raw query string is mapped to <CacheRoot>/<dir>/<file>.html so a web
// server rule can serve later hits without reaching the application. The Cache
// type is the single entry point the host calls: CacheIfNeeded once per
// response, Forget/ClearAll for explicit invalidation and SweepExpired/
// SweepCategory for maintenance.
package pagecache
