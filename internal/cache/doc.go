// Package cache defines the disk-backed store that holds rendered pages under
// a single CacheRoot directory as <CacheRoot>/<dir>/<file>.html. The store is
// the only component touching the filesystem: it writes entries with safe
// semantics (temp file + rename), deletes single files or the whole tree, and
// lazily enumerates files with their modtime so the sweeper can expire them.
// Every target path is checked to stay inside CacheRoot.
package cache
