package pagecache

// Request is the slice of an HTTP request the cache needs. Path and RawQuery
// are used byte-for-byte, without decoding or normalisation.
type Request struct {
	Method    string
	Path      string
	RawQuery  string
	RouteName string
}

// Response is the slice of an HTTP response the cache needs.
type Response struct {
	StatusCode int
	Body       []byte
}
