package touch

import "github.com/neuroplastio/rmi4touch/rmi4"

// Source is a 2D sensor function able to produce scans.
type Source interface {
	Number() rmi4.FunctionNumber
	MaxFingers() int
	// Read fetches the raw finger data of the latest scan. The cache is
	// consulted, never modified.
	Read(r *rmi4.PageRouter, cache *Cache) (Scan, error)
}
