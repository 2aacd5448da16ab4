//go:build sqlite_vec && cgo

package store

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Only active in cgo builds tagged sqlite_vec; the default pure-Go
	// build relies on the vec0 compat layer in vec_compat.go instead.
	vec.Auto()
}
