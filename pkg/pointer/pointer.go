// Copyright (c) 2026 Workhub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package pointer converts between optional values and nullable columns.

Key Functions:
  - NilIfZero: Maps a zero value to nil (SQL NULL).
  - Val: Safely dereferences a pointer, returning the zero value if nil.
*/
package pointer

// NilIfZero returns nil for the zero value of T and a pointer to v otherwise.
func NilIfZero[T comparable](v T) *T {
	var zero T
	if v == zero {
		return nil
	}
	return &v
}

// Val safely dereferences a pointer.
// If the pointer is nil, it returns the zero value of the underlying type.
func Val[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
