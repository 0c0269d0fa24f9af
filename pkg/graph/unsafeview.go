package graph

import "unsafe"

// reinterpret casts a byte slice in place to a slice of n values of T,
// avoiding a copy. b must hold at least n*sizeof(T) bytes and start at an
// address aligned for T; both hold here because every fixed-width section
// of the compact graph binary begins at an offset that is a multiple of
// its element size and the backing mapping starts at a page boundary.
func reinterpret[T any](b []byte, n int) []T {
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), n)
}
