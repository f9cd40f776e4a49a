//go:build !linux

package diag

func totalMemory() uint64 {
	return 0
}
