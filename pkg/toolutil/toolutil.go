package toolutil

import "sort"

// 向上对齐到 align 的整数倍，align 必须是 2 的幂
func AlignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}

// 向下对齐到 align 的整数倍，align 必须是 2 的幂
func AlignDown(v, align uint64) uint64 {
	return v &^ (align - 1)
}

// SortedKeys 将 map 的 key 排序后返回，保证遍历顺序稳定
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
