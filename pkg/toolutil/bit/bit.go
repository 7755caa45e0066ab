package bit

import (
	"encoding/binary"

	"golang.org/x/exp/constraints"
)

// SplitUint16ToBytes 将 uint16 拆成高位和低位
func SplitUint16ToBytes(val uint16) (hi, lo byte) {
	hi = byte(val >> 8)
	lo = byte(val & 0xFF)
	return
}

// JoinBytesToUint16 按小端把两个字节合并成 uint16（配置空间是小端）
func JoinBytesToUint16(lo, hi byte) uint16 {
	return binary.LittleEndian.Uint16([]byte{lo, hi})
}

type Uint interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// 提取 val 中 [start:start+width) 范围的字段
// v16 := uint16(0b1011001111001010)
// fmt.Printf("%08b\n", ExtractBits(v16, 4, 4))  // 输出 1110
// v64 := uint64(0x0FAB_CDEF_0000_1234)
// fmt.Printf("%x\n", ExtractBits(v64, 16, 8))  // 提取 bits 23:16
func ExtractBits[T Uint](val T, start, width byte) T {
	var mask T = (1 << width) - 1
	return (val >> start) & mask
}

// 把字段放回 start 起始位位置（等价于还原为原始结构一部分）
// code := uint32(0x060400)
// base := ExtractBits(code, 16, 8)      // 0x06
// sub  := ExtractBits(code, 8, 8)       // 0x04
// prog := ExtractBits(code, 0, 8)       // 0x00
// 还原成原始结构（复合回 0x060400）
// restored := RestoreFieldToOffset(base, 16) |
//
//	RestoreFieldToOffset(sub, 8) |
//	RestoreFieldToOffset(prog, 0)
func RestoreFieldToOffset[T constraints.Unsigned](val T, offset byte) T {
	return val << offset
}
