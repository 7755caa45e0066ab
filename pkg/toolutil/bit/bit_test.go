package bit_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"pcie_tool/pkg/toolutil/bit"
)

// 测试 16 位寄存器的拆分与小端合并
func TestSplitJoinUint16(t *testing.T) {
	hi, lo := bit.SplitUint16ToBytes(0xa030)
	assert.Equal(t, byte(0xa0), hi)
	assert.Equal(t, byte(0x30), lo)

	assert.Equal(t, uint16(0xa030), bit.JoinBytesToUint16(0x30, 0xa0))
	assert.Equal(t, uint16(0), bit.JoinBytesToUint16(0, 0))
}

// 测试字段提取：Class Code 0x060400 → 基类/子类/接口
func TestExtractBits(t *testing.T) {
	code := uint32(0x060400)
	assert.Equal(t, uint32(0x06), bit.ExtractBits(code, 16, 8))
	assert.Equal(t, uint32(0x04), bit.ExtractBits(code, 8, 8))
	assert.Equal(t, uint32(0x00), bit.ExtractBits(code, 0, 8))

	// 地址的 bits 31:16，窗口编码用
	assert.Equal(t, uint64(0xa030), bit.ExtractBits(uint64(0xa0300000), 16, 16))
}

// 测试字段还原：拆开再拼回去要得到原值
func TestRestoreFieldToOffset(t *testing.T) {
	code := uint32(0x060400)
	restored := bit.RestoreFieldToOffset(bit.ExtractBits(code, 16, 8), 16) |
		bit.RestoreFieldToOffset(bit.ExtractBits(code, 8, 8), 8) |
		bit.RestoreFieldToOffset(bit.ExtractBits(code, 0, 8), 0)
	assert.Equal(t, code, restored)
}

// 测试寄存器描述符的字段求值和打印
func TestRegisterDescriptor(t *testing.T) {
	reg := &bit.RegisterDescriptor{
		Name: "COMMAND",
		Size: 2,
		Fields: []*bit.BitField{
			{Name: "IOSpace", Start: 0, Len: 1},
			{Name: "MemSpace", Start: 1, Len: 1},
			{Name: "BusMaster", Start: 2, Len: 1},
		},
	}

	vals := reg.Eval(0x0006)
	assert.Equal(t, uint64(0), vals[0].Value)
	assert.Equal(t, uint64(1), vals[1].Value)
	assert.Equal(t, uint64(1), vals[2].Value)

	out := reg.Format(0x0006)
	assert.Contains(t, out, "MemSpace")
	assert.Contains(t, out, "BusMaster")
	assert.Equal(t, 3, strings.Count(out, "\n"))
}

// 测试字段打包：和 Eval 互逆
func TestPackFields(t *testing.T) {
	fields := []*bit.BitField{
		{Name: "IOSpace", Start: 0, Len: 1},
		{Name: "MemSpace", Start: 1, Len: 1},
		{Name: "BusMaster", Start: 2, Len: 1},
	}
	vals := bit.EvalAll(fields, 0x0006)
	assert.Equal(t, uint64(0x0006), bit.PackFields(vals))
}
