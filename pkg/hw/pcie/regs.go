package pcie

import "pcie_tool/pkg/toolutil/bit"

// 诊断打印用的寄存器描述符
// 字段定义来自 PCI-to-PCI Bridge Architecture 规范的 Type-1 头
var (
	CommandReg = &bit.RegisterDescriptor{
		Name:   "COMMAND",
		Offset: PciCfgOffsetCommand,
		Size:   2,
		Doc:    "命令寄存器，控制设备对各类事务的响应",
		Fields: []*bit.BitField{
			{Name: "IOSpace", Start: 0, Len: 1},
			{Name: "MemSpace", Start: 1, Len: 1},
			{Name: "BusMaster", Start: 2, Len: 1},
			{Name: "ParityErrResp", Start: 6, Len: 1},
			{Name: "SERREnable", Start: 8, Len: 1},
		},
	}

	MemoryBaseReg = &bit.RegisterDescriptor{
		Name:   "MEMORY_BASE",
		Offset: PciCfgOffsetMemoryBase,
		Size:   2,
		Doc:    "内存窗口下界，值对应地址的 bits 31:20，低 4 位保留为 0",
		Fields: []*bit.BitField{
			{Name: "Addr31_20", Start: 4, Len: 12},
		},
	}

	MemoryLimitReg = &bit.RegisterDescriptor{
		Name:   "MEMORY_LIMIT",
		Offset: PciCfgOffsetMemoryLimit,
		Size:   2,
		Doc:    "内存窗口上界，编码方式同 MEMORY_BASE",
		Fields: []*bit.BitField{
			{Name: "Addr31_20", Start: 4, Len: 12},
		},
	}

	IOBaseReg = &bit.RegisterDescriptor{
		Name:   "IO_BASE",
		Offset: PciCfgOffsetIOBase,
		Size:   1,
		Doc:    "I/O 窗口下界，值对应地址的 bits 15:12",
		Fields: []*bit.BitField{
			{Name: "Addr15_12", Start: 4, Len: 4},
		},
	}

	IOLimitReg = &bit.RegisterDescriptor{
		Name:   "IO_LIMIT",
		Offset: PciCfgOffsetIOLimit,
		Size:   1,
		Doc:    "I/O 窗口上界，编码方式同 IO_BASE",
		Fields: []*bit.BitField{
			{Name: "Addr15_12", Start: 4, Len: 4},
		},
	}
)

// 内存窗口寄存器编码：取地址 bits 31:16，再把低 4 位清零
// (0x10000000, 0x10100000) → (0x1000, 0x1010)
func EncodeMemWindow(w AddressWindow) (base, limit uint16) {
	base = uint16(bit.ExtractBits(w.Start, 16, 16)) & 0xfff0
	limit = uint16(bit.ExtractBits(w.End, 16, 16)) & 0xfff0
	return
}

// I/O 窗口寄存器编码：取地址 bits 15:8，再把低 4 位清零
func EncodeIOWindow(w AddressWindow) (base, limit byte) {
	base = byte(bit.ExtractBits(w.Start, 8, 8)) & 0xf0
	limit = byte(bit.ExtractBits(w.End, 8, 8)) & 0xf0
	return
}
