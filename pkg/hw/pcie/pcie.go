package pcie

import (
	"fmt"
	"sort"
)

// Base Class Codes (bits 23:16 of Class Code)
const (
	PciClassBridge  = 0x06
	PciClassStorage = 0x01
	PciClassDisplay = 0x03
	// ...
)

// Subclass Codes for Bridge (bits 15:8 if base == 0x06)
const (
	PciSubClassPciToPciBridge = 0x04
	PciSubClassCardBusBridge  = 0x07
	// ...
)

// PCI Header Common
const (
	PciCfgOffsetVendorID   = 0x00
	PciCfgOffsetDeviceID   = 0x02
	PciCfgOffsetCommand    = 0x04
	PciCfgOffsetClassCode  = 0x0B // bits 23:16
	PciCfgOffsetSubClass   = 0x0A
	PciCfgOffsetHeaderType = 0x0E
)

// PCI Type-1 Header（桥）
const (
	PciCfgOffsetPrimaryBus     = 0x18
	PciCfgOffsetSecondaryBus   = 0x19
	PciCfgOffsetSubordinateBus = 0x1A
	PciCfgOffsetIOBase         = 0x1C
	PciCfgOffsetIOLimit        = 0x1D
	PciCfgOffsetMemoryBase     = 0x20
	PciCfgOffsetMemoryLimit    = 0x22
)

// Command 寄存器里我们关心的位
const (
	PciCommandIO     = 0x0001
	PciCommandMemory = 0x0002 // 内存空间译码
	PciCommandMaster = 0x0004 // 总线主控
)

// 桥窗口寄存器的硬件对齐粒度
const (
	MemWindowAlign = 0x100000 // 内存窗口 1 MiB
	IOWindowAlign  = 0x1000   // I/O 窗口 4 KiB
)

// BusIdentity 标识一棵子树的根总线，启动时从配置创建，之后只读
type BusIdentity struct {
	Domain uint16
	Bus    uint8
}

func (id BusIdentity) String() string {
	return fmt.Sprintf("%04x:%02x", id.Domain, id.Bus)
}

// WindowKind 窗口类型：内存 或 I/O
type WindowKind int

const (
	WindowMemory WindowKind = iota
	WindowIO
)

func (k WindowKind) String() string {
	switch k {
	case WindowMemory:
		return "mem"
	case WindowIO:
		return "io"
	}
	return fmt.Sprintf("WindowKind(%d)", int(k))
}

// AddressWindow 桥向下游转发的一段连续地址范围
// End 是上界，Start == End 表示空窗口，空窗口绝对不能写进硬件
type AddressWindow struct {
	Start uint64
	End   uint64
	Kind  WindowKind
}

// Size 窗口大小，End <= Start 视为空
func (w AddressWindow) Size() uint64 {
	if w.End <= w.Start {
		return 0
	}
	return w.End - w.Start
}

func (w AddressWindow) String() string {
	return fmt.Sprintf("%s [0x%08x-0x%08x]", w.Kind, w.Start, w.End)
}

// BridgeInfo 桥的三个总线号寄存器（仅桥有效）
type BridgeInfo struct {
	Primary     byte // 桥的上游总线号
	Secondary   byte // 桥的下游总线起始号
	Subordinate byte // 整棵子树的最大总线号
}

func (b *BridgeInfo) Describe() string {
	return fmt.Sprintf("Bridge: primary=%02X secondary=%02X subordinate=%02X",
		b.Primary, b.Secondary, b.Subordinate)
}

// Device 拓扑树里的一个节点
// 树是严格的：一个桥恰好拥有一棵下游 Bus，设备不会被共享
type Device struct {
	Address  string // PCI 地址，例如 "0004:40:00.0"
	Domain   uint16 // PCI 域号
	Bus      uint8  // 总线号
	VendorID string // 厂商 ID（0x1234）
	DeviceID string // 设备 ID（0xabcd）
	Class    string // 类别代码（0x0604）

	Bridge      *BridgeInfo // 非桥为 nil
	Subordinate *Bus        // 桥的下游总线，非桥为 nil
	Parent      string      // 父设备地址，仅用于诊断，不构成所有权

	// 资源需求（发现阶段读取）和分配结果（分配阶段写入）
	MemSize uint64
	IOSize  uint64
	Windows []AddressWindow

	Cfg ConfigSpace // 配置空间访问能力
}

// 判断一个设备是否具有桥的能力
func (d *Device) IsBridge() bool {
	return d.Bridge != nil
}

// Window 返回指定类型的窗口，没有则返回 nil
func (d *Device) Window(kind WindowKind) *AddressWindow {
	for i := range d.Windows {
		if d.Windows[i].Kind == kind {
			return &d.Windows[i]
		}
	}
	return nil
}

// SetWindow 设置（或替换）指定类型的窗口
func (d *Device) SetWindow(w AddressWindow) {
	for i := range d.Windows {
		if d.Windows[i].Kind == w.Kind {
			d.Windows[i] = w
			return
		}
	}
	d.Windows = append(d.Windows, w)
}

// Bus 一条总线及其上的有序设备列表
type Bus struct {
	Identity BusIdentity
	Devices  []*Device
}

// SortDevices 按地址排序，保证遍历顺序稳定
func (b *Bus) SortDevices() {
	sort.Slice(b.Devices, func(i, j int) bool {
		return b.Devices[i].Address < b.Devices[j].Address
	})
}

// Walk 深度优先遍历子树里的所有设备（先父后子）
func (b *Bus) Walk(fn func(*Device)) {
	for _, d := range b.Devices {
		fn(d)
		if d.Subordinate != nil {
			d.Subordinate.Walk(fn)
		}
	}
}

// CountDevices 子树里的设备总数
func (b *Bus) CountDevices() int {
	n := 0
	b.Walk(func(*Device) { n++ })
	return n
}
