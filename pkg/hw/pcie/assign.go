package pcie

import (
	"fmt"

	"pcie_tool/pkg/logutil"
	"pcie_tool/pkg/toolutil"
)

// Assign 资源分配阶段：自底向上聚合需求，自顶向下首次适配
// 只更新内存模型里的窗口，绝不碰硬件——让硬件看到结果是编程阶段的事
func (s *SysfsTopology) Assign(bus *Bus) error {
	memAlloc := NewWindowAllocator(s.memAp)
	ioAlloc := NewWindowAllocator(s.ioAp)
	return assignBus(bus, memAlloc, ioAlloc)
}

// memDemand 聚合一个设备（连同子树）的内存需求，对齐到窗口粒度
func memDemand(d *Device) uint64 {
	if !d.IsBridge() {
		if d.MemSize == 0 {
			return 0
		}
		return toolutil.AlignUp(d.MemSize, MemWindowAlign)
	}
	var total uint64
	if d.Subordinate != nil {
		for _, c := range d.Subordinate.Devices {
			total += memDemand(c)
		}
	}
	return total
}

// ioDemand 同 memDemand，I/O 粒度是 4 KiB
func ioDemand(d *Device) uint64 {
	if !d.IsBridge() {
		if d.IOSize == 0 {
			return 0
		}
		return toolutil.AlignUp(d.IOSize, IOWindowAlign)
	}
	var total uint64
	if d.Subordinate != nil {
		for _, c := range d.Subordinate.Devices {
			total += ioDemand(c)
		}
	}
	return total
}

// assignBus 给一条总线上的设备分窗口
// 桥拿到一整块连续区间，再在自己的区间里给下游分
func assignBus(bus *Bus, memAlloc, ioAlloc *WindowAllocator) error {
	for _, dev := range bus.Devices {
		md := memDemand(dev)
		iod := ioDemand(dev)

		if md > 0 {
			r, err := memAlloc.Alloc(md, MemWindowAlign)
			if err != nil {
				return fmt.Errorf("%s 内存窗口分配失败: %w", dev.Address, err)
			}
			dev.SetWindow(AddressWindow{Start: r.Start, End: r.End, Kind: WindowMemory})
			logutil.Debug("%s 内存窗口 %s", dev.Address, r)
		} else {
			// 空窗口占位，编程阶段会整个跳过
			dev.SetWindow(AddressWindow{Kind: WindowMemory})
		}

		if iod > 0 {
			r, err := ioAlloc.Alloc(iod, IOWindowAlign)
			if err != nil {
				return fmt.Errorf("%s I/O 窗口分配失败: %w", dev.Address, err)
			}
			dev.SetWindow(AddressWindow{Start: r.Start, End: r.End, Kind: WindowIO})
			logutil.Debug("%s I/O 窗口 %s", dev.Address, r)
		} else {
			dev.SetWindow(AddressWindow{Kind: WindowIO})
		}

		// 桥在自己的窗口里继续给下游分
		if dev.IsBridge() && dev.Subordinate != nil {
			var memSub, ioSub *WindowAllocator
			if w := dev.Window(WindowMemory); w != nil && w.Size() > 0 {
				memSub = NewWindowAllocator(Range{Start: w.Start, End: w.End})
			} else {
				memSub = NewWindowAllocator(Range{})
			}
			if w := dev.Window(WindowIO); w != nil && w.Size() > 0 {
				ioSub = NewWindowAllocator(Range{Start: w.Start, End: w.End})
			} else {
				ioSub = NewWindowAllocator(Range{})
			}
			if err := assignBus(dev.Subordinate, memSub, ioSub); err != nil {
				return err
			}
		}
	}
	return nil
}
