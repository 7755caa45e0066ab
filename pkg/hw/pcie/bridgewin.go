package pcie

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"pcie_tool/pkg/logutil"
)

// logutilSink 默认日志汇，直接转发给 logutil
type logutilSink struct{}

func (logutilSink) Infof(format string, args ...any)  { logutil.Info(format, args...) }
func (logutilSink) Errorf(format string, args ...any) { logutil.Error(format, args...) }
func (logutilSink) Debugf(format string, args ...any) { logutil.Debug(format, args...) }

// ProgrammedWindow 一次窗口编程的记录，报告和诊断用
type ProgrammedWindow struct {
	Address string
	Kind    WindowKind
	Start   uint64
	End     uint64
	Base    uint16
	Limit   uint16
}

// BridgeWindowProgrammer 把分配好的窗口写进桥的配置空间寄存器
//
// 资源分配只更新内存模型，不会让桥真正转发事务；这里是唯一让
// 分配结果对硬件可见的地方。任何一次寄存器读写失败都会中止
// 剩余的递归并把错误上抛——绝不能带着写了一半的桥去触发 probe
type BridgeWindowProgrammer struct {
	log Sink

	// Programmed 本次编程过的窗口，按编程顺序
	Programmed []ProgrammedWindow
}

func NewBridgeWindowProgrammer(sink Sink) *BridgeWindowProgrammer {
	if sink == nil {
		sink = logutilSink{}
	}
	return &BridgeWindowProgrammer{log: sink}
}

// Program 递归遍历 bus 下的所有设备，给每个桥写窗口寄存器
// 先序：先把桥本身编程完，再下去碰它的下游——地址转发必须先打开
func (p *BridgeWindowProgrammer) Program(bus *Bus) error {
	for _, dev := range bus.Devices {
		if !dev.IsBridge() || dev.Subordinate == nil {
			continue
		}

		if err := p.programBridge(dev); err != nil {
			return err
		}

		// 递归进入下游总线
		if err := p.Program(dev.Subordinate); err != nil {
			return err
		}
	}
	return nil
}

func (p *BridgeWindowProgrammer) programBridge(dev *Device) error {
	// 内存窗口：1 MiB 粒度，取地址 bits 31:16 再清低 4 位
	// 空窗口整个跳过——写一对退化的 base/limit 会把固件预配置的窗口废掉
	if w := dev.Window(WindowMemory); w != nil && w.Size() > 0 {
		base, limit := EncodeMemWindow(*w)
		if err := dev.Cfg.WriteWord(PciCfgOffsetMemoryBase, base); err != nil {
			return fmt.Errorf("%s 写 MEMORY_BASE 失败: %w", dev.Address, err)
		}
		if err := dev.Cfg.WriteWord(PciCfgOffsetMemoryLimit, limit); err != nil {
			return fmt.Errorf("%s 写 MEMORY_LIMIT 失败: %w", dev.Address, err)
		}
		p.Programmed = append(p.Programmed, ProgrammedWindow{
			Address: dev.Address, Kind: WindowMemory,
			Start: w.Start, End: w.End, Base: base, Limit: limit,
		})
		p.log.Infof("%s 桥内存窗口 %s (%s)",
			dev.Address, w, humanize.IBytes(w.Size()))
	}

	// I/O 窗口：4 KiB 粒度，取地址 bits 15:8 再清低 4 位
	if w := dev.Window(WindowIO); w != nil && w.Size() > 0 {
		base, limit := EncodeIOWindow(*w)
		if err := dev.Cfg.WriteByte(PciCfgOffsetIOBase, base); err != nil {
			return fmt.Errorf("%s 写 IO_BASE 失败: %w", dev.Address, err)
		}
		if err := dev.Cfg.WriteByte(PciCfgOffsetIOLimit, limit); err != nil {
			return fmt.Errorf("%s 写 IO_LIMIT 失败: %w", dev.Address, err)
		}
		p.Programmed = append(p.Programmed, ProgrammedWindow{
			Address: dev.Address, Kind: WindowIO,
			Start: w.Start, End: w.End,
			Base: uint16(base), Limit: uint16(limit),
		})
		p.log.Infof("%s 桥 I/O 窗口 %s (%s)",
			dev.Address, w, humanize.IBytes(w.Size()))
	}

	// 读-改-写命令寄存器：只置 内存译码 和 总线主控 两个位，
	// 其它位保持原值
	cmd, err := dev.Cfg.ReadWord(PciCfgOffsetCommand)
	if err != nil {
		return fmt.Errorf("%s 读 COMMAND 失败: %w", dev.Address, err)
	}
	cmd |= PciCommandMemory | PciCommandMaster
	if err := dev.Cfg.WriteWord(PciCfgOffsetCommand, cmd); err != nil {
		return fmt.Errorf("%s 写 COMMAND 失败: %w", dev.Address, err)
	}
	p.log.Debugf("%s COMMAND=0x%04x\n%s",
		dev.Address, cmd, CommandReg.Format(uint64(cmd)))

	return nil
}
