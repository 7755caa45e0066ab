package pcie

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mohae/deepcopy"

	"pcie_tool/pkg/toolutil/bit"
)

// StagedDirName mock 根目录下的暂存区：链路还没训练完的设备先藏在这里，
// TrainStaged 把它们搬出来，模拟下行口训练完成后设备变得可见
const StagedDirName = ".staged"

// MockDev 描述单个 mock 设备属性
type MockDev struct {
	Addr     string
	IsBridge bool
	Bridge   BridgeInfo
	Vendor   string
	Device   string
	Class    string
	MemSize  uint64 // 叶子的内存需求，0 表示没有
	IOSize   uint64 // 叶子的 I/O 需求
	InitCmd  uint16 // 命令寄存器初值
	Staged   bool   // true: 初始不可见，训练后出现
}

// Mockers 注册所有 mock 场景
var Mockers = map[string]func(root string) error{
	"switch-late-train": MockSwitchLateTrain,
	"deep-chain":        MockDeepChain,
	"io-window":         MockIOWindow,
}

// 场景模板是包级变量，mockSetup 前先深拷贝一份，防止调用方改到模板

// RK3588 典型现场：交换芯片的上行口开机就能看到，
// 两个下行口和后面的终端设备要等链路训练完才出现
var switchLateTrainDevs = []MockDev{
	{Addr: "0004:40:00.0", IsBridge: true,
		Bridge: BridgeInfo{Primary: 0x40, Secondary: 0x41, Subordinate: 0x43},
		Vendor: "0x1d87", Device: "0x3588", Class: "0x060400"},
	{Addr: "0004:41:00.0", IsBridge: true, Staged: true,
		Bridge: BridgeInfo{Primary: 0x41, Secondary: 0x42, Subordinate: 0x42},
		Vendor: "0x1b21", Device: "0x1182", Class: "0x060400"},
	{Addr: "0004:41:04.0", IsBridge: true, Staged: true,
		Bridge: BridgeInfo{Primary: 0x41, Secondary: 0x43, Subordinate: 0x43},
		Vendor: "0x1b21", Device: "0x1182", Class: "0x060400"},
	{Addr: "0004:42:00.0", Staged: true,
		Vendor: "0x8086", Device: "0x125c", Class: "0x020000",
		MemSize: 0x100000},
	{Addr: "0004:43:00.0", Staged: true,
		Vendor: "0x144d", Device: "0xa80a", Class: "0x010802",
		MemSize: 0x200000, IOSize: 0x1000},
}

// 4 级桥链，链上每一级都是训练后才出现
var deepChainDevs = []MockDev{
	{Addr: "0004:40:00.0", IsBridge: true,
		Bridge: BridgeInfo{Primary: 0x40, Secondary: 0x41, Subordinate: 0x43},
		Vendor: "0x1d87", Device: "0x3588", Class: "0x060400"},
	{Addr: "0004:41:00.0", IsBridge: true, Staged: true,
		Bridge: BridgeInfo{Primary: 0x41, Secondary: 0x42, Subordinate: 0x43},
		Vendor: "0x1b21", Device: "0x1182", Class: "0x060400"},
	{Addr: "0004:42:00.0", IsBridge: true, Staged: true,
		Bridge: BridgeInfo{Primary: 0x42, Secondary: 0x43, Subordinate: 0x43},
		Vendor: "0x1b21", Device: "0x1182", Class: "0x060400"},
	{Addr: "0004:43:00.0", Staged: true,
		Vendor: "0x10ee", Device: "0x9038", Class: "0x120000",
		MemSize: 0x400000},
}

// 只有 I/O 需求的终端设备，内存窗口全程为空
var ioWindowDevs = []MockDev{
	{Addr: "0004:40:00.0", IsBridge: true,
		Bridge: BridgeInfo{Primary: 0x40, Secondary: 0x41, Subordinate: 0x41},
		Vendor: "0x1d87", Device: "0x3588", Class: "0x060400"},
	{Addr: "0004:41:00.0", Staged: true,
		Vendor: "0x1b36", Device: "0x0002", Class: "0x070002",
		IOSize: 0x800},
}

func MockSwitchLateTrain(root string) error {
	return mockSetup(root, deepcopy.Copy(switchLateTrainDevs).([]MockDev))
}

func MockDeepChain(root string) error {
	return mockSetup(root, deepcopy.Copy(deepChainDevs).([]MockDev))
}

func MockIOWindow(root string) error {
	return mockSetup(root, deepcopy.Copy(ioWindowDevs).([]MockDev))
}

// mockSetup 通用 mock 实现：
// - 清空并重建 root
// - 可见设备直接放 root 下，staged 设备放 root/.staged 下
// - 每个设备一个目录，带 vendor/device/class/config 文件
func mockSetup(root string, devs []MockDev) error {
	// 清理旧目录
	if err := os.RemoveAll(root); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Join(root, StagedDirName), 0755); err != nil {
		return err
	}

	for _, m := range devs {
		base := root
		if m.Staged {
			base = filepath.Join(root, StagedDirName)
		}
		d := filepath.Join(base, m.Addr)
		if err := os.MkdirAll(d, 0755); err != nil {
			return err
		}

		os.WriteFile(filepath.Join(d, "vendor"), []byte(m.Vendor), 0644)
		os.WriteFile(filepath.Join(d, "device"), []byte(m.Device), 0644)
		os.WriteFile(filepath.Join(d, "class"), []byte(m.Class), 0644)

		if m.MemSize > 0 {
			os.WriteFile(filepath.Join(d, "mem_size"),
				[]byte(fmt.Sprintf("0x%x", m.MemSize)), 0644)
		}
		if m.IOSize > 0 {
			os.WriteFile(filepath.Join(d, "io_size"),
				[]byte(fmt.Sprintf("0x%x", m.IOSize)), 0644)
		}

		// Type-1 头的前 256 字节，命令寄存器和桥总线号写进去
		buf := make([]byte, 0x100)
		hi, lo := bit.SplitUint16ToBytes(m.InitCmd)
		buf[PciCfgOffsetCommand] = lo
		buf[PciCfgOffsetCommand+1] = hi
		if m.IsBridge {
			buf[PciCfgOffsetPrimaryBus] = m.Bridge.Primary
			buf[PciCfgOffsetSecondaryBus] = m.Bridge.Secondary
			buf[PciCfgOffsetSubordinateBus] = m.Bridge.Subordinate
		}
		if err := os.WriteFile(filepath.Join(d, "config"), buf, 0644); err != nil {
			return err
		}
	}
	return nil
}

// TrainStaged 把暂存区的设备搬到可见区，返回"训练完成"的设备数
func TrainStaged(root string) (int, error) {
	staged := filepath.Join(root, StagedDirName)
	entries, err := os.ReadDir(staged)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	moved := 0
	for _, e := range entries {
		src := filepath.Join(staged, e.Name())
		dst := filepath.Join(root, e.Name())
		if err := os.Rename(src, dst); err != nil {
			return moved, fmt.Errorf("训练 %s 失败: %w", e.Name(), err)
		}
		moved++
	}
	return moved, nil
}
