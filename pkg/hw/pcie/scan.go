package pcie

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/armon/go-radix"
	"github.com/google/btree"

	"pcie_tool/pkg/logutil"
	"pcie_tool/pkg/toolutil/hex"
	"pcie_tool/pkg/toolutil/str"
)

// SysfsTopology 基于 sysfs 目录树的拓扑提供者
// 真机上 root 是 /sys/bus/pci/devices，测试的时候指向 mock 目录
type SysfsTopology struct {
	root  string
	memAp Range // 上游预留的内存孔径
	ioAp  Range // 上游预留的 I/O 孔径

	devices map[string]*Device   // 扁平索引 地址 → 设备
	byAddr  *radix.Tree          // 地址前缀索引，topo 子命令的 --under 用
	buses   *btree.BTreeG[*Bus]  // (域,总线号) 有序索引
	drivers *DriverRegistry
}

// btree 的排序键：域在高位，总线号在低位
func busLess(a, b *Bus) bool {
	ka := uint32(a.Identity.Domain)<<8 | uint32(a.Identity.Bus)
	kb := uint32(b.Identity.Domain)<<8 | uint32(b.Identity.Bus)
	return ka < kb
}

func NewSysfsTopology(root string, memAp, ioAp Range) *SysfsTopology {
	return &SysfsTopology{
		root:    root,
		memAp:   memAp,
		ioAp:    ioAp,
		devices: make(map[string]*Device),
		byAddr:  radix.New(),
		buses:   btree.NewG(4, busLess),
		drivers: NewDriverRegistry(),
	}
}

// Drivers 驱动注册表，激活阶段用
func (s *SysfsTopology) Drivers() *DriverRegistry {
	return s.drivers
}

// Scan 首次枚举：读取当前可见的所有设备并建树
func (s *SysfsTopology) Scan() error {
	added, err := s.scanNew()
	if err != nil {
		return err
	}
	logutil.Debug("首次枚举发现 %d 个设备", added)
	return s.rebuild()
}

// scanNew 遍历 root 目录，把还不认识的设备加进扁平索引
// 隐藏目录（mock 的 staged 区）不算可见设备
func (s *SysfsTopology) scanNew() (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, fmt.Errorf("无法读取设备目录 %s: %w", s.root, err)
	}

	added := 0
	for _, e := range entries {
		addr := e.Name() // "0004:40:00.0"
		if !e.IsDir() || strings.HasPrefix(addr, ".") {
			continue
		}
		if _, known := s.devices[addr]; known {
			continue
		}

		dev, err := s.readDevice(addr)
		if err != nil {
			logutil.Warn("跳过设备 %s: %v", addr, err)
			continue
		}
		s.devices[addr] = dev
		s.byAddr.Insert(addr, dev)
		added++
	}
	return added, nil
}

// readDevice 读取单个设备的属性文件和配置空间
func (s *SysfsTopology) readDevice(addr string) (*Device, error) {
	parts := strings.Split(addr, ":")
	if len(parts) < 3 {
		return nil, fmt.Errorf("地址格式非法: %s", addr)
	}
	// 解析域和总线号（16 进制字符串）
	dom, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return nil, fmt.Errorf("域号非法: %s", addr)
	}
	busNr, err := strconv.ParseUint(parts[1], 16, 8)
	if err != nil {
		return nil, fmt.Errorf("总线号非法: %s", addr)
	}

	dir := filepath.Join(s.root, addr)
	dev := &Device{
		Address:  addr,
		Domain:   uint16(dom),
		Bus:      uint8(busNr),
		VendorID: hex.ReadHexStrFf(filepath.Join(dir, "vendor")),
		DeviceID: hex.ReadHexStrFf(filepath.Join(dir, "device")),
		Class:    str.ReadStrFf(filepath.Join(dir, "class")),
		Cfg: NewFileConfigSpace(filepath.Join(dir, "config")),
	}

	// 资源需求，叶子设备才写这两个文件，没有就是 0
	dev.MemSize, _ = hex.ReadHexToUint64Ff(filepath.Join(dir, "mem_size"))
	dev.IOSize, _ = hex.ReadHexToUint64Ff(filepath.Join(dir, "io_size"))

	// PCI-to-PCI Bridge（Class code 0x06/Subclass 0x04）
	// 桥的三个总线号从配置空间读，内核已经封装好，不受架构字节序限制
	class, _ := hex.ParseHexToUint32(dev.Class) // dev.Class == "0x060400"
	baseClass := byte(class >> 16)
	subClass := byte(class >> 8)
	if baseClass == PciClassBridge && subClass == PciSubClassPciToPciBridge {
		br := &BridgeInfo{}
		if br.Primary, err = dev.Cfg.ReadByte(PciCfgOffsetPrimaryBus); err != nil {
			return nil, err
		}
		if br.Secondary, err = dev.Cfg.ReadByte(PciCfgOffsetSecondaryBus); err != nil {
			return nil, err
		}
		if br.Subordinate, err = dev.Cfg.ReadByte(PciCfgOffsetSubordinateBus); err != nil {
			return nil, err
		}
		dev.Bridge = br
	}

	return dev, nil
}

// busFor 返回（必要时创建）总线对象
// Bus 指针一旦发出就保持稳定，重建只替换 Devices 切片
func (s *SysfsTopology) busFor(id BusIdentity) *Bus {
	if b, ok := s.buses.Get(&Bus{Identity: id}); ok {
		return b
	}
	b := &Bus{Identity: id}
	s.buses.ReplaceOrInsert(b)
	return b
}

// rebuild 根据扁平索引重建总线和父子关系
func (s *SysfsTopology) rebuild() error {
	// 清掉旧的挂接关系
	s.buses.Ascend(func(b *Bus) bool {
		b.Devices = nil
		return true
	})

	for _, dev := range s.devices {
		dev.Parent = ""
		dev.Subordinate = nil
		b := s.busFor(BusIdentity{Domain: dev.Domain, Bus: dev.Bus})
		b.Devices = append(b.Devices, dev)
	}

	s.buses.Ascend(func(b *Bus) bool {
		b.SortDevices()
		return true
	})

	// 桥 → 下游总线挂接：下游总线号就是 Secondary
	for _, dev := range s.devices {
		if dev.Bridge == nil {
			continue
		}
		if dev.Bridge.Secondary == dev.Bus {
			logutil.Error("桥 %s 的 Secondary 指向自身总线，忽略", dev.Address)
			continue
		}
		sub, ok := s.buses.Get(&Bus{Identity: BusIdentity{
			Domain: dev.Domain, Bus: dev.Bridge.Secondary}})
		if !ok {
			// 下游还没有任何设备，也要有一棵空的下游总线
			sub = s.busFor(BusIdentity{
				Domain: dev.Domain, Bus: dev.Bridge.Secondary})
		}
		dev.Subordinate = sub
		for _, child := range sub.Devices {
			if child.Parent != "" && child.Parent != dev.Address {
				logutil.Error("拓扑错误: %s 同时属于 %s 和 %s，需要人工检查",
					child.Address, child.Parent, dev.Address)
			}
			child.Parent = dev.Address
		}
	}

	// 严格树校验：父子关系不允许成环
	if err := s.ValidateTree(); err != nil {
		return err
	}
	return nil
}

// FindBus 解析 {域, 总线号}，找不到或者总线为空都算不存在
func (s *SysfsTopology) FindBus(id BusIdentity) (*Bus, error) {
	b, ok := s.buses.Get(&Bus{Identity: id})
	if !ok || len(b.Devices) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrBusNotFound, id)
	}
	return b, nil
}

// Discover 重新枚举目录，挂入训练完成后新出现的设备
func (s *SysfsTopology) Discover(bus *Bus) error {
	added, err := s.scanNew()
	if err != nil {
		return err
	}
	if added > 0 {
		logutil.Info("重扫发现 %d 个新设备", added)
		if err := s.rebuild(); err != nil {
			return err
		}
	}
	return nil
}

// Assign 见 assign.go；Activate 见 activate.go

// Device 按地址查找设备
func (s *SysfsTopology) Device(addr string) (*Device, bool) {
	d, ok := s.devices[addr]
	return d, ok
}

// DevicesUnder 前缀筛选，比如 "0004:" 或者 "0004:40"
// prefix 为空返回全部，结果按地址升序
func (s *SysfsTopology) DevicesUnder(prefix string) []*Device {
	var out []*Device
	s.byAddr.WalkPrefix(prefix, func(addr string, v any) bool {
		out = append(out, v.(*Device))
		return false
	})
	return out
}

// RootBuses 返回没有父桥的总线（每个域的根），按 (域,总线号) 升序
func (s *SysfsTopology) RootBuses() []*Bus {
	parented := make(map[BusIdentity]bool)
	for _, dev := range s.devices {
		if dev.Subordinate != nil {
			parented[dev.Subordinate.Identity] = true
		}
	}

	var out []*Bus
	s.buses.Ascend(func(b *Bus) bool {
		if len(b.Devices) > 0 && !parented[b.Identity] {
			out = append(out, b)
		}
		return true
	})
	return out
}
