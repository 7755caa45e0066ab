package pcie

import (
	"fmt"

	"pcie_tool/pkg/logutil"
)

// ProbeFunc 驱动的 probe 回调，失败只影响该设备，不影响整个激活阶段
type ProbeFunc func(*Device) error

type driverEntry struct {
	name  string
	probe ProbeFunc
}

// DriverRegistry 驱动匹配机制：vendor:device → 驱动
// 对应内核的 driver model，这里是一个进程内注册表
type DriverRegistry struct {
	matchers  map[string]driverEntry // "0x1234:0xabcd" → 驱动
	activated map[string]string      // 地址 → 绑定的驱动名（"" 表示没有匹配）
}

func NewDriverRegistry() *DriverRegistry {
	return &DriverRegistry{
		matchers:  make(map[string]driverEntry),
		activated: make(map[string]string),
	}
}

// Register 注册一个驱动，probe 可以为 nil（只记录绑定关系）
func (r *DriverRegistry) Register(name, vendorID, deviceID string, probe ProbeFunc) {
	key := fmt.Sprintf("%s:%s", vendorID, deviceID)
	r.matchers[key] = driverEntry{name: name, probe: probe}
}

// Activated 返回已激活设备的 地址 → 驱动名 快照
func (r *DriverRegistry) Activated() map[string]string {
	out := make(map[string]string, len(r.activated))
	for k, v := range r.activated {
		out[k] = v
	}
	return out
}

// Activate 把子树下所有设备发布给驱动匹配机制
// 已经激活过的设备直接跳过（幂等）
func (s *SysfsTopology) Activate(bus *Bus) error {
	s.drivers.activateBus(bus)
	return nil
}

func (r *DriverRegistry) activateBus(bus *Bus) {
	bus.Walk(func(dev *Device) {
		if _, done := r.activated[dev.Address]; done {
			return
		}

		key := fmt.Sprintf("%s:%s", dev.VendorID, dev.DeviceID)
		entry, ok := r.matchers[key]
		if !ok {
			r.activated[dev.Address] = ""
			logutil.Debug("%s 没有匹配的驱动", dev.Address)
			return
		}

		r.activated[dev.Address] = entry.name
		if entry.probe != nil {
			if err := entry.probe(dev); err != nil {
				// probe 失败是设备自己的问题，激活阶段继续
				logutil.Warn("%s 驱动 %s probe 失败: %v",
					dev.Address, entry.name, err)
				return
			}
		}
		logutil.Info("%s 绑定驱动 %s", dev.Address, entry.name)
	})
}
