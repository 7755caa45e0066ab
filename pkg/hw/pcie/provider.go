package pcie

import "errors"

// ErrBusNotFound 目标 {域, 总线号} 解析不到总线
var ErrBusNotFound = errors.New("目标总线不存在")

// Provider 拓扑提供者边界
// 编排器只消费这个接口：查找、发现、分配、激活
type Provider interface {
	// FindBus 解析根总线，找不到返回 ErrBusNotFound
	FindBus(id BusIdentity) (*Bus, error)
	// Discover 就地扩充树，把链路训练完成后新出现的设备挂进来，不碰硬件窗口
	Discover(bus *Bus) error
	// Assign 为子树里每个设备填充 AddressWindow，只改内存模型，不碰硬件
	Assign(bus *Bus) error
	// Activate 把子树下所有设备发布给驱动匹配机制，触发 probe；对已激活设备幂等
	Activate(bus *Bus) error
}

// Sink 日志汇，默认走 logutil，测试的时候可以换成录制实现
type Sink interface {
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
