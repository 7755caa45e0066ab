package pcie

import (
	"fmt"
	"sync"

	"pcie_tool/pkg/errorutil"
)

// RescanState 编排器的状态机
type RescanState int

const (
	StateIdle RescanState = iota
	StateDiscovering
	StateAssigningResources
	StateProgrammingBridges
	StateActivatingDevices
	StateDone
	StateFailed
)

var stateNames = map[RescanState]string{
	StateIdle:               "Idle",
	StateDiscovering:        "Discovering",
	StateAssigningResources: "AssigningResources",
	StateProgrammingBridges: "ProgrammingBridges",
	StateActivatingDevices:  "ActivatingDevices",
	StateDone:               "Done",
	StateFailed:             "Failed",
}

func (s RescanState) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("RescanState(%d)", int(s))
}

// Orchestrator 按固定顺序跑完一次重扫：发现 → 分配 → 编程 → 激活
//
// 四个阶段必须在一次连续的锁持有里按这个顺序执行：分配只改内存模型，
// 桥不会因此转发事务；如果激活（probe）跑在编程前面，驱动隔着一座
// 没编程的桥去摸设备，第一次 probe 必然失败。
type Orchestrator struct {
	mu   sync.Mutex // 拓扑互斥锁，重扫期间任何人不得动这棵子树
	prov Provider
	prog *BridgeWindowProgrammer
	log  Sink

	state RescanState // 当前阶段，mu 保护
}

func NewOrchestrator(prov Provider, prog *BridgeWindowProgrammer, sink Sink) *Orchestrator {
	if sink == nil {
		sink = logutilSink{}
	}
	return &Orchestrator{
		prov:  prov,
		prog:  prog,
		log:   sink,
		state: StateIdle,
	}
}

func (o *Orchestrator) setState(s RescanState) {
	o.state = s
	o.log.Debugf("重扫状态: %s", s)
}

// Rescan 执行一次完整的重扫序列，返回终态
// 同步、不可重入；失败只影响本次，不会重试
func (o *Orchestrator) Rescan(id BusIdentity) (RescanState, error) {
	// 定位失败不碰硬件，直接终态 Failed
	bus, err := o.prov.FindBus(id)
	if err != nil {
		o.log.Errorf("总线 %s 不存在，放弃重扫", id)
		o.mu.Lock()
		o.setState(StateFailed)
		o.mu.Unlock()
		return StateFailed, errorutil.NewExitError(errorutil.CodeBusNotFound, err)
	}

	o.log.Infof("开始重扫总线 %s", id)

	o.mu.Lock()
	defer o.mu.Unlock()

	// 第 1 步：扫描总线层级，发现新设备
	o.setState(StateDiscovering)
	if err := o.prov.Discover(bus); err != nil {
		o.setState(StateFailed)
		o.log.Errorf("总线 %s 发现阶段失败: %v", id, err)
		return StateFailed, errorutil.NewExitError(errorutil.CodeIOError, err)
	}

	// 第 2 步：在内存模型里分配 BAR 和桥窗口
	o.setState(StateAssigningResources)
	if err := o.prov.Assign(bus); err != nil {
		o.setState(StateFailed)
		o.log.Errorf("总线 %s 资源分配失败: %v", id, err)
		return StateFailed, errorutil.NewExitError(errorutil.CodeInternalErr, err)
	}

	// 第 3 步：把桥窗口写进硬件配置空间，打开内存译码
	o.setState(StateProgrammingBridges)
	if err := o.prog.Program(bus); err != nil {
		// 写寄存器失败按致命处理：不做部分激活
		o.setState(StateFailed)
		o.log.Errorf("总线 %s 桥窗口编程失败: %v", id, err)
		return StateFailed, errorutil.NewExitError(errorutil.CodeRegAccess, err)
	}

	// 第 4 步：把设备发布给驱动模型，触发 probe
	// 到这里桥已经配置好了，MMIO 可以用
	o.setState(StateActivatingDevices)
	if err := o.prov.Activate(bus); err != nil {
		o.setState(StateFailed)
		o.log.Errorf("总线 %s 激活阶段失败: %v", id, err)
		return StateFailed, errorutil.NewExitError(errorutil.CodeInternalErr, err)
	}

	o.setState(StateDone)
	o.log.Infof("总线 %s 重扫完成，桥窗口已写入硬件", id)
	return StateDone, nil
}

// State 返回编排器当前状态
func (o *Orchestrator) State() RescanState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}
