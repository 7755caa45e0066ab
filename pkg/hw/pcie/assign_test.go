package pcie_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pcie_tool/internal/testutils"
	"pcie_tool/pkg/hw/pcie"
)

// 把 mock 场景直接训练到位并扫出完整拓扑
func scanTrained(t *testing.T, scenario func(string) error) (*pcie.SysfsTopology, *pcie.Bus) {
	t.Helper()
	root := testutils.MockRoot(t, scenario)
	_, err := pcie.TrainStaged(root)
	require.NoError(t, err)

	topo := pcie.NewSysfsTopology(root, testMemAp, testIOAp)
	require.NoError(t, topo.Scan())

	bus, err := topo.FindBus(pcie.BusIdentity{Domain: 4, Bus: 0x40})
	require.NoError(t, err)
	return topo, bus
}

// 测试资源分配：桥的窗口等于子树需求之和，叶子窗口落在父桥窗口里
func TestAssignAggregatesDemand(t *testing.T) {
	topo, bus := scanTrained(t, pcie.MockSwitchLateTrain)
	require.NoError(t, topo.Assign(bus))

	// 上行桥：0x100000 + 0x200000 = 0x300000，从孔径起点开始
	up, _ := topo.Device("0004:40:00.0")
	w := up.Window(pcie.WindowMemory)
	require.NotNil(t, w)
	assert.Equal(t, uint64(0xa0000000), w.Start)
	assert.Equal(t, uint64(0x300000), w.Size())

	// 两个下行桥按地址顺序在父窗口里排
	d1, _ := topo.Device("0004:41:00.0")
	w1 := d1.Window(pcie.WindowMemory)
	require.NotNil(t, w1)
	assert.Equal(t, uint64(0xa0000000), w1.Start)
	assert.Equal(t, uint64(0x100000), w1.Size())

	d2, _ := topo.Device("0004:41:04.0")
	w2 := d2.Window(pcie.WindowMemory)
	require.NotNil(t, w2)
	assert.Equal(t, uint64(0xa0100000), w2.Start)
	assert.Equal(t, uint64(0x200000), w2.Size())

	// 叶子必须落在自己父桥的窗口里
	ep, _ := topo.Device("0004:43:00.0")
	we := ep.Window(pcie.WindowMemory)
	require.NotNil(t, we)
	assert.GreaterOrEqual(t, we.Start, w2.Start)
	assert.LessOrEqual(t, we.End, w2.End)
}

// 测试 I/O 需求的传播：只有一条链上的桥拿到 I/O 窗口
func TestAssignIOPropagation(t *testing.T) {
	topo, bus := scanTrained(t, pcie.MockSwitchLateTrain)
	require.NoError(t, topo.Assign(bus))

	// 0004:43:00.0 要 0x1000 I/O，它上面的两座桥都得有窗口
	up, _ := topo.Device("0004:40:00.0")
	require.NotNil(t, up.Window(pcie.WindowIO))
	assert.Equal(t, uint64(0x1000), up.Window(pcie.WindowIO).Size())

	d2, _ := topo.Device("0004:41:04.0")
	assert.Equal(t, uint64(0x1000), d2.Window(pcie.WindowIO).Size())

	// 另一条链上没有 I/O 需求，窗口是空占位
	d1, _ := topo.Device("0004:41:00.0")
	require.NotNil(t, d1.Window(pcie.WindowIO))
	assert.Zero(t, d1.Window(pcie.WindowIO).Size())
}

// 测试纯 I/O 设备：内存窗口全程为空
func TestAssignIOOnlyDevice(t *testing.T) {
	topo, bus := scanTrained(t, pcie.MockIOWindow)
	require.NoError(t, topo.Assign(bus))

	up, _ := topo.Device("0004:40:00.0")
	assert.Zero(t, up.Window(pcie.WindowMemory).Size())
	assert.Equal(t, uint64(0x1000), up.Window(pcie.WindowIO).Size())

	ep, _ := topo.Device("0004:41:00.0")
	assert.Zero(t, ep.Window(pcie.WindowMemory).Size())
	// 0x800 向上对齐到 4 KiB 粒度
	assert.Equal(t, uint64(0x1000), ep.Window(pcie.WindowIO).Size())
}

// 测试需求对齐：叶子大小不是粒度整数倍时向上取整
func TestAssignDeepChainAlignment(t *testing.T) {
	topo, bus := scanTrained(t, pcie.MockDeepChain)
	require.NoError(t, topo.Assign(bus))

	// 链上每一级的窗口大小都等于最底下叶子的对齐需求
	for _, addr := range []string{
		"0004:40:00.0", "0004:41:00.0", "0004:42:00.0"} {
		d, ok := topo.Device(addr)
		require.True(t, ok)
		assert.Equal(t, uint64(0x400000),
			d.Window(pcie.WindowMemory).Size(), addr)
	}
}
