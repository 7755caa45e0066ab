package pcie_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pcie_tool/pkg/hw/pcie"
)

// fakeCfg 内存模拟的配置空间，记录每次写操作
type fakeCfg struct {
	mem    [256]byte
	writes []string
	// failAt 非 0 时，写这个偏移报错，模拟链路断开
	failAt uint32
}

func (c *fakeCfg) ReadByte(offset uint32) (byte, error) {
	return c.mem[offset], nil
}

func (c *fakeCfg) WriteByte(offset uint32, val byte) error {
	if c.failAt != 0 && offset == c.failAt {
		return fmt.Errorf("写偏移 0x%02x 失败", offset)
	}
	c.mem[offset] = val
	c.writes = append(c.writes, fmt.Sprintf("W8@0x%02x=0x%02x", offset, val))
	return nil
}

func (c *fakeCfg) ReadWord(offset uint32) (uint16, error) {
	return uint16(c.mem[offset+1])<<8 | uint16(c.mem[offset]), nil
}

func (c *fakeCfg) WriteWord(offset uint32, val uint16) error {
	if c.failAt != 0 && offset == c.failAt {
		return fmt.Errorf("写偏移 0x%02x 失败", offset)
	}
	c.mem[offset] = byte(val)
	c.mem[offset+1] = byte(val >> 8)
	c.writes = append(c.writes, fmt.Sprintf("W16@0x%02x=0x%04x", offset, val))
	return nil
}

// 构造一个挂在空下游总线上的桥
func newBridge(addr string, cfg *fakeCfg) *pcie.Device {
	return &pcie.Device{
		Address:     addr,
		Bridge:      &pcie.BridgeInfo{},
		Subordinate: &pcie.Bus{},
		Cfg:         cfg,
	}
}

// 测试窗口寄存器和命令寄存器的写入值
func TestProgramBridgeRegisters(t *testing.T) {
	cfg := &fakeCfg{}
	// 命令寄存器初值 0x0010，验证读-改-写保留原有位
	cfg.mem[pcie.PciCfgOffsetCommand] = 0x10

	br := newBridge("0004:40:00.0", cfg)
	br.SetWindow(pcie.AddressWindow{
		Start: 0x10000000, End: 0x10100000, Kind: pcie.WindowMemory})
	br.SetWindow(pcie.AddressWindow{
		Start: 0x1000, End: 0x2000, Kind: pcie.WindowIO})

	p := pcie.NewBridgeWindowProgrammer(nil)
	require.NoError(t, p.Program(&pcie.Bus{Devices: []*pcie.Device{br}}))

	// 内存窗口 0x10000000-0x10100000 → base 0x1000 / limit 0x1010
	assert.Equal(t, byte(0x00), cfg.mem[pcie.PciCfgOffsetMemoryBase])
	assert.Equal(t, byte(0x10), cfg.mem[pcie.PciCfgOffsetMemoryBase+1])
	assert.Equal(t, byte(0x10), cfg.mem[pcie.PciCfgOffsetMemoryLimit])
	assert.Equal(t, byte(0x10), cfg.mem[pcie.PciCfgOffsetMemoryLimit+1])

	// I/O 窗口 0x1000-0x2000 → base 0x10 / limit 0x20
	assert.Equal(t, byte(0x10), cfg.mem[pcie.PciCfgOffsetIOBase])
	assert.Equal(t, byte(0x20), cfg.mem[pcie.PciCfgOffsetIOLimit])

	// 0x0010 | MEMORY | MASTER = 0x0016，原有位不能丢
	cmd, _ := cfg.ReadWord(pcie.PciCfgOffsetCommand)
	assert.Equal(t, uint16(0x0016), cmd)

	// 两个窗口都有记录
	require.Len(t, p.Programmed, 2)
	assert.Equal(t, pcie.WindowMemory, p.Programmed[0].Kind)
	assert.Equal(t, uint16(0x1000), p.Programmed[0].Base)
	assert.Equal(t, uint16(0x1010), p.Programmed[0].Limit)
}

// 测试空窗口：窗口寄存器一个字节都不能写，命令寄存器照常打开
func TestProgramSkipsEmptyWindows(t *testing.T) {
	cfg := &fakeCfg{}
	br := newBridge("0004:40:00.0", cfg)
	br.SetWindow(pcie.AddressWindow{Kind: pcie.WindowMemory}) // Start==End==0
	br.SetWindow(pcie.AddressWindow{Kind: pcie.WindowIO})

	p := pcie.NewBridgeWindowProgrammer(nil)
	require.NoError(t, p.Program(&pcie.Bus{Devices: []*pcie.Device{br}}))

	// 唯一的一次写是命令寄存器
	require.Len(t, cfg.writes, 1)
	assert.Equal(t, "W16@0x04=0x0006", cfg.writes[0])
	assert.Empty(t, p.Programmed)
}

// 测试先序遍历：父桥必须先于子桥被编程
func TestProgramPreOrder(t *testing.T) {
	parentCfg, childCfg := &fakeCfg{}, &fakeCfg{}
	child := newBridge("0004:41:00.0", childCfg)
	child.SetWindow(pcie.AddressWindow{
		Start: 0xa0000000, End: 0xa0100000, Kind: pcie.WindowMemory})

	parent := newBridge("0004:40:00.0", parentCfg)
	parent.Subordinate = &pcie.Bus{Devices: []*pcie.Device{child}}
	parent.SetWindow(pcie.AddressWindow{
		Start: 0xa0000000, End: 0xa0200000, Kind: pcie.WindowMemory})

	p := pcie.NewBridgeWindowProgrammer(nil)
	require.NoError(t, p.Program(&pcie.Bus{Devices: []*pcie.Device{parent}}))

	require.Len(t, p.Programmed, 2)
	assert.Equal(t, "0004:40:00.0", p.Programmed[0].Address)
	assert.Equal(t, "0004:41:00.0", p.Programmed[1].Address)
}

// 测试两级树、只有子桥有内存窗口：
// 恰好写一对 base/limit（在子桥上），两座桥的命令位都要打开
func TestProgramChildOnlyWindow(t *testing.T) {
	parentCfg, childCfg := &fakeCfg{}, &fakeCfg{}
	child := newBridge("0004:41:00.0", childCfg)
	child.SetWindow(pcie.AddressWindow{
		Start: 0xa0000000, End: 0xa0100000, Kind: pcie.WindowMemory})

	parent := newBridge("0004:40:00.0", parentCfg)
	parent.Subordinate = &pcie.Bus{Devices: []*pcie.Device{child}}
	parent.SetWindow(pcie.AddressWindow{Kind: pcie.WindowMemory})

	p := pcie.NewBridgeWindowProgrammer(nil)
	require.NoError(t, p.Program(&pcie.Bus{Devices: []*pcie.Device{parent}}))

	require.Len(t, p.Programmed, 1)
	assert.Equal(t, "0004:41:00.0", p.Programmed[0].Address)

	// 父桥只有命令寄存器这一次写
	require.Len(t, parentCfg.writes, 1)
	assert.Equal(t, "W16@0x04=0x0006", parentCfg.writes[0])
	// 子桥：base + limit + command 三次写
	assert.Len(t, childCfg.writes, 3)
}

// 测试终端设备（非桥）不会被碰
func TestProgramIgnoresEndpoints(t *testing.T) {
	cfg := &fakeCfg{}
	ep := &pcie.Device{Address: "0004:41:00.0", Cfg: cfg}
	ep.SetWindow(pcie.AddressWindow{
		Start: 0xa0000000, End: 0xa0100000, Kind: pcie.WindowMemory})

	p := pcie.NewBridgeWindowProgrammer(nil)
	require.NoError(t, p.Program(&pcie.Bus{Devices: []*pcie.Device{ep}}))
	assert.Empty(t, cfg.writes)
}

// 测试写寄存器失败就中止：下游的桥一个字节都不会被写
func TestProgramAbortsOnWriteFailure(t *testing.T) {
	parentCfg := &fakeCfg{failAt: pcie.PciCfgOffsetMemoryLimit}
	childCfg := &fakeCfg{}

	child := newBridge("0004:41:00.0", childCfg)
	child.SetWindow(pcie.AddressWindow{
		Start: 0xa0000000, End: 0xa0100000, Kind: pcie.WindowMemory})

	parent := newBridge("0004:40:00.0", parentCfg)
	parent.Subordinate = &pcie.Bus{Devices: []*pcie.Device{child}}
	parent.SetWindow(pcie.AddressWindow{
		Start: 0xa0000000, End: 0xa0200000, Kind: pcie.WindowMemory})

	p := pcie.NewBridgeWindowProgrammer(nil)
	err := p.Program(&pcie.Bus{Devices: []*pcie.Device{parent}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MEMORY_LIMIT")
	assert.Empty(t, childCfg.writes)
}
