package pcie

import (
	"fmt"

	"github.com/awalterschulze/gographviz"

	"pcie_tool/pkg/errorutil"
	"pcie_tool/pkg/graph"
	"pcie_tool/pkg/toolutil"
)

// 设备地址转成 DOT 合法的节点名（加引号）
func dotNode(addr string) string {
	return fmt.Sprintf("%q", addr)
}

// TopologyGraph 把当前扫描到的父子关系导出成有向图
// 边的方向是 父桥 → 子设备
func (s *SysfsTopology) TopologyGraph() *gographviz.Graph {
	g := gographviz.NewGraph()
	g.SetName("pcie")
	g.SetDir(true)

	addrs := toolutil.SortedKeys(s.devices)
	for _, addr := range addrs {
		g.AddNode("pcie", dotNode(addr), map[string]string{
			"label": fmt.Sprintf("%q", addr+"\\n"+s.devices[addr].Class),
		})
	}
	for _, addr := range addrs {
		dev := s.devices[addr]
		if dev.Parent != "" {
			g.AddEdge(dotNode(dev.Parent), dotNode(addr), true, nil)
		}
	}
	return g
}

// ValidateTree 校验拓扑是严格的树：父子关系不允许成环
// 成环说明桥的总线号寄存器被配坏了，这种状态下去重扫只会更糟
func (s *SysfsTopology) ValidateTree() error {
	g := s.TopologyGraph()
	if has, entry := graph.HasCycleDFS(g); has {
		return errorutil.NewExitErrorWithMessage(
			errorutil.CodeAssertionFailed,
			"PCIE 拓扑存在环路，需要人工检查",
			fmt.Errorf("拓扑环路经过 %s", entry))
	}
	return nil
}

// ExportDOT 输出 Graphviz DOT 文本，topo --dot-file 用
func (s *SysfsTopology) ExportDOT() string {
	return s.TopologyGraph().String()
}
