package pcie

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pcie_tool/pkg/diffutil"
	"pcie_tool/pkg/errorutil"
	"pcie_tool/pkg/initutil"
	"pcie_tool/pkg/logutil"
	"pcie_tool/pkg/toolutil/hex"
)

// PCIECmd 定义根命令 "pcie"
func PCIECmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pcie",
		Short: "PCIe 交换芯片工具",
	}

	cmd.AddCommand(PCIERescan())
	cmd.AddCommand(PCIETopo())
	return cmd
}

// setupMock 如果指定了 mock 场景就造一份假的 sysfs 目录树
// 返回的 cleanup 在命令结束时删除它，真实 sysfs 根目录下禁止打桩
func setupMock(scenario, root, realRoot string) (func(), error) {
	if scenario == "" {
		return func() {}, nil
	}
	if root == realRoot {
		return nil, fmt.Errorf("mock 场景必须配合 --sysfs-root 使用，不允许动真实目录")
	}
	m, ok := Mockers[scenario]
	if !ok {
		return nil, fmt.Errorf("未知 mock 场景：%s", scenario)
	}
	if err := m(root); err != nil {
		return nil, err
	}
	return func() { _ = os.RemoveAll(root) }, nil
}

// renderTree 把树形视图渲染成字符串，给 --show-diff 用
func renderTree(topo *SysfsTopology) string {
	var sb strings.Builder
	PrintTree(&sb, topo.RootBuses())
	return sb.String()
}

// printView 根据 view 参数打印不同视图
func printView(view string, topo *SysfsTopology) error {
	switch view {
	case "tree":
		PrintTree(os.Stdout, topo.RootBuses())
	case "table":
		PrintTable(os.Stdout, topo.RootBuses())
	case "both":
		PrintTree(os.Stdout, topo.RootBuses())
		PrintTable(os.Stdout, topo.RootBuses())
	case "none":
	default:
		return fmt.Errorf("未知视图: %s", view)
	}
	return nil
}

// PCIERescan 定义子命令 rescan：延迟触发一次四阶段重扫
func PCIERescan() *cobra.Command {
	var jsonFile, view, sysfsRoot string
	var mockScenario, busStr string
	var delayMs int64
	var domain uint16
	var showDiff bool

	cmd := &cobra.Command{
		Use:   "rescan",
		Short: "延迟重扫指定根总线下的设备并编程桥窗口",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := initutil.GetConfig().Rescan

			// 0. 命令行覆盖配置文件
			if cmd.Flags().Changed("delay-ms") {
				cfg.DelayMs = delayMs
			}
			if cmd.Flags().Changed("domain") {
				cfg.Domain = domain
			}
			if cmd.Flags().Changed("bus") {
				b, err := hex.ParseHexToUint8(busStr)
				if err != nil {
					return errorutil.NewExitError(errorutil.CodeConfigError,
						fmt.Errorf("总线号 %q 解析失败: %w", busStr, err))
				}
				cfg.Bus = b
			}
			if cmd.Flags().Changed("sysfs-root") {
				cfg.SysfsRoot = sysfsRoot
			}

			// 1. 可选 mock 场景
			cleanup, err := setupMock(mockScenario, cfg.SysfsRoot,
				initutil.NewRescanConfig().SysfsRoot)
			if err != nil {
				return err
			}
			defer cleanup()

			// 2. 首次扫描，建立初始拓扑
			topo := NewSysfsTopology(cfg.SysfsRoot,
				Range{Start: cfg.MemAperture.Start, End: cfg.MemAperture.End + 1},
				Range{Start: cfg.IOAperture.Start, End: cfg.IOAperture.End + 1})
			if err := topo.Scan(); err != nil {
				return errorutil.NewExitError(errorutil.CodeIOError, err)
			}

			var before string
			if showDiff {
				before = renderTree(topo)
			}

			// 3. 调度延迟重扫
			id := BusIdentity{Domain: cfg.Domain, Bus: cfg.Bus}
			prog := NewBridgeWindowProgrammer(nil)
			orch := NewOrchestrator(topo, prog, nil)

			var rescanErr error
			sched := NewRescanScheduler(func() {
				_, rescanErr = orch.Rescan(id)
			}, nil)
			logutil.Info("调度重扫: 总线 %s 延迟 %d ms", id, cfg.DelayMs)
			sched.Schedule(time.Duration(cfg.DelayMs) * time.Millisecond)

			// mock 场景下在延迟窗口里完成"链路训练"，让新设备出现
			if mockScenario != "" {
				n, err := TrainStaged(cfg.SysfsRoot)
				if err != nil {
					sched.Cancel()
					return err
				}
				logutil.Info("mock: %d 个设备完成链路训练", n)
			}

			// 4. 等重扫结束，收到信号则取消（已经开跑就等它跑完）
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sig)
			select {
			case <-sched.Done():
			case s := <-sig:
				logutil.Warn("收到信号 %v，取消重扫", s)
				sched.Cancel()
			}

			// 5. 输出
			if showDiff {
				diff := diffutil.CompareMultiline(before, renderTree(topo))
				if diffutil.Changed(diff) == 0 {
					fmt.Println("拓扑无变化")
				} else {
					fmt.Println(diffutil.FormatSideBySideTitled(
						diff, "* 重扫前", "* 重扫后"))
				}
			}
			if err := printView(view, topo); err != nil {
				return err
			}
			if jsonFile != "" {
				report := RescanReport{
					Target:     id,
					State:      orch.State(),
					Programmed: prog.Programmed,
					Activated:  topo.Drivers().Activated(),
				}
				data, err := report.JSON()
				if err != nil {
					return errorutil.NewExitError(errorutil.CodeInternalErr, err)
				}
				if err := os.WriteFile(jsonFile, data, 0644); err != nil {
					return errorutil.NewExitError(errorutil.CodeIOError, err)
				}
			}

			return rescanErr
		},
	}

	cmd.Flags().Int64Var(&delayMs, "delay-ms", 3000, "重扫前的延迟毫秒数")
	cmd.Flags().Uint16Var(&domain, "domain", 4, "目标 PCI 域")
	cmd.Flags().StringVar(&busStr, "bus", "0x40", "目标根总线号(十六进制)")
	cmd.Flags().StringVar(&sysfsRoot, "sysfs-root", "", "PCI 设备根目录（用于 mock 测试）")
	cmd.Flags().StringVar(&mockScenario, "mock-scenario", "",
		"指定 mock 场景(switch-late-train, deep-chain, io-window), 为空则不打桩")
	cmd.Flags().StringVar(&jsonFile, "json-file", "", "保存重扫报告 JSON 到文件")
	cmd.Flags().StringVar(&view, "view", "none", "视图模式: tree|table|both|none")
	cmd.Flags().BoolVar(&showDiff, "show-diff", false, "打印重扫前后的拓扑对比")
	return cmd
}

// PCIETopo 定义子命令 topo：只读拓扑视图，支持 Tree/Table/DOT 输出
func PCIETopo() *cobra.Command {
	var view, dotFile, sysfsRoot, mockScenario, under string

	cmd := &cobra.Command{
		Use:   "topo",
		Short: "扫描并展示 PCIe 拓扑",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := initutil.GetConfig().Rescan
			if cmd.Flags().Changed("sysfs-root") {
				cfg.SysfsRoot = sysfsRoot
			}

			cleanup, err := setupMock(mockScenario, cfg.SysfsRoot,
				initutil.NewRescanConfig().SysfsRoot)
			if err != nil {
				return err
			}
			defer cleanup()

			// mock 场景直接把暂存设备全放出来，topo 看的是训练后的全貌
			if mockScenario != "" {
				if _, err := TrainStaged(cfg.SysfsRoot); err != nil {
					return err
				}
			}

			topo := NewSysfsTopology(cfg.SysfsRoot,
				Range{Start: cfg.MemAperture.Start, End: cfg.MemAperture.End + 1},
				Range{Start: cfg.IOAperture.Start, End: cfg.IOAperture.End + 1})
			if err := topo.Scan(); err != nil {
				return errorutil.NewExitError(errorutil.CodeIOError, err)
			}

			if under != "" {
				for _, d := range topo.DevicesUnder(under) {
					fmt.Println(d.Address)
				}
				return nil
			}
			if dotFile != "" {
				if err := os.WriteFile(dotFile,
					[]byte(topo.ExportDOT()), 0644); err != nil {
					return errorutil.NewExitError(errorutil.CodeIOError, err)
				}
			}
			return printView(view, topo)
		},
	}

	cmd.Flags().StringVar(&view, "view", "tree", "视图模式: tree|table|both|none")
	cmd.Flags().StringVar(&dotFile, "dot-file", "", "导出 Graphviz DOT 到文件")
	cmd.Flags().StringVar(&sysfsRoot, "sysfs-root", "", "PCI 设备根目录（用于 mock 测试）")
	cmd.Flags().StringVar(&mockScenario, "mock-scenario", "",
		"指定 mock 场景(switch-late-train, deep-chain, io-window), 为空则不打桩")
	cmd.Flags().StringVar(&under, "under", "", "只列出指定地址前缀下的设备")
	return cmd
}
