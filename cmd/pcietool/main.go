package main

import (
	"fmt"
	"os"

	"pcie_tool/pkg/errorutil"
	"pcie_tool/pkg/hw/pcie"
	"pcie_tool/pkg/initutil"
	"pcie_tool/pkg/logutil"

	"github.com/spf13/cobra"
)

const TOOL_VERSION = "1.0.0+20250820"

func main() {
	var rootCmd = &cobra.Command{
		Use:   "pcietool",
		Short: fmt.Sprintf("Pcietool v%s 针对训练慢的 PCIe 交换芯片做延迟重扫和窗口编程", TOOL_VERSION),
		Long: "       .-.                   _        _              _ \n" +
			"      (o o)      _ __    ___ (_)  ___ | |_  ___   ___ | |\n" +
			"      | O \\     | '_ \\  / __|| | / _ \\| __|/ _ \\ / _ \\| |\n" +
			"      \\    \\    | |_) || (__ | ||  __/| |_| (_) | (_) | |\n" +
			"       `~~~'    | .__/  \\___||_| \\___| \\__|\\___/ \\___/|_|\n" +
			"                |_|                                      \n" +
			fmt.Sprintf("\nPcietool v%s 针对训练慢的 PCIe 交换芯片做延迟重扫和窗口编程\n", TOOL_VERSION),
	}

	rootCmd.AddCommand(pcie.PCIECmd())

	var logFile, configFile string
	logLevel := logutil.WARN

	// 定义全局flag(屁股后面带P的函数才支持短选项)
	rootCmd.PersistentFlags().VarP(&logLevel, "log-level", "e", "日志等级(DEBUG/INFO/WARN/ERROR)")
	rootCmd.PersistentFlags().StringVarP(&logFile, "log-file", "l", "pcietool.log", "日志文件名(默认pcietool.log，stdout 表示标准输出)")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径(JSON)，为空则用内置默认值")
	// 阻止 Cobra 在命令参数错误时输出帮助
	rootCmd.SilenceUsage = true
	// 阻止Cobra自动打印RunEs返回的错误内容
	rootCmd.SilenceErrors = true

	// 等待Cobra的flag解析完成后
	// PersistentPreRunE 回调，这个钩子会在用户的命令解析完成、flag 值填充后执行
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		initutil.InitSystem(logFile, logLevel, configFile)
		return nil
	}

	if err := rootCmd.Execute(); err != nil {
		msg, code := errorutil.FormatErrorAndCode(err)
		logutil.Error("命令执行失败: %s", msg)
		logutil.CloseLogger()
		os.Exit(code)
	}

	// 不要用defer，因为defer是在函数返回前执行的，而不是os.Exit()执行前执行
	logutil.CloseLogger()
	os.Exit(0)
}
