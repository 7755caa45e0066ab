package initutil

import (
	"os"
	"sync"

	"pcie_tool/pkg/logutil"
	"pcie_tool/pkg/toolutil/hex"

	"github.com/mohae/deepcopy"
	"github.com/tidwall/gjson"
)

// Aperture 是上游预留给某类窗口分配的地址孔径 [Start, End]
type Aperture struct {
	Start uint64
	End   uint64
}

// RescanConfig 延迟重扫相关的配置项，加载一次之后只读
type RescanConfig struct {
	DelayMs   int64  // 重扫触发前的延迟(毫秒)
	Domain    uint16 // 目标 PCI 域
	Bus       uint8  // 目标根总线号
	SysfsRoot string // PCI 设备根目录（mock 测试时可替换）
	// 窗口分配孔径
	MemAperture Aperture
	IOAperture  Aperture
}

// :TODO: 其它的内容待添加
type Config struct {
	ConfigPath string // 配置文件路径（可为空）
	Rescan     RescanConfig
}

// NewRescanConfig 返回内置默认值（和内核模块的 module_param 默认值一致）
func NewRescanConfig() RescanConfig {
	return RescanConfig{
		DelayMs:     3000,
		Domain:      4,
		Bus:         0x40,
		SysfsRoot:   "/sys/bus/pci/devices",
		MemAperture: Aperture{Start: 0xa0000000, End: 0xbfffffff},
		IOAperture:  Aperture{Start: 0x1000, End: 0xffff},
	}
}

var (
	globalConfig Config
	once         sync.Once
)

// InitSystem 初始化系统：日志 + 配置文件
// configPath 为空表示只用默认值
func InitSystem(logFileName string, logLevel logutil.Level, configPath string) {
	once.Do(func() {
		// 初始化日志
		logutil.InitLogger(logFileName, logLevel)

		globalConfig = Config{
			ConfigPath: configPath,
			Rescan:     NewRescanConfig(),
		}

		if configPath != "" {
			parseRescanConfig(configPath)
		}

		// 漂亮打印完整的结构体
		logutil.Info("globalConfig struct:\n%v", globalConfig)
	})
}

// 数值字段既接受 JSON 数字也接受 "0x40" 这样的十六进制字符串
func hexOrNum(res gjson.Result) (uint64, bool) {
	switch res.Type {
	case gjson.Number:
		return res.Uint(), true
	case gjson.String:
		v, err := hex.ParseHexToUint64(res.String())
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

// parseRescanConfig 解析 JSON 配置文件，缺失的键保持默认值
func parseRescanConfig(filePath string) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		logutil.Error("无法打开 配置文件 %s: %v", filePath, err)
		return
	}
	if !gjson.ValidBytes(raw) {
		logutil.Error("配置文件 %s 不是合法 JSON", filePath)
		return
	}

	rc := &globalConfig.Rescan

	if res := gjson.GetBytes(raw, "delay_ms"); res.Exists() {
		rc.DelayMs = res.Int()
	}
	if v, ok := hexOrNum(gjson.GetBytes(raw, "domain")); ok {
		rc.Domain = uint16(v)
	}
	if v, ok := hexOrNum(gjson.GetBytes(raw, "bus")); ok {
		rc.Bus = uint8(v)
	}
	if res := gjson.GetBytes(raw, "sysfs_root"); res.Exists() {
		rc.SysfsRoot = res.String()
	}
	if v, ok := hexOrNum(gjson.GetBytes(raw, "mem_aperture.start")); ok {
		rc.MemAperture.Start = v
	}
	if v, ok := hexOrNum(gjson.GetBytes(raw, "mem_aperture.end")); ok {
		rc.MemAperture.End = v
	}
	if v, ok := hexOrNum(gjson.GetBytes(raw, "io_aperture.start")); ok {
		rc.IOAperture.Start = v
	}
	if v, ok := hexOrNum(gjson.GetBytes(raw, "io_aperture.end")); ok {
		rc.IOAperture.End = v
	}
}

// GetConfig 获取全局配置的深拷贝，调用方改不到全局状态
func GetConfig() Config {
	return deepcopy.Copy(globalConfig).(Config)
}
