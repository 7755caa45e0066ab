package initutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pcie_tool/pkg/logutil"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pcietool.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// 测试配置解析：数值字段同时接受数字和 "0x.." 字符串
func TestParseRescanConfig(t *testing.T) {
	globalConfig = Config{Rescan: NewRescanConfig()}
	path := writeConfig(t, `{
		"delay_ms": 5000,
		"domain": 2,
		"bus": "0x20",
		"sysfs_root": "/tmp/pci_mock",
		"mem_aperture": {"start": "0x80000000", "end": "0x8fffffff"},
		"io_aperture": {"start": "0x2000", "end": "0x3fff"}
	}`)

	parseRescanConfig(path)

	rc := globalConfig.Rescan
	assert.Equal(t, int64(5000), rc.DelayMs)
	assert.Equal(t, uint16(2), rc.Domain)
	assert.Equal(t, uint8(0x20), rc.Bus)
	assert.Equal(t, "/tmp/pci_mock", rc.SysfsRoot)
	assert.Equal(t, uint64(0x80000000), rc.MemAperture.Start)
	assert.Equal(t, uint64(0x8fffffff), rc.MemAperture.End)
	assert.Equal(t, uint64(0x2000), rc.IOAperture.Start)
}

// 测试部分配置：没给的键保持默认值
func TestParseRescanConfigPartial(t *testing.T) {
	globalConfig = Config{Rescan: NewRescanConfig()}
	path := writeConfig(t, `{"delay_ms": 100}`)

	parseRescanConfig(path)

	rc := globalConfig.Rescan
	assert.Equal(t, int64(100), rc.DelayMs)
	// 其余保持内置默认
	assert.Equal(t, uint16(4), rc.Domain)
	assert.Equal(t, uint8(0x40), rc.Bus)
	assert.Equal(t, uint64(0xa0000000), rc.MemAperture.Start)
}

// 测试坏配置：非法 JSON 或文件不存在时一切保持默认，不能崩
func TestParseRescanConfigBad(t *testing.T) {
	globalConfig = Config{Rescan: NewRescanConfig()}
	parseRescanConfig(filepath.Join(t.TempDir(), "不存在.json"))
	assert.Equal(t, NewRescanConfig(), globalConfig.Rescan)

	path := writeConfig(t, `{delay_ms: oops`)
	parseRescanConfig(path)
	assert.Equal(t, NewRescanConfig(), globalConfig.Rescan)
}

// 测试 GetConfig 返回深拷贝：改返回值不影响全局
func TestGetConfigIsolation(t *testing.T) {
	InitSystem("stdout", logutil.WARN, "")

	cfg := GetConfig()
	cfg.Rescan.Bus = 0x7f
	assert.NotEqual(t, uint8(0x7f), GetConfig().Rescan.Bus)
}
