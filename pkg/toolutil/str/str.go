// 字符串小工具，主要服务于 sysfs 属性文件的读取和表格展示
package str

import (
	"os"
	"strings"
)

// 读取单值属性文件并去掉末尾换行（sysfs 属性都带 \n 结尾）。
// 文件不存在或读取失败返回空串，调用方用 DefaultStr 兜底。
func ReadStrFf(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// 空串时返回默认值，表格里用来把缺失字段显示成占位符
func DefaultStr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
