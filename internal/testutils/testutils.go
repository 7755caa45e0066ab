package testutils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// RecordingSink 把日志收进内存，测试用来断言打了什么日志
// 方法集和 pcie.Sink 一致，但这里不引用那个包，避免测试里的环
type RecordingSink struct {
	mu     sync.Mutex
	Infos  []string
	Errors []string
	Debugs []string
}

func (s *RecordingSink) Infof(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Infos = append(s.Infos, fmt.Sprintf(format, args...))
}

func (s *RecordingSink) Errorf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
}

func (s *RecordingSink) Debugf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Debugs = append(s.Debugs, fmt.Sprintf(format, args...))
}

// ErrorCount 错误日志条数
func (s *RecordingSink) ErrorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Errors)
}

// HasError 是否有包含指定子串的错误日志
func (s *RecordingSink) HasError(substr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.Errors {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}

// MockRoot 在临时目录下按给定场景造一份假的 sysfs 设备树
func MockRoot(t *testing.T, scenario func(root string) error) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "pci_devices")
	if err := scenario(root); err != nil {
		t.Fatalf("构造 mock 场景失败: %v", err)
	}
	return root
}

// ReadConfigByte 直接读 mock 设备 config 文件里的一个字节
func ReadConfigByte(t *testing.T, root, addr string, offset int) byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, addr, "config"))
	if err != nil {
		t.Fatalf("读取 %s 的 config 失败: %v", addr, err)
	}
	if offset >= len(data) {
		t.Fatalf("config 文件只有 %d 字节，读不到偏移 0x%x", len(data), offset)
	}
	return data[offset]
}

// ReadConfigWord 小端读 config 文件里的 16 位寄存器
func ReadConfigWord(t *testing.T, root, addr string, offset int) uint16 {
	lo := ReadConfigByte(t, root, addr, offset)
	hi := ReadConfigByte(t, root, addr, offset+1)
	return uint16(hi)<<8 | uint16(lo)
}
