package hex

import (
	"os"
	"path/filepath"
	"testing"
)

// sysfs 属性文件的常见形态：带 0x 前缀、结尾带换行
func TestReadHexToUint64Ff(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mem_size")
	if err := os.WriteFile(path, []byte("0x100000\n"), 0644); err != nil {
		t.Fatal(err)
	}

	v, err := ReadHexToUint64Ff(path)
	if err != nil {
		t.Fatalf("ReadHexToUint64Ff: %v", err)
	}
	if v != 0x100000 {
		t.Errorf("got 0x%x, want 0x100000", v)
	}

	// 文件不存在要报错而不是返回 0
	if _, err := ReadHexToUint64Ff(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("不存在的文件应该报错")
	}
}

func TestParseHexVariants(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
		ok   bool
	}{
		{"0x40", 0x40, true},
		{"40", 0x40, true},
		{"  0X1D87\n", 0x1d87, true},
		{"zzz", 0, false},
	}
	for _, tt := range tests {
		v, err := ParseHexToUint64(tt.in)
		if tt.ok && (err != nil || v != tt.want) {
			t.Errorf("ParseHexToUint64(%q) = 0x%x, %v", tt.in, v, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("ParseHexToUint64(%q) 应该报错", tt.in)
		}
	}
}

func TestReadHexStrFf(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vendor")
	if err := os.WriteFile(path, []byte("1d87\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := ReadHexStrFf(path); got != "0x1d87" {
		t.Errorf("got %q, want 0x1d87", got)
	}
	// 读不到时返回占位值
	if got := ReadHexStrFf(filepath.Join(t.TempDir(), "nope")); got != "0x0000" {
		t.Errorf("got %q, want 0x0000", got)
	}
}
