package pcie

import (
	"fmt"
	"os"

	"pcie_tool/pkg/toolutil/bit"
)

// ConfigSpace 配置空间访问能力接口
// 寄存器读写可能失败（文件被移除、权限问题），所以全部返回 error，
// 由调用方决定是否中止后续操作
type ConfigSpace interface {
	ReadByte(offset uint32) (byte, error)
	WriteByte(offset uint32, val byte) error
	ReadWord(offset uint32) (uint16, error)
	WriteWord(offset uint32, val uint16) error
}

// FileConfigSpace 基于 sysfs config 文件的配置空间访问
// 内核把配置空间头部原封不动地映射成这个文件，多字节访问是小端语义
type FileConfigSpace struct {
	path string
}

func NewFileConfigSpace(path string) *FileConfigSpace {
	return &FileConfigSpace{path: path}
}

func (c *FileConfigSpace) readAt(offset uint32, n int) ([]byte, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("打开配置空间 %s 失败: %w", c.path, err)
	}
	defer f.Close()

	buf := make([]byte, n)
	if _, err := f.ReadAt(buf, int64(offset)); err != nil {
		return nil, fmt.Errorf("读配置空间 %s+0x%02x 失败: %w", c.path, offset, err)
	}
	return buf, nil
}

func (c *FileConfigSpace) writeAt(offset uint32, data []byte) error {
	f, err := os.OpenFile(c.path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("打开配置空间 %s 失败: %w", c.path, err)
	}
	defer f.Close()

	if _, err := f.WriteAt(data, int64(offset)); err != nil {
		return fmt.Errorf("写配置空间 %s+0x%02x 失败: %w", c.path, offset, err)
	}
	return nil
}

func (c *FileConfigSpace) ReadByte(offset uint32) (byte, error) {
	buf, err := c.readAt(offset, 1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (c *FileConfigSpace) WriteByte(offset uint32, val byte) error {
	return c.writeAt(offset, []byte{val})
}

func (c *FileConfigSpace) ReadWord(offset uint32) (uint16, error) {
	buf, err := c.readAt(offset, 2)
	if err != nil {
		return 0, err
	}
	return bit.JoinBytesToUint16(buf[0], buf[1]), nil
}

func (c *FileConfigSpace) WriteWord(offset uint32, val uint16) error {
	hi, lo := bit.SplitUint16ToBytes(val)
	return c.writeAt(offset, []byte{lo, hi})
}
