package pcie

import (
	"fmt"

	rbt "github.com/emirpasic/gods/trees/redblacktree"
	"github.com/emirpasic/gods/utils"

	"pcie_tool/pkg/toolutil"
)

// Range 半开区间 [Start, End)
type Range struct {
	Start uint64
	End   uint64
}

func (r Range) Size() uint64 {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

func (r Range) String() string {
	return fmt.Sprintf("[0x%08x-0x%08x]", r.Start, r.End)
}

// WindowAllocator 窗口地址分配器：红黑树维护空闲区间，按首次适配分配
// 分配策略属于提供者，核心的编排器不感知
type WindowAllocator struct {
	free *rbt.Tree // key: 区间起始地址，value: 区间结束地址
}

// NewWindowAllocator 在一个上游孔径上创建分配器
func NewWindowAllocator(r Range) *WindowAllocator {
	t := rbt.NewWith(utils.UInt64Comparator)
	if r.Size() > 0 {
		t.Put(r.Start, r.End)
	}
	return &WindowAllocator{free: t}
}

// Alloc 首次适配：从最低的空闲区间开始找第一个放得下的位置
// align 必须是 2 的幂
func (a *WindowAllocator) Alloc(size, align uint64) (Range, error) {
	if size == 0 {
		return Range{}, fmt.Errorf("不允许分配空窗口")
	}

	it := a.free.Iterator()
	for it.Next() {
		start := it.Key().(uint64)
		end := it.Value().(uint64)

		s := toolutil.AlignUp(start, align)
		if s+size > end {
			continue
		}

		// 命中：把区间掐掉中间一段，剩余的头尾放回去
		a.free.Remove(start)
		if start < s {
			a.free.Put(start, s)
		}
		if s+size < end {
			a.free.Put(s+size, end)
		}
		return Range{Start: s, End: s + size}, nil
	}

	return Range{}, fmt.Errorf("孔径耗尽: 还需要 0x%x 字节", size)
}

// FreeRanges 按地址升序返回当前空闲区间，诊断用
func (a *WindowAllocator) FreeRanges() []Range {
	var out []Range
	it := a.free.Iterator()
	for it.Next() {
		out = append(out, Range{Start: it.Key().(uint64), End: it.Value().(uint64)})
	}
	return out
}
