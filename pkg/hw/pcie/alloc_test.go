package pcie_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pcie_tool/pkg/hw/pcie"
)

// 测试首次适配：连续分配从孔径低端依次向上排
func TestAllocFirstFit(t *testing.T) {
	a := pcie.NewWindowAllocator(pcie.Range{Start: 0xa0000000, End: 0xa0400000})

	r1, err := a.Alloc(0x100000, 0x100000)
	require.NoError(t, err)
	assert.Equal(t, pcie.Range{Start: 0xa0000000, End: 0xa0100000}, r1)

	r2, err := a.Alloc(0x200000, 0x100000)
	require.NoError(t, err)
	assert.Equal(t, pcie.Range{Start: 0xa0100000, End: 0xa0300000}, r2)
}

// 测试对齐：孔径起点不对齐时要先抬到对齐边界
func TestAllocAlignment(t *testing.T) {
	a := pcie.NewWindowAllocator(pcie.Range{Start: 0xa0080000, End: 0xa0400000})

	r, err := a.Alloc(0x100000, 0x100000)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xa0100000), r.Start)

	// 抬起来空出的头部还留在空闲表里
	free := a.FreeRanges()
	require.NotEmpty(t, free)
	assert.Equal(t, pcie.Range{Start: 0xa0080000, End: 0xa0100000}, free[0])
}

// 测试孔径耗尽报错
func TestAllocExhausted(t *testing.T) {
	a := pcie.NewWindowAllocator(pcie.Range{Start: 0xa0000000, End: 0xa0100000})

	_, err := a.Alloc(0x100000, 0x100000)
	require.NoError(t, err)

	_, err = a.Alloc(0x100000, 0x100000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "孔径耗尽")
}

// 测试零大小和零孔径的边界
func TestAllocDegenerate(t *testing.T) {
	a := pcie.NewWindowAllocator(pcie.Range{})
	_, err := a.Alloc(0x1000, 0x1000)
	assert.Error(t, err)

	a = pcie.NewWindowAllocator(pcie.Range{Start: 0x1000, End: 0x10000})
	_, err = a.Alloc(0, 0x1000)
	assert.Error(t, err)
}
