package bit

import "fmt"

type BitField struct {
	Name       string
	Start, Len byte
}

type FieldValue struct {
	BitField *BitField
	Value    uint64
}

func (f *BitField) Eval(val uint64) FieldValue {
	v := ExtractBits(val, f.Start, f.Len)
	return FieldValue{
		BitField: f, // 保留引用
		Value:    v,
	}
}

func (f *FieldValue) String() string {
	return f.BitField.Name + fmt.Sprintf("=0x%X [bits %d:%d]", f.Value, f.BitField.Start+f.BitField.Len-1, f.BitField.Start)
}

// 批量从多个字段提取值
//
//	fields := []*bit.BitField{
//	   {Name: "BaseClass", Start: 16, Len: 8},
//	   {Name: "SubClass",  Start: 8,  Len: 8},
//	   {Name: "ProgIF",    Start: 0,  Len: 8},
//	}
//
// reg := uint64(0x060400)
// values := bit.EvalAll(fields, reg)
//
//	for _, v := range values {
//	   fmt.Println(v)
//	}
//
// BaseClass=0x6 [bits 23:16]
// SubClass=0x4 [bits 15:8]
// ProgIF=0x0 [bits 7:0]
func EvalAll(fields []*BitField, val uint64) []FieldValue {
	var out []FieldValue
	for _, f := range fields {
		out = append(out, f.Eval(val))
	}
	return out
}

// 对齐的格式化输出
func FormatFieldValues(vals []FieldValue) string {
	maxNameLen := 0
	for _, v := range vals {
		if l := len(v.BitField.Name); l > maxNameLen {
			maxNameLen = l
		}
	}

	var out string
	for _, v := range vals {
		// 这里只是一个模板，需要%，所以要在前面打%转义
		format := fmt.Sprintf("%%-%ds = 0x%%-X [bits %%2d:%%d]\n", maxNameLen)
		out += fmt.Sprintf(format,
			v.BitField.Name,
			v.Value,
			v.BitField.Start+v.BitField.Len-1,
			v.BitField.Start,
		)
	}
	return out
}

// 转装字段的完整值
func PackFields(fields []FieldValue) uint64 {
	var out uint64
	for _, f := range fields {
		shifted := f.Value << f.BitField.Start
		out |= shifted
	}
	return out
}

// 寄存器描述符：名字 + 偏移 + 大小 + 字段表，用于诊断打印
type RegisterDescriptor struct {
	Name   string
	Offset uint32      // 配置空间 / MMIO 内的偏移
	Size   byte        // 寄存器大小（单位：byte）
	Fields []*BitField // 所有字段
	Doc    string      // 文档注释 / 描述（可选）
}

func (r *RegisterDescriptor) Eval(val uint64) []FieldValue {
	return EvalAll(r.Fields, val)
}

func (r *RegisterDescriptor) Format(val uint64) string {
	values := r.Eval(val)
	return FormatFieldValues(values)
}
