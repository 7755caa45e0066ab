package pcie

import (
	"fmt"

	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"pcie_tool/pkg/toolutil"
)

// RescanReport 一次重扫的结果汇总，写给 --json-file
type RescanReport struct {
	Target     BusIdentity
	State      RescanState
	Programmed []ProgrammedWindow
	Activated  map[string]string // 地址 → 驱动名
}

// JSON 逐字段组装带缩进的 JSON 文本
func (r *RescanReport) JSON() ([]byte, error) {
	out := []byte(`{}`)
	var err error
	set := func(path string, v any) {
		if err == nil {
			out, err = sjson.SetBytes(out, path, v)
		}
	}

	set("target", r.Target.String())
	set("state", r.State.String())
	set("window_count", len(r.Programmed))

	for i, w := range r.Programmed {
		p := fmt.Sprintf("windows.%d", i)
		set(p+".device", w.Address)
		set(p+".kind", w.Kind.String())
		set(p+".start", fmt.Sprintf("0x%08x", w.Start))
		set(p+".end", fmt.Sprintf("0x%08x", w.End))
		set(p+".base", fmt.Sprintf("0x%04x", w.Base))
		set(p+".limit", fmt.Sprintf("0x%04x", w.Limit))
	}

	// 地址里带 "."，不能当 sjson 路径用，所以激活表用数组输出
	for i, addr := range toolutil.SortedKeys(r.Activated) {
		p := fmt.Sprintf("activated.%d", i)
		set(p+".device", addr)
		set(p+".driver", r.Activated[addr])
	}

	if err != nil {
		return nil, err
	}
	return pretty.Pretty(out), nil
}
