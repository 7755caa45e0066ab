package pcie

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"pcie_tool/pkg/toolutil/str"
)

// PrintTree 以 ASCII 树形结构打印各根总线下的设备
func PrintTree(w io.Writer, roots []*Bus) {
	// 按总线标识排序，保证输出稳定
	sort.Slice(roots, func(i, j int) bool {
		return roots[i].Identity.String() < roots[j].Identity.String()
	})

	for bi, bus := range roots {
		lastBus := bi == len(roots)-1
		conn, prefix := "+-", "│  "
		if lastBus {
			conn, prefix = "\\-", "   "
		}
		fmt.Fprintf(w, "%s[%s]\n", conn, bus.Identity)
		bus.SortDevices()
		for i, d := range bus.Devices {
			printDevice(w, d, prefix, i == len(bus.Devices)-1)
		}
	}
}

// printDevice 递归打印单个设备及其下游总线
func printDevice(w io.Writer, d *Device, prefix string, isLast bool) {
	conn := "+-"
	if isLast {
		conn = "\\-"
	}
	// 只打印地址后半部分（去掉域前缀）
	part := d.Address[strings.Index(d.Address, ":")+1:]
	kind := "EP"
	if d.IsBridge() {
		kind = "BR"
	}
	fmt.Fprintf(w, "%s%s %s [%s] %s/%s%s\n",
		prefix, conn, part, kind, d.VendorID, d.DeviceID, windowSummary(d))

	childPref := prefix
	if isLast {
		childPref += "   "
	} else {
		childPref += "│  "
	}
	if d.Subordinate == nil {
		return
	}
	d.Subordinate.SortDevices()
	for i, c := range d.Subordinate.Devices {
		printDevice(w, c, childPref, i == len(d.Subordinate.Devices)-1)
	}
}

// windowSummary 把非空窗口拼成一段简短描述，没有窗口时返回空串
func windowSummary(d *Device) string {
	var parts []string
	for _, win := range d.Windows {
		if win.Size() == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s 0x%08x+%s",
			win.Kind, win.Start, humanize.IBytes(win.Size())))
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, " ")
}

// PrintTable 以表格形式打印所有设备详细信息
func PrintTable(w io.Writer, roots []*Bus) {
	// 1. 扁平化收集所有设备
	devs := make(map[string]*Device)
	for _, bus := range roots {
		bus.Walk(func(d *Device) { devs[d.Address] = d })
	}

	// 2. 准备 tabwriter，按列对齐输出
	tw := tabwriter.NewWriter(w, 4, 0, 2, ' ', 0)
	headers := []string{
		"Device", "Parent", "Kind", "Bridge",
		"Vendor", "DeviceID", "Class", "MemWindow", "IOWindow",
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	// 3. 按地址排序所有设备
	var addrs []string
	for a := range devs {
		addrs = append(addrs, a)
	}
	sort.Strings(addrs)

	// 4. 输出每一行的数据
	for _, addr := range addrs {
		d := devs[addr]
		kind := "endpoint"
		bridge := "null"
		if d.IsBridge() {
			kind = "bridge"
			bridge = fmt.Sprintf("%02x-%02x-%02x",
				d.Bridge.Primary, d.Bridge.Secondary, d.Bridge.Subordinate)
		}
		row := []string{
			d.Address,
			str.DefaultStr(d.Parent, "null"),
			kind,
			bridge,
			str.DefaultStr(d.VendorID, "null"),
			str.DefaultStr(d.DeviceID, "null"),
			str.DefaultStr(d.Class, "null"),
			windowCell(d, WindowMemory),
			windowCell(d, WindowIO),
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

// windowCell 单个窗口列的内容，空窗口显示 "-"
func windowCell(d *Device, kind WindowKind) string {
	win := d.Window(kind)
	if win == nil || win.Size() == 0 {
		return "-"
	}
	return fmt.Sprintf("0x%08x-0x%08x", win.Start, win.End)
}
