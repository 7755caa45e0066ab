package diffutil

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// FormatSideBySide 左右并排渲染，默认列头 Before/After
func FormatSideBySide(diff []DiffLine) string {
	return FormatSideBySideTitled(diff, "* Before", "* After")
}

// FormatSideBySideTitled 指定两列的标题
//
// 对齐要点：
//   - len(s) 是字节宽度，utf8.RuneCountInString(s) 是字符数
//   - runewidth.StringWidth(s) 是终端显示宽度（汉字占 2 格）
//   - fmt 的 %-*s 按字符数补齐，所以补齐宽度要加上
//     (最大显示宽度 - 当前行显示宽度) 的差值
func FormatSideBySideTitled(diff []DiffLine, leftTitle, rightTitle string) string {
	// 模糊宽度字符按 1 格算
	runewidth.DefaultCondition.EastAsianWidth = false

	maxDisplay := runewidth.StringWidth(leftTitle)
	for _, d := range diff {
		if w := runewidth.StringWidth(d.Left); w > maxDisplay {
			maxDisplay = w
		}
	}

	pad := func(s string) int {
		return utf8.RuneCountInString(s) + maxDisplay - runewidth.StringWidth(s)
	}

	var out []string
	header := fmt.Sprintf("%-*s  %s  %s", pad(leftTitle), leftTitle, " ", rightTitle)
	out = append(out, header)
	out = append(out, strings.Repeat("-", runewidth.StringWidth(header)))

	for _, d := range diff {
		out = append(out, fmt.Sprintf(
			"%-*s  %s  %s", pad(d.Left), d.Left, d.Mark, d.Right))
	}

	return strings.Join(out, "\n")
}
