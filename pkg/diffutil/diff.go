package diffutil

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffLine 并排对比的一行
// Mark: "|" 两边相同 "-" 只在左边 "+" 只在右边 "~" 两边都有但内容变了
type DiffLine struct {
	Left  string
	Right string
	Mark  string
}

// CompareMultiline 按行对比两段多行文本
// 拓扑树一重扫就会长出新设备行，删除-插入相邻时按"修改"配对展示
func CompareMultiline(before, after string) []DiffLine {
	dmp := diffmatchpatch.New()
	text1, text2, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(text1, text2, false)
	dmp.DiffCleanupSemantic(diffs)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var result []DiffLine
	i := 0
	for i < len(diffs) {
		d := diffs[i]

		// 删除紧跟插入：两边逐行配对成"修改"
		if d.Type == diffmatchpatch.DiffDelete &&
			i+1 < len(diffs) &&
			diffs[i+1].Type == diffmatchpatch.DiffInsert {

			delLines := strings.Split(d.Text, "\n")
			insLines := strings.Split(diffs[i+1].Text, "\n")

			for j := 0; j < max(len(delLines), len(insLines)); j++ {
				l, r := "", ""
				if j < len(delLines) {
					l = delLines[j]
				}
				if j < len(insLines) {
					r = insLines[j]
				}
				if l == "" && r == "" {
					continue
				}
				result = append(result, DiffLine{Left: l, Right: r, Mark: "~"})
			}
			i += 2
			continue
		}

		for _, line := range strings.Split(d.Text, "\n") {
			if line == "" {
				continue
			}
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				result = append(result, DiffLine{Left: line, Right: line, Mark: "|"})
			case diffmatchpatch.DiffDelete:
				result = append(result, DiffLine{Left: line, Mark: "-"})
			case diffmatchpatch.DiffInsert:
				result = append(result, DiffLine{Right: line, Mark: "+"})
			}
		}
		i++
	}
	return result
}

// Changed 有多少行不一样；0 表示两边完全相同
func Changed(diff []DiffLine) int {
	n := 0
	for _, d := range diff {
		if d.Mark != "|" {
			n++
		}
	}
	return n
}
