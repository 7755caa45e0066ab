package graph

import (
	"strings"

	"github.com/awalterschulze/gographviz"
)

// HasCycleDFS 遍历有向图并判断是否存在至少一个环路（即图中存在某个节点能沿边最终回到自己）
// 它使用深度优先搜索（DFS）结合递归栈，检测是否存在回到当前递归路径中的“祖先节点”
// 若发现环，将返回 true，并返回首次形成闭环的起点节点名称
func HasCycleDFS(graph *gographviz.Graph) (bool, string) {
	visited := make(map[string]bool)  // 标记是否访问过节点，避免重复访问
	recStack := make(map[string]bool) // 当前 DFS 路径中的节点（递归栈），用于判断回到祖先

	var dfs func(string) bool
	dfs = func(node string) bool {
		// 当前节点已在栈中，说明出现了回到祖先的“环”
		if recStack[node] {
			return true
		}
		// 已经访问过但不在栈中，说明这条路径处理过了，没有环
		if visited[node] {
			return false
		}
		visited[node] = true  // 标记当前节点已访问
		recStack[node] = true // 加入递归路径栈

		// 遍历当前节点出边
		for _, dst := range graph.Edges.SrcToDsts[node] {
			for _, edge := range dst {
				// 如果子节点递归中发现环，直接返回 true
				if dfs(edge.Dst) {
					return true
				}
			}
		}
		// 当前节点 DFS 完成，移出栈（不在当前路径）
		recStack[node] = false
		return false
	}

	// 遍历所有节点作为起点（图不一定是连通图）
	for _, node := range graph.Nodes.Nodes {
		if dfs(node.Name) {
			return true, node.Name // 找到环，返回结果和起点
		}
	}
	return false, "" // 无环
}

// FormatCycle 将一段环路径（如 [A, B, C, A]）格式化为可读字符串
// 输出样式如 "A → B → C → A"，方便在日志或测试输出中查看结构
func FormatCycle(path []string) string {
	return strings.Join(path, " → ")
}
