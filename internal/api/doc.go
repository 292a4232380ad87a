// Package api 对外暴露 REST 接口: 提交链上分析任务,
// 查询任务进度与统计, 以及直接调用 Web3 工具.
package api
