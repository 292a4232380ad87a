// Package society 实现多智能体协作: 一组带角色设定的成员围绕同一份链上
// 数据各自出分析, 再按层级或共识模式汇总成一份结论。
package society
