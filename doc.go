// Package recserve 是一个推荐服务（Recommendation Serving）。
//
// 设计要点：
// - 多策略调度: Pipeline Dispatcher 在 one_stage（近邻召回）与 two_stage（候选 + 排序）之间切换
// - 解释独立: Explain Engine 为 (model, user, item) 三元组产出相关度分数与可读解释
// - 启动即只读: 交互索引 / 模型 / 特征表在进程启动时加载一次，请求期共享只读，无锁并发
package recserve
