package core

import "context"

// Recommender 是推荐能力的统一接口：所有一段式/两段式策略最终都收敛到它。
// 返回按相关度排序的物品 ID 列表，长度不超过 k。
// 用户不存在等数据缺失场景返回空列表而非错误，由上层用热门兜底补齐。
type Recommender interface {
	Recommend(ctx context.Context, userID int64, k int) ([]int64, error)
}

// SimilarityModel 是相似度模型的领域接口（预训练工件，进程启动时加载）。
//
// 设计原则：
//   - 定义在领域层（core），由 model 包实现
//   - 查询与返回都使用稠密下标（由 dataset.IDMap 负责与外部 ID 互转）
type SimilarityModel interface {
	// Name 返回模型名称（用于日志/观测）
	Name() string

	// Similar 返回与 queryIdx 最相似的 n 个下标及其相似度分数，按相似度降序。
	// 返回结果可能包含 queryIdx 本身（自相似），由调用方决定是否剔除。
	Similar(queryIdx, n int) (indices []int, scores []float64)
}

// Contribution 是因子贡献分解中的一项：用户历史中的某个物品对预测分的贡献。
type Contribution struct {
	ItemIdx int
	Score   float64
}

// FactorModel 是可归因的隐因子模型接口（如 ALS）。
// Explain 将 (userIdx, itemIdx) 的预测分拆解到用户历史物品上，
// 返回总分与按贡献降序的前 n 项。
// 注意：当目标物品本身在用户历史中时，贡献第一名往往就是它自己，
// 调用方通常请求 n=2 并取第二名。
type FactorModel interface {
	Name() string

	Explain(userIdx int, userItems []int, userWeights []float64, itemIdx, n int) (total float64, contributions []Contribution)
}

// RankerModel 是逐点排序模型接口。
// PredictProba 对每一行特征向量返回正类概率，与输入一一对应。
// 特征列的顺序由调用方保证与训练时一致（模型对列序敏感）。
type RankerModel interface {
	Name() string

	PredictProba(rows [][]float64) []float64
}

// Rand 是随机数来源的抽象，生产环境用 math/rand，测试注入确定性序列。
type Rand interface {
	// Intn 返回 [0, n) 内的随机整数
	Intn(n int) int
}
