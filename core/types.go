package core

import "time"

// 交互/推荐表的固定列名，与离线产出的数据集对齐。
const (
	ColumnUser     = "user_id"
	ColumnItem     = "item_id"
	ColumnWeight   = "weight"
	ColumnDatetime = "datetime"
	ColumnScore    = "lfm_score"
	ColumnRank     = "rank"
)

// Interaction 是一条用户-物品交互记录，加载后不再修改。
type Interaction struct {
	UserID int64
	ItemID int64
	Weight float64
	At     time.Time
}

// Candidate 是上游候选生成阶段产出的一个候选物品，等待排序模型重排。
// Score 是候选生成模型（如 LightFM）的原始分数，Rank 是候选表内的名次。
type Candidate struct {
	ItemID int64   `json:"item_id"`
	Score  float64 `json:"lfm_score"`
	Rank   int     `json:"rank"`
}
