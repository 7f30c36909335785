package rank

import (
	"context"
	"fmt"
	"sort"

	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/feature"
)

// CandidateRanker 是两段式流水线的第二段：用逐点排序模型对候选重排。
//
// 特征组装规则（模型对列序敏感，Columns 必须与训练时完全一致）：
//  1. 用户静态特征按候选数广播（每个候选行带同一份用户特征）
//  2. 候选与物品特征表按 item_id inner-join，未知物品静默丢弃
//  3. 候选生成阶段的 lfm_score / rank 作为两列候选级特征并入
//  4. 按 Columns 的列序抽取成特征向量，缺失列按 0 填充
type CandidateRanker struct {
	Ranker   core.RankerModel
	Features feature.Provider
	Columns  []string // 模型要求的特征列，按训练时顺序
}

// NewCandidateRanker 构建候选排序器，依赖缺失视为启动期错误。
func NewCandidateRanker(ranker core.RankerModel, features feature.Provider, columns []string) (*CandidateRanker, error) {
	if ranker == nil {
		return nil, fmt.Errorf("rank: ranker model is required")
	}
	if features == nil {
		return nil, fmt.Errorf("rank: feature provider is required")
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("rank: feature columns are required")
	}
	return &CandidateRanker{Ranker: ranker, Features: features, Columns: columns}, nil
}

// Recommend 对候选打分并按正类概率降序返回物品 ID，截断到 k。
// 候选为空时直接返回空列表，不调用排序模型。
func (r *CandidateRanker) Recommend(
	ctx context.Context,
	userID int64,
	k int,
	candidates []core.Candidate,
) ([]int64, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	userRow, ok, err := r.Features.UserRow(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// 用户不在特征表：数据缺失，交给上层热门兜底
		return nil, nil
	}

	itemIDs := make([]int64, len(candidates))
	for i, c := range candidates {
		itemIDs[i] = c.ItemID
	}
	itemRows, err := r.Features.ItemRows(ctx, itemIDs)
	if err != nil {
		return nil, err
	}

	// inner-join：只保留物品特征表里存在的候选
	joined := make([]core.Candidate, 0, len(candidates))
	rows := make([][]float64, 0, len(candidates))
	for _, c := range candidates {
		itemRow, ok := itemRows[c.ItemID]
		if !ok {
			continue
		}
		rows = append(rows, r.featureVector(userRow, itemRow, c))
		joined = append(joined, c)
	}
	if len(joined) == 0 {
		return nil, nil
	}

	probs := r.Ranker.PredictProba(rows)

	order := make([]int, len(joined))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return probs[order[a]] > probs[order[b]]
	})

	recs := make([]int64, 0, len(order))
	for _, i := range order {
		recs = append(recs, joined[i].ItemID)
	}
	if len(recs) > k {
		recs = recs[:k]
	}
	return recs, nil
}

// featureVector 按配置列序拼接用户特征 / 物品特征 / 候选级特征。
func (r *CandidateRanker) featureVector(
	userRow, itemRow map[string]float64,
	c core.Candidate,
) []float64 {
	vec := make([]float64, len(r.Columns))
	for i, name := range r.Columns {
		switch name {
		case core.ColumnScore:
			vec[i] = c.Score
		case core.ColumnRank:
			vec[i] = float64(c.Rank)
		default:
			if v, ok := userRow[name]; ok {
				vec[i] = v
			} else if v, ok := itemRow[name]; ok {
				vec[i] = v
			}
		}
	}
	return vec
}
