package model

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/rushteam/recserve/core"
)

// ALSModel 是预训练的 ALS 隐因子模型（交替最小二乘，Alternating Least Squares）。
// 工件只包含训练产出的用户/物品隐向量，本服务不做任何训练。
//
// Explain 把 (user, item) 的预测分线性归因到用户历史物品上：
// 历史物品 j 的贡献 = weight_j × <F_j, F_target>，总分为各项贡献之和。
// 当目标物品本身在用户历史中时，贡献第一名通常就是它自己（自贡献），
// 因此解释方一般请求 TopN=2 并取第二名。
type ALSModel struct {
	UserFactors [][]float64
	ItemFactors [][]float64
}

// LoadALSModel 从 JSON 工件加载 ALS 模型。
func LoadALSModel(path string) (*ALSModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read als model: %w", err)
	}
	var raw struct {
		UserFactors [][]float64 `json:"user_factors"`
		ItemFactors [][]float64 `json:"item_factors"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse als model: %w", err)
	}
	if len(raw.UserFactors) == 0 || len(raw.ItemFactors) == 0 {
		return nil, core.NewDomainError(
			core.ModuleModel, core.ErrorCodeInvalidInput, "model: als factors are empty",
		)
	}
	return &ALSModel{UserFactors: raw.UserFactors, ItemFactors: raw.ItemFactors}, nil
}

func (m *ALSModel) Name() string { return "als" }

// Explain 实现 core.FactorModel。
// userItems/userWeights 是用户交互行（物品下标 + 权重），itemIdx 是目标物品下标。
func (m *ALSModel) Explain(
	userIdx int,
	userItems []int,
	userWeights []float64,
	itemIdx, n int,
) (float64, []core.Contribution) {
	if itemIdx < 0 || itemIdx >= len(m.ItemFactors) || len(userItems) == 0 {
		return 0, nil
	}
	target := m.ItemFactors[itemIdx]

	contributions := make([]core.Contribution, 0, len(userItems))
	var total float64
	for k, j := range userItems {
		if j < 0 || j >= len(m.ItemFactors) {
			continue
		}
		w := 1.0
		if k < len(userWeights) {
			w = userWeights[k]
		}
		score := w * dot(m.ItemFactors[j], target)
		total += score
		contributions = append(contributions, core.Contribution{ItemIdx: j, Score: score})
	}

	sort.SliceStable(contributions, func(a, b int) bool {
		return contributions[a].Score > contributions[b].Score
	})
	if n > 0 && n < len(contributions) {
		contributions = contributions[:n]
	}
	return total, contributions
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
