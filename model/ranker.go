package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/rushteam/recserve/core"
)

// LRRanker 实现了逐点排序的逻辑回归 (Logistic Regression) 模型。
// 它是推荐系统中点击率预估 (CTR) 最基础也最经典的算法。
//
// 预测原理：
// 1. 线性加权求和: z = Bias + sum(Weight_i * Feature_i)
// 2. Sigmoid 变换: P = 1 / (1 + exp(-z))
//
// 权重按位置对应特征列，Columns 记录训练时的列序，
// 调用方组装特征向量时必须使用完全相同的列序。
type LRRanker struct {
	Bias    float64   // 偏置项 (Bias / Intercept)
	Weights []float64 // 特征权重，按列序排列
	Columns []string  // 训练时的特征列序
}

// LoadLRRanker 从 JSON 工件加载排序模型。
func LoadLRRanker(path string) (*LRRanker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ranker model: %w", err)
	}
	var raw struct {
		Bias    float64   `json:"bias"`
		Weights []float64 `json:"weights"`
		Columns []string  `json:"columns"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ranker model: %w", err)
	}
	if len(raw.Weights) == 0 {
		return nil, core.NewDomainError(
			core.ModuleModel, core.ErrorCodeInvalidInput, "model: ranker weights are empty",
		)
	}
	if len(raw.Columns) > 0 && len(raw.Columns) != len(raw.Weights) {
		return nil, core.NewDomainError(
			core.ModuleModel, core.ErrorCodeInvalidInput, "model: ranker columns do not match weights",
		)
	}
	return &LRRanker{Bias: raw.Bias, Weights: raw.Weights, Columns: raw.Columns}, nil
}

func (m *LRRanker) Name() string { return "ranker.lr" }

// PredictProba 返回每行特征的正类概率，与输入一一对应。
func (m *LRRanker) PredictProba(rows [][]float64) []float64 {
	probs := make([]float64, len(rows))
	for i, row := range rows {
		z := m.Bias
		for k, x := range row {
			if k < len(m.Weights) {
				z += m.Weights[k] * x
			}
		}
		probs[i] = 1 / (1 + math.Exp(-z))
	}
	return probs
}
