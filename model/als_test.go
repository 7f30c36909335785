package model

import (
	"math"
	"testing"
)

func TestALSModel_Explain(t *testing.T) {
	// 物品 0 与物品 2 同向，物品 1 与两者正交
	m := &ALSModel{
		UserFactors: [][]float64{{1, 0}},
		ItemFactors: [][]float64{
			{1, 0}, // item 0
			{0, 1}, // item 1
			{1, 0}, // item 2 (目标)
		},
	}

	// 用户历史 = {目标物品自身(权重 3), 物品 0(权重 1), 物品 1(权重 1)}
	userItems := []int{2, 0, 1}
	userWeights := []float64{3, 1, 1}

	total, contributions := m.Explain(0, userItems, userWeights, 2, 2)

	// total = 3*<F2,F2> + 1*<F0,F2> + 1*<F1,F2> = 3 + 1 + 0 = 4
	if math.Abs(total-4) > 1e-9 {
		t.Errorf("total = %v, want 4", total)
	}
	if len(contributions) != 2 {
		t.Fatalf("len(contributions) = %d, want 2", len(contributions))
	}
	// 自贡献排第一（上游已知怪癖），第二名才是真正的解释对象
	if contributions[0].ItemIdx != 2 {
		t.Errorf("top contribution = item %d, want 2 (self)", contributions[0].ItemIdx)
	}
	if contributions[1].ItemIdx != 0 {
		t.Errorf("second contribution = item %d, want 0", contributions[1].ItemIdx)
	}
}

func TestALSModel_ExplainEdgeCases(t *testing.T) {
	m := &ALSModel{
		UserFactors: [][]float64{{1}},
		ItemFactors: [][]float64{{1}, {2}},
	}

	if total, contribs := m.Explain(0, nil, nil, 0, 2); total != 0 || contribs != nil {
		t.Errorf("empty history: total = %v, contribs = %v, want 0, nil", total, contribs)
	}
	if total, contribs := m.Explain(0, []int{0}, []float64{1}, 99, 2); total != 0 || contribs != nil {
		t.Errorf("item out of range: total = %v, contribs = %v, want 0, nil", total, contribs)
	}
}

func TestLRRanker_PredictProba(t *testing.T) {
	m := &LRRanker{Bias: 0, Weights: []float64{1, -1}}

	probs := m.PredictProba([][]float64{
		{0, 0},  // z=0 → 0.5
		{5, 0},  // 强正信号
		{0, 5},  // 强负信号
	})
	if len(probs) != 3 {
		t.Fatalf("len(probs) = %d, want 3", len(probs))
	}
	if math.Abs(probs[0]-0.5) > 1e-9 {
		t.Errorf("probs[0] = %v, want 0.5", probs[0])
	}
	if probs[1] <= probs[0] || probs[2] >= probs[0] {
		t.Errorf("ordering broken: %v", probs)
	}
	for i, p := range probs {
		if p < 0 || p > 1 {
			t.Errorf("probs[%d] = %v out of [0,1]", i, p)
		}
	}
}
