package model

import (
	"testing"

	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/dataset"
)

func buildMatrix(t *testing.T, records []core.Interaction) *dataset.Index {
	t.Helper()
	idx, err := dataset.BuildIndex(records)
	if err != nil {
		t.Fatalf("BuildIndex() error = %v", err)
	}
	return idx
}

func TestCosineSimilarity_SelfFirst(t *testing.T) {
	idx := buildMatrix(t, []core.Interaction{
		{UserID: 1, ItemID: 10}, {UserID: 1, ItemID: 20},
		{UserID: 2, ItemID: 10}, {UserID: 2, ItemID: 20}, // 与 user 1 完全同向
		{UserID: 3, ItemID: 30}, // 与 user 1 正交
	})
	sim := NewCosineSimilarity(idx.Matrix)

	indices, scores := sim.Similar(0, 3)
	if len(indices) != 3 {
		t.Fatalf("len(indices) = %d, want 3", len(indices))
	}
	// 自相似分数 1.0 排第一
	if indices[0] != 0 || scores[0] < 0.999 {
		t.Errorf("top = idx %d score %v, want self with score 1", indices[0], scores[0])
	}
	// 同向用户排在正交用户之前
	if indices[1] != 1 {
		t.Errorf("second = idx %d, want 1 (identical history)", indices[1])
	}
	if scores[2] != 0 {
		t.Errorf("orthogonal score = %v, want 0", scores[2])
	}
}

func TestCosineSimilarity_TopNTruncates(t *testing.T) {
	idx := buildMatrix(t, []core.Interaction{
		{UserID: 1, ItemID: 10},
		{UserID: 2, ItemID: 10},
		{UserID: 3, ItemID: 10},
	})
	sim := NewCosineSimilarity(idx.Matrix)
	indices, _ := sim.Similar(0, 2)
	if len(indices) != 2 {
		t.Errorf("len(indices) = %d, want 2", len(indices))
	}
}

func TestTFIDFSimilarity_DownweightsPopularItems(t *testing.T) {
	// item 10 人人都看（idf=0），item 20/30 是冷门共同兴趣
	idx := buildMatrix(t, []core.Interaction{
		{UserID: 1, ItemID: 10}, {UserID: 1, ItemID: 20},
		{UserID: 2, ItemID: 10}, {UserID: 2, ItemID: 20},
		{UserID: 3, ItemID: 10}, {UserID: 3, ItemID: 30},
		{UserID: 4, ItemID: 10},
	})
	sim := NewTFIDFSimilarity(idx.Matrix)

	indices, scores := sim.Similar(0, 4)
	if indices[0] != 0 {
		t.Fatalf("top = idx %d, want self", indices[0])
	}
	// user 2 与 user 1 共享冷门 item 20，应排在只共享热门 item 10 的用户之前
	if indices[1] != 1 {
		t.Errorf("second = idx %d, want 1 (shared niche item)", indices[1])
	}
	// user 4 只有零 idf 的热门物品，相似度应为 0
	last := scores[len(scores)-1]
	if last != 0 {
		t.Errorf("popular-only similarity = %v, want 0", last)
	}
}

func TestSimilarity_InvalidQuery(t *testing.T) {
	idx := buildMatrix(t, []core.Interaction{{UserID: 1, ItemID: 10}})
	sim := NewCosineSimilarity(idx.Matrix)
	if indices, _ := sim.Similar(-1, 5); indices != nil {
		t.Errorf("Similar(-1) = %v, want nil", indices)
	}
	if indices, _ := sim.Similar(10, 5); indices != nil {
		t.Errorf("Similar(out of range) = %v, want nil", indices)
	}
}
