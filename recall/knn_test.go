package recall

import (
	"context"
	"reflect"
	"testing"

	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/dataset"
)

// fakeSimilarity 返回固定的邻居与分数。
type fakeSimilarity struct {
	indices []int
	scores  []float64
}

func (f *fakeSimilarity) Name() string { return "similarity.fake" }

func (f *fakeSimilarity) Similar(_, n int) ([]int, []float64) {
	if n > len(f.indices) {
		n = len(f.indices)
	}
	return f.indices[:n], f.scores[:n]
}

type fakeWatch map[int64][]int64

func (f fakeWatch) Watched(_ context.Context, userIDs []int64) (map[int64][]int64, error) {
	result := make(map[int64][]int64)
	for _, id := range userIDs {
		if items, ok := f[id]; ok {
			result[id] = items
		}
	}
	return result, nil
}

type fakeOffline map[int64][]int64

func (f fakeOffline) OfflineReco(_ context.Context, userID int64) ([]int64, error) {
	return f[userID], nil
}

// users 100/101/102 → 下标 0/1/2
func testUsers(t *testing.T) *dataset.IDMap {
	t.Helper()
	idx, err := dataset.BuildIndex([]core.Interaction{
		{UserID: 100, ItemID: 1},
		{UserID: 101, ItemID: 1},
		{UserID: 102, ItemID: 1},
	})
	if err != nil {
		t.Fatalf("BuildIndex() error = %v", err)
	}
	return idx.Users
}

func TestUserKNN_Offline(t *testing.T) {
	offline := fakeOffline{100: {1, 2, 3, 4, 5}}
	knn, err := NewUserKNN(KNNConfig{TypeReco: TypeOffline}, nil, nil, nil, offline, nil, nil)
	if err != nil {
		t.Fatalf("NewUserKNN() error = %v", err)
	}

	recs, err := knn.Recommend(context.Background(), 100, 3)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if !reflect.DeepEqual(recs, []int64{1, 2, 3}) {
		t.Errorf("Recommend() = %v, want [1 2 3] (truncated, not reordered)", recs)
	}

	// 离线表没有该用户 → 空列表
	recs, err = knn.Recommend(context.Background(), 999, 3)
	if err != nil || len(recs) != 0 {
		t.Errorf("unknown user = %v, %v, want empty", recs, err)
	}
}

func TestUserKNN_OnlineUnknownUser(t *testing.T) {
	knn, err := NewUserKNN(
		KNNConfig{TypeReco: TypeOnline},
		&fakeSimilarity{}, nil, testUsers(t), nil, fakeWatch{}, nil,
	)
	if err != nil {
		t.Fatalf("NewUserKNN() error = %v", err)
	}
	recs, err := knn.Recommend(context.Background(), 999, 5)
	if err != nil || recs != nil {
		t.Errorf("unmapped user = %v, %v, want nil, nil", recs, err)
	}
}

func TestUserKNN_OnlineBMPExcludesSelf(t *testing.T) {
	sim := &fakeSimilarity{indices: []int{0, 1, 2}, scores: []float64{1, 0.8, 0.5}}
	watched := fakeWatch{
		101: {1, 2, 3},
		102: {3, 4},
	}
	knn, err := NewUserKNN(
		KNNConfig{TypeReco: TypeOnline, BMP: true},
		sim, nil, testUsers(t), nil, watched, nil,
	)
	if err != nil {
		t.Fatalf("NewUserKNN() error = %v", err)
	}

	recs, err := knn.Recommend(context.Background(), 100, 3)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	// 自身(下标 0)被剔除；邻居序收集 + 首次出现去重 → [1 2 3 4]，截断到 3
	if !reflect.DeepEqual(recs, []int64{1, 2, 3}) {
		t.Errorf("Recommend() = %v, want [1 2 3]", recs)
	}
}

func TestUserKNN_OnlineSubZeroTrim(t *testing.T) {
	sim := &fakeSimilarity{indices: []int{1, 2, 0}, scores: []float64{-0.2, 0.9, 0.1}}
	watched := fakeWatch{
		100: {9},
		101: {1},
		102: {2, 3},
	}
	knn, err := NewUserKNN(
		KNNConfig{TypeReco: TypeOnline, BMP: false},
		sim, nil, testUsers(t), nil, watched, nil,
	)
	if err != nil {
		t.Fatalf("NewUserKNN() error = %v", err)
	}

	recs, err := knn.Recommend(context.Background(), 100, 5)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	// 一个负分 → 头部裁剪 1 个邻居，剩 [2 0] → 用户 102, 100 → [2 3 9]
	if !reflect.DeepEqual(recs, []int64{2, 3, 9}) {
		t.Errorf("Recommend() = %v, want [2 3 9]", recs)
	}
}

func TestUserKNN_Blending(t *testing.T) {
	blend := &fakeSimilarity{indices: []int{0, 1, 2}, scores: []float64{0.9, 0.5, -0.1}}
	watched := fakeWatch{
		100: {8},
		101: {5, 6},
		102: {7},
	}
	importance := []int64{7, 9, 5, 6, 8}
	knn, err := NewUserKNN(
		KNNConfig{TypeReco: TypeOnline, Blending: true},
		nil, blend, testUsers(t), nil, watched, importance,
	)
	if err != nil {
		t.Fatalf("NewUserKNN() error = %v", err)
	}

	recs, err := knn.Recommend(context.Background(), 100, 2)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	// 相似查询按 k=2 取前两个邻居 [0 1]（分数 0.9/0.5，无负分）
	// bmp=false: 邻居 [0 1] → 观影 {8 5 6}
	// bmp=true:  剔除自身 → 邻居 [1] → 观影 {5 6}
	// 并集 {5 6 8} 按重要度序 [5 6 8]，截断到 2
	if !reflect.DeepEqual(recs, []int64{5, 6}) {
		t.Errorf("Recommend() = %v, want [5 6]", recs)
	}

	// 输出永远是并集的子集且 ≤ k
	union := map[int64]bool{5: true, 6: true, 8: true}
	for _, item := range recs {
		if !union[item] {
			t.Errorf("item %d not in union of sub-model outputs", item)
		}
	}
	if len(recs) > 2 {
		t.Errorf("len(recs) = %d exceeds k", len(recs))
	}
}

func TestNewUserKNN_MissingArtifacts(t *testing.T) {
	tests := []struct {
		name string
		cfg  KNNConfig
	}{
		{name: "offline without table", cfg: KNNConfig{TypeReco: TypeOffline}},
		{name: "online without model", cfg: KNNConfig{TypeReco: TypeOnline}},
		{name: "unknown mode", cfg: KNNConfig{TypeReco: "nearline"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewUserKNN(tt.cfg, nil, nil, nil, nil, nil, nil); err == nil {
				t.Error("expected construction error, got nil")
			}
		})
	}
}
