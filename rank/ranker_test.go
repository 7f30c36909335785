package rank

import (
	"context"
	"reflect"
	"testing"

	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/feature"
)

// recordingRanker 记录调用次数与收到的特征行，按首列值作为概率返回。
type recordingRanker struct {
	calls int
	rows  [][]float64
}

func (r *recordingRanker) Name() string { return "ranker.recording" }

func (r *recordingRanker) PredictProba(rows [][]float64) []float64 {
	r.calls++
	r.rows = rows
	probs := make([]float64, len(rows))
	for i, row := range rows {
		probs[i] = row[0]
	}
	return probs
}

func testProvider() feature.Provider {
	return feature.NewTableProviderFromRows(
		map[int64]map[string]float64{
			7: {"age": 30, "sex": 1},
		},
		map[int64]map[string]float64{
			100: {"release_year": 2001},
			200: {"release_year": 1999},
		},
	)
}

func TestCandidateRanker_EmptyCandidates(t *testing.T) {
	ranker := &recordingRanker{}
	cr, err := NewCandidateRanker(ranker, testProvider(), []string{"age"})
	if err != nil {
		t.Fatalf("NewCandidateRanker() error = %v", err)
	}

	recs, err := cr.Recommend(context.Background(), 7, 5, nil)
	if err != nil || recs != nil {
		t.Errorf("Recommend(empty) = %v, %v, want nil, nil", recs, err)
	}
	if ranker.calls != 0 {
		t.Errorf("ranker called %d times on empty candidates, want 0", ranker.calls)
	}
}

func TestCandidateRanker_RanksByProbability(t *testing.T) {
	ranker := &recordingRanker{}
	// 首列 lfm_score 直接当概率：candidate 200 应排到前面
	cr, err := NewCandidateRanker(ranker, testProvider(), []string{core.ColumnScore, "age", "release_year"})
	if err != nil {
		t.Fatalf("NewCandidateRanker() error = %v", err)
	}

	recs, err := cr.Recommend(context.Background(), 7, 5, []core.Candidate{
		{ItemID: 100, Score: 0.2, Rank: 1},
		{ItemID: 200, Score: 0.8, Rank: 2},
	})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if !reflect.DeepEqual(recs, []int64{200, 100}) {
		t.Errorf("Recommend() = %v, want [200 100]", recs)
	}
	if ranker.calls != 1 {
		t.Errorf("ranker called %d times, want 1 (batch)", ranker.calls)
	}
}

func TestCandidateRanker_FeatureColumnOrder(t *testing.T) {
	ranker := &recordingRanker{}
	columns := []string{"age", "release_year", core.ColumnScore, core.ColumnRank, "sex"}
	cr, err := NewCandidateRanker(ranker, testProvider(), columns)
	if err != nil {
		t.Fatalf("NewCandidateRanker() error = %v", err)
	}

	if _, err := cr.Recommend(context.Background(), 7, 5, []core.Candidate{
		{ItemID: 100, Score: 0.5, Rank: 3},
	}); err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}

	want := []float64{30, 2001, 0.5, 3, 1}
	if !reflect.DeepEqual(ranker.rows[0], want) {
		t.Errorf("feature row = %v, want %v (exact column order)", ranker.rows[0], want)
	}
}

func TestCandidateRanker_InnerJoinDropsUnknownItems(t *testing.T) {
	ranker := &recordingRanker{}
	cr, err := NewCandidateRanker(ranker, testProvider(), []string{core.ColumnScore})
	if err != nil {
		t.Fatalf("NewCandidateRanker() error = %v", err)
	}

	recs, err := cr.Recommend(context.Background(), 7, 5, []core.Candidate{
		{ItemID: 100, Score: 0.4},
		{ItemID: 999, Score: 0.9}, // 特征表中不存在 → 静默丢弃
	})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if !reflect.DeepEqual(recs, []int64{100}) {
		t.Errorf("Recommend() = %v, want [100]", recs)
	}
}

func TestCandidateRanker_Truncates(t *testing.T) {
	ranker := &recordingRanker{}
	cr, err := NewCandidateRanker(ranker, testProvider(), []string{core.ColumnScore})
	if err != nil {
		t.Fatalf("NewCandidateRanker() error = %v", err)
	}

	recs, err := cr.Recommend(context.Background(), 7, 1, []core.Candidate{
		{ItemID: 100, Score: 0.4},
		{ItemID: 200, Score: 0.9},
	})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if !reflect.DeepEqual(recs, []int64{200}) {
		t.Errorf("Recommend() = %v, want [200]", recs)
	}
}

func TestCandidateRanker_UnknownUserFeatures(t *testing.T) {
	ranker := &recordingRanker{}
	cr, err := NewCandidateRanker(ranker, testProvider(), []string{core.ColumnScore})
	if err != nil {
		t.Fatalf("NewCandidateRanker() error = %v", err)
	}

	recs, err := cr.Recommend(context.Background(), 999, 5, []core.Candidate{{ItemID: 100}})
	if err != nil || recs != nil {
		t.Errorf("unknown user = %v, %v, want nil, nil", recs, err)
	}
	if ranker.calls != 0 {
		t.Errorf("ranker called %d times for unknown user, want 0", ranker.calls)
	}
}
