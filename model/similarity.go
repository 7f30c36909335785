package model

import (
	"math"
	"sort"

	"github.com/rushteam/recserve/dataset"
)

// CosineSimilarity 是基于交互矩阵行向量余弦相似度的用户相似模型（User-KNN）。
//
// 核心思想："行为相似的用户，喜欢相似的物品"
//
// 查询流程：
//  1. 取查询用户的交互行向量
//  2. 与全体用户行向量算余弦相似度
//  3. 返回 TopN（含自相似，score=1，由调用方决定是否剔除）
//
// 行向量与范数在构建时预计算，查询期只读，无锁并发安全。
type CosineSimilarity struct {
	matrix *dataset.Matrix
	norms  []float64
}

// NewCosineSimilarity 基于交互矩阵构建余弦相似度模型。
func NewCosineSimilarity(m *dataset.Matrix) *CosineSimilarity {
	s := &CosineSimilarity{
		matrix: m,
		norms:  make([]float64, m.Rows()),
	}
	for i := 0; i < m.Rows(); i++ {
		_, weights := m.Row(i)
		s.norms[i] = norm(weights)
	}
	return s
}

func (s *CosineSimilarity) Name() string { return "similarity.cosine" }

// Similar 返回与 queryIdx 最相似的 n 个用户下标，按相似度降序。
func (s *CosineSimilarity) Similar(queryIdx, n int) ([]int, []float64) {
	return topSimilar(queryIdx, n, s.matrix.Rows(), func(other int) float64 {
		return cosine(s.matrix, s.norms, queryIdx, other)
	})
}

// TFIDFSimilarity 是 TF-IDF 加权的用户相似模型：
// 热门物品（列）在相似度计算中被降权，冷门共同兴趣的贡献更大。
// 常作为 blending 的次级模型与未加权模型互补。
type TFIDFSimilarity struct {
	rows  []map[int]float64 // tf-idf 加权后的行向量
	norms []float64
}

// NewTFIDFSimilarity 基于交互矩阵构建 TF-IDF 加权相似度模型。
// idf(item) = log(用户数 / 交互过该物品的用户数)。
func NewTFIDFSimilarity(m *dataset.Matrix) *TFIDFSimilarity {
	// 列文档频率
	df := make([]int, m.Cols())
	for i := 0; i < m.Rows(); i++ {
		cols, _ := m.Row(i)
		for _, j := range cols {
			df[j]++
		}
	}
	idf := make([]float64, m.Cols())
	for j, d := range df {
		if d > 0 {
			idf[j] = math.Log(float64(m.Rows()) / float64(d))
		}
	}

	s := &TFIDFSimilarity{
		rows:  make([]map[int]float64, m.Rows()),
		norms: make([]float64, m.Rows()),
	}
	for i := 0; i < m.Rows(); i++ {
		cols, weights := m.Row(i)
		row := make(map[int]float64, len(cols))
		var sq float64
		for k, j := range cols {
			v := weights[k] * idf[j]
			row[j] = v
			sq += v * v
		}
		s.rows[i] = row
		s.norms[i] = math.Sqrt(sq)
	}
	return s
}

func (s *TFIDFSimilarity) Name() string { return "similarity.tfidf" }

// Similar 返回与 queryIdx 最相似的 n 个用户下标，按相似度降序。
func (s *TFIDFSimilarity) Similar(queryIdx, n int) ([]int, []float64) {
	if queryIdx < 0 || queryIdx >= len(s.rows) {
		return nil, nil
	}
	q := s.rows[queryIdx]
	qn := s.norms[queryIdx]
	return topSimilar(queryIdx, n, len(s.rows), func(other int) float64 {
		on := s.norms[other]
		if qn == 0 || on == 0 {
			return 0
		}
		var dot float64
		for j, v := range q {
			if w, ok := s.rows[other][j]; ok {
				dot += v * w
			}
		}
		return dot / (qn * on)
	})
}

// topSimilar 对全体候选打分并返回 TopN（降序，分数相同按下标稳定）。
func topSimilar(queryIdx, n, total int, score func(other int) float64) ([]int, []float64) {
	if queryIdx < 0 || queryIdx >= total || n <= 0 {
		return nil, nil
	}
	type scored struct {
		idx   int
		score float64
	}
	all := make([]scored, 0, total)
	for i := 0; i < total; i++ {
		all = append(all, scored{idx: i, score: score(i)})
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].score > all[b].score })
	if n < len(all) {
		all = all[:n]
	}

	indices := make([]int, len(all))
	scores := make([]float64, len(all))
	for i, s := range all {
		indices[i] = s.idx
		scores[i] = s.score
	}
	return indices, scores
}

func cosine(m *dataset.Matrix, norms []float64, a, b int) float64 {
	if norms[a] == 0 || norms[b] == 0 {
		return 0
	}
	aCols, aWeights := m.Row(a)
	bCols, bWeights := m.Row(b)

	// 两行都按列下标升序，归并求点积
	var dot float64
	i, j := 0, 0
	for i < len(aCols) && j < len(bCols) {
		switch {
		case aCols[i] == bCols[j]:
			dot += aWeights[i] * bWeights[j]
			i++
			j++
		case aCols[i] < bCols[j]:
			i++
		default:
			j++
		}
	}
	return dot / (norms[a] * norms[b])
}

func norm(v []float64) float64 {
	var sq float64
	for _, x := range v {
		sq += x * x
	}
	return math.Sqrt(sq)
}
