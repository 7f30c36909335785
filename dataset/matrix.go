package dataset

import "sort"

// Matrix 是 CSR 格式的稀疏用户-物品权重矩阵：
// 行 = 用户下标，列 = 物品下标，值 = 累加后的交互权重。
// 构建完成后只读，可跨请求无锁共享。
type Matrix struct {
	rows, cols int
	indptr     []int
	indices    []int
	data       []float64
}

// Rows 返回行数（用户数）。
func (m *Matrix) Rows() int { return m.rows }

// Cols 返回列数（物品数）。
func (m *Matrix) Cols() int { return m.cols }

// NNZ 返回非零元素个数。
func (m *Matrix) NNZ() int { return len(m.data) }

// Row 返回第 i 行的列下标与权重（按列下标升序）。
// 返回的切片是内部存储的视图，调用方不得修改。
func (m *Matrix) Row(i int) (cols []int, weights []float64) {
	if i < 0 || i >= m.rows {
		return nil, nil
	}
	start, end := m.indptr[i], m.indptr[i+1]
	return m.indices[start:end], m.data[start:end]
}

// At 返回 (i, j) 处的权重，不存在时为 0。
func (m *Matrix) At(i, j int) float64 {
	cols, weights := m.Row(i)
	for k, c := range cols {
		if c == j {
			return weights[k]
		}
	}
	return 0
}

// matrixBuilder 按行累加三元组，build 时压缩成 CSR。
type matrixBuilder struct {
	rows, cols int
	cells      []map[int]float64
}

func newMatrixBuilder(rows, cols int) *matrixBuilder {
	return &matrixBuilder{
		rows:  rows,
		cols:  cols,
		cells: make([]map[int]float64, rows),
	}
}

func (b *matrixBuilder) add(i, j int, w float64) {
	if i < 0 || i >= b.rows || j < 0 || j >= b.cols {
		return
	}
	if b.cells[i] == nil {
		b.cells[i] = make(map[int]float64)
	}
	// 重复 (user, item) 显式求和
	b.cells[i][j] += w
}

func (b *matrixBuilder) build() *Matrix {
	m := &Matrix{
		rows:   b.rows,
		cols:   b.cols,
		indptr: make([]int, b.rows+1),
	}
	for i, row := range b.cells {
		cols := make([]int, 0, len(row))
		for j := range row {
			cols = append(cols, j)
		}
		sort.Ints(cols)
		for _, j := range cols {
			m.indices = append(m.indices, j)
			m.data = append(m.data, row[j])
		}
		m.indptr[i+1] = len(m.indices)
	}
	return m
}
