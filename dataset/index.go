package dataset

import (
	"github.com/rushteam/recserve/core"
)

// ErrEmptyInteractions 表示交互数据集为空，服务不允许在空数据集上启动。
var ErrEmptyInteractions = core.NewDomainError(
	core.ModuleDataset, core.ErrorCodeInvalidInput, "dataset: interactions are empty",
)

// IDMap 是外部 ID 与稠密下标之间的双射。
// 下标从 0 连续分配，分配顺序 = 首次出现顺序。
type IDMap struct {
	toIndex map[int64]int
	toID    []int64
}

// Index 返回外部 ID 对应的稠密下标。
func (m *IDMap) Index(id int64) (int, bool) {
	idx, ok := m.toIndex[id]
	return idx, ok
}

// ID 返回稠密下标对应的外部 ID。
func (m *IDMap) ID(idx int) (int64, bool) {
	if idx < 0 || idx >= len(m.toID) {
		return 0, false
	}
	return m.toID[idx], true
}

// Len 返回映射内的 ID 数量。
func (m *IDMap) Len() int { return len(m.toID) }

func (m *IDMap) add(id int64) int {
	if idx, ok := m.toIndex[id]; ok {
		return idx
	}
	idx := len(m.toID)
	m.toIndex[id] = idx
	m.toID = append(m.toID, id)
	return idx
}

func newIDMap() *IDMap {
	return &IDMap{toIndex: make(map[int64]int)}
}

// Index 是交互索引：用户/物品双向映射 + 稀疏交互矩阵。
// 启动时构建一次，之后跨请求只读共享。
type Index struct {
	Users  *IDMap
	Items  *IDMap
	Matrix *Matrix
}

// BuildIndex 从交互记录构建交互索引。
//
// - 映射按首次出现顺序分配下标
// - 重复的 (user, item) 对显式累加权重（而非 last-write-wins），便于审计
// - 权重未配置时默认按 1.0 计
//
// 交互为空时返回 ErrEmptyInteractions（启动失败，fail-fast）。
func BuildIndex(records []core.Interaction) (*Index, error) {
	if len(records) == 0 {
		return nil, ErrEmptyInteractions
	}

	users := newIDMap()
	items := newIDMap()
	for _, rec := range records {
		users.add(rec.UserID)
		items.add(rec.ItemID)
	}

	b := newMatrixBuilder(users.Len(), items.Len())
	for _, rec := range records {
		uIdx, ok := users.Index(rec.UserID)
		if !ok {
			// 映射由同一批记录构建，理论上不会缺失；防御性丢弃
			continue
		}
		iIdx, ok := items.Index(rec.ItemID)
		if !ok {
			continue
		}
		w := rec.Weight
		if w == 0 {
			w = 1.0
		}
		b.add(uIdx, iIdx, w)
	}

	return &Index{
		Users:  users,
		Items:  items,
		Matrix: b.build(),
	}, nil
}
