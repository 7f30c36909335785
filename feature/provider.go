package feature

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rushteam/recserve/core"
)

// Provider 是排序特征的统一来源：用户特征行与物品特征行。
//
// 设计原则：
//   - 数据缺失不是错误：未知用户返回 ok=false，未知物品不出现在结果 map 里
//     （排序侧按 inner-join 语义直接丢弃这些候选）
//   - 实现可替换：本地 CSV 特征表（TableProvider）或 Feast 在线特征（FeastProvider）
type Provider interface {
	// UserRow 返回用户的静态特征行；用户不在特征表时 ok=false。
	UserRow(ctx context.Context, userID int64) (row map[string]float64, ok bool, err error)

	// ItemRows 批量返回物品特征行，缺失的物品不出现在结果里。
	ItemRows(ctx context.Context, itemIDs []int64) (map[int64]map[string]float64, error)
}

// TableProvider 是从本地 CSV 特征表加载的 Provider 实现。
// 启动时全量加载进内存，请求期只读。
type TableProvider struct {
	users map[int64]map[string]float64
	items map[int64]map[string]float64
}

// NewTableProvider 加载用户/物品特征表。
// 表首列必须是 user_id / item_id，其余列均按数值特征解析。
func NewTableProvider(usersPath, itemsPath string) (*TableProvider, error) {
	users, err := loadFeatureTable(usersPath, core.ColumnUser)
	if err != nil {
		return nil, fmt.Errorf("load user features: %w", err)
	}
	items, err := loadFeatureTable(itemsPath, core.ColumnItem)
	if err != nil {
		return nil, fmt.Errorf("load item features: %w", err)
	}
	return &TableProvider{users: users, items: items}, nil
}

// NewTableProviderFromRows 直接用内存表构建，主要用于测试。
func NewTableProviderFromRows(users, items map[int64]map[string]float64) *TableProvider {
	return &TableProvider{users: users, items: items}
}

func (p *TableProvider) UserRow(_ context.Context, userID int64) (map[string]float64, bool, error) {
	row, ok := p.users[userID]
	return row, ok, nil
}

func (p *TableProvider) ItemRows(_ context.Context, itemIDs []int64) (map[int64]map[string]float64, error) {
	result := make(map[int64]map[string]float64, len(itemIDs))
	for _, id := range itemIDs {
		if row, ok := p.items[id]; ok {
			result[id] = row
		}
	}
	return result, nil
}

func loadFeatureTable(path, idColumn string) (map[int64]map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idCol := -1
	for i, name := range header {
		if name == idColumn {
			idCol = i
			break
		}
	}
	if idCol < 0 {
		return nil, fmt.Errorf("column %q not found", idColumn)
	}

	table := make(map[int64]map[string]float64)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		id, err := strconv.ParseInt(row[idCol], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", idColumn, err)
		}
		features := make(map[string]float64, len(header)-1)
		for i, name := range header {
			if i == idCol {
				continue
			}
			v, err := strconv.ParseFloat(row[i], 64)
			if err != nil {
				return nil, fmt.Errorf("parse feature %s: %w", name, err)
			}
			features[name] = v
		}
		table[id] = features
	}
	return table, nil
}
