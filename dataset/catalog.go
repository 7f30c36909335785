package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rushteam/recserve/core"
)

// NoGenre 是"无类型"哨兵值：物品没有真实类型时目录返回它，
// 解释引擎据此退回热门模板而不是产出空洞的类型文案。
const NoGenre = "unknown"

// Catalog 是物品目录：item_id → 标题 / 类型。启动时加载一次，只读。
type Catalog struct {
	titles map[int64]string
	genres map[int64]string
}

// Title 返回物品标题。
func (c *Catalog) Title(itemID int64) (string, bool) {
	t, ok := c.titles[itemID]
	return t, ok
}

// Genre 返回物品的主类型；物品未知或无类型时返回 NoGenre。
func (c *Catalog) Genre(itemID int64) string {
	if g, ok := c.genres[itemID]; ok && g != "" {
		return g
	}
	return NoGenre
}

// Len 返回目录内物品数。
func (c *Catalog) Len() int { return len(c.titles) }

// LoadCatalog 从 CSV 读取物品目录。
// 必需列：item_id, title；可选列：genres。
func LoadCatalog(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return ReadCatalog(f)
}

// ReadCatalog 从 reader 读取物品目录，首行为表头。
func ReadCatalog(r io.Reader) (*Catalog, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	col := headerIndex(header)
	itemCol, okI := col[core.ColumnItem]
	titleCol, okT := col["title"]
	if !okI || !okT {
		return nil, ErrMissingColumns
	}
	genresCol, hasGenres := col["genres"]

	c := &Catalog{
		titles: make(map[int64]string),
		genres: make(map[int64]string),
	}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		itemID, err := strconv.ParseInt(row[itemCol], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", core.ColumnItem, err)
		}
		c.titles[itemID] = row[titleCol]
		if hasGenres {
			c.genres[itemID] = row[genresCol]
		}
	}
	return c, nil
}

// NewCatalog 直接用内存表构建目录，主要用于测试。
func NewCatalog(titles, genres map[int64]string) *Catalog {
	if titles == nil {
		titles = make(map[int64]string)
	}
	if genres == nil {
		genres = make(map[int64]string)
	}
	return &Catalog{titles: titles, genres: genres}
}
