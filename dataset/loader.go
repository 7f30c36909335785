package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rushteam/recserve/core"
)

// ErrMissingColumns 表示交互表缺少必需列（user_id / item_id）。
var ErrMissingColumns = core.NewDomainError(
	core.ModuleDataset, core.ErrorCodeInvalidInput, "dataset: required columns are missing",
)

// LoadInteractions 从 CSV 读取交互记录。
// 必需列：user_id, item_id；可选列：weight（缺省按 1.0）、datetime。
func LoadInteractions(path string) ([]core.Interaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open interactions: %w", err)
	}
	defer f.Close()
	return ReadInteractions(f)
}

// ReadInteractions 从 reader 读取交互记录，首行为表头。
func ReadInteractions(r io.Reader) ([]core.Interaction, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, ErrEmptyInteractions
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	col := headerIndex(header)
	userCol, okU := col[core.ColumnUser]
	itemCol, okI := col[core.ColumnItem]
	if !okU || !okI {
		return nil, ErrMissingColumns
	}
	weightCol, hasWeight := col[core.ColumnWeight]
	dtCol, hasDt := col[core.ColumnDatetime]

	var records []core.Interaction
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		userID, err := strconv.ParseInt(row[userCol], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", core.ColumnUser, err)
		}
		itemID, err := strconv.ParseInt(row[itemCol], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", core.ColumnItem, err)
		}

		rec := core.Interaction{UserID: userID, ItemID: itemID, Weight: 1.0}
		if hasWeight && row[weightCol] != "" {
			w, err := strconv.ParseFloat(row[weightCol], 64)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", core.ColumnWeight, err)
			}
			rec.Weight = w
		}
		if hasDt && row[dtCol] != "" {
			if at, err := parseDatetime(row[dtCol]); err == nil {
				rec.At = at
			}
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, ErrEmptyInteractions
	}
	return records, nil
}

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	return idx
}

func parseDatetime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if at, err := time.Parse(layout, s); err == nil {
			return at, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported datetime format: %q", s)
}
