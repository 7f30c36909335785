package feature

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeCSV(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestNewTableProvider(t *testing.T) {
	usersPath := writeCSV(t, "users.csv", "user_id,age,sex\n7,30,1\n8,25,0\n")
	itemsPath := writeCSV(t, "items.csv", "release_year,item_id\n2001,100\n1999,200\n")

	p, err := NewTableProvider(usersPath, itemsPath)
	if err != nil {
		t.Fatalf("NewTableProvider() error = %v", err)
	}
	ctx := context.Background()

	row, ok, err := p.UserRow(ctx, 7)
	if err != nil || !ok {
		t.Fatalf("UserRow(7) = %v, %v, %v", row, ok, err)
	}
	if !reflect.DeepEqual(row, map[string]float64{"age": 30, "sex": 1}) {
		t.Errorf("UserRow(7) = %v", row)
	}

	// ID 列不必是首列
	rows, err := p.ItemRows(ctx, []int64{100, 999})
	if err != nil {
		t.Fatalf("ItemRows() error = %v", err)
	}
	if !reflect.DeepEqual(rows[100], map[string]float64{"release_year": 2001}) {
		t.Errorf("ItemRows()[100] = %v", rows[100])
	}
	if _, present := rows[999]; present {
		t.Error("missing item should not appear in result")
	}
}

func TestTableProvider_UnknownUser(t *testing.T) {
	p := NewTableProviderFromRows(nil, nil)
	if _, ok, err := p.UserRow(context.Background(), 1); ok || err != nil {
		t.Errorf("UserRow on empty table: ok=%v err=%v, want false, nil", ok, err)
	}
}

func TestNewTableProvider_Invalid(t *testing.T) {
	good := writeCSV(t, "items.csv", "item_id,year\n1,2000\n")

	tests := []struct {
		name  string
		users string
	}{
		{name: "missing id column", users: writeCSV(t, "u1.csv", "uid,age\n7,30\n")},
		{name: "non numeric feature", users: writeCSV(t, "u2.csv", "user_id,age\n7,thirty\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTableProvider(tt.users, good); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
