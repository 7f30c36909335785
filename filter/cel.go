package filter

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/recserve/dataset"
)

// ExprFilter 是基于 CEL (Common Expression Language) 的推荐结果过滤器。
// 表达式在启动时编译一次，请求期只做求值，线程安全。
//
// 表达式变量：
//   - item.id    物品 ID
//   - item.title 物品标题
//   - item.genre 物品主类型（无类型时为哨兵值）
//
// 示例：
//   - `item.genre != "horror"` → 过滤恐怖片
//   - `item.genre == "drama" || item.id < 10000` → 只保留剧情片或早期内容
type ExprFilter struct {
	expr string
	prg  cel.Program
}

// New 编译表达式并构建过滤器；表达式非法视为配置错误（启动失败）。
func New(expr string) (*ExprFilter, error) {
	env, err := cel.NewEnv(
		cel.Variable("item", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("filter: cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("filter: compile %q: %w", expr, issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("filter: program %q: %w", expr, err)
	}
	return &ExprFilter{expr: expr, prg: prg}, nil
}

// Expr 返回原始表达式（用于日志）。
func (f *ExprFilter) Expr() string { return f.expr }

// Keep 对单个物品求值，true 表示保留。
func (f *ExprFilter) Keep(item map[string]any) (bool, error) {
	out, _, err := f.prg.Eval(map[string]any{"item": item})
	if err != nil {
		return false, fmt.Errorf("filter: eval: %w", err)
	}
	keep, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter: expression %q is not boolean", f.expr)
	}
	return keep, nil
}

// Apply 过滤推荐列表，保持原序。求值出错的物品保留（fail-open），
// 过滤器故障不应让整条推荐链路瘫痪。
func (f *ExprFilter) Apply(items []int64, catalog *dataset.Catalog) []int64 {
	if f == nil || len(items) == 0 {
		return items
	}
	out := make([]int64, 0, len(items))
	for _, id := range items {
		title, _ := catalog.Title(id)
		keep, err := f.Keep(map[string]any{
			"id":    id,
			"title": title,
			"genre": catalog.Genre(id),
		})
		if err != nil || keep {
			out = append(out, id)
		}
	}
	return out
}
