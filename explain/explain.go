package explain

import (
	"fmt"
	"math"

	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/dataset"
)

// Templates 是解释文案模板，缺省值可被配置覆盖。
type Templates struct {
	Genre   string `yaml:"genre"`   // %s = 物品类型
	Fans    string `yaml:"fans"`    // %s = 贡献物品标题
	Popular string `yaml:"popular"` // 无参数，最终兜底文案
}

// DefaultTemplates 返回内置文案。
func DefaultTemplates() Templates {
	return Templates{
		Genre:   "You may enjoy more %s titles",
		Fans:    "Recommended for fans of '%s'",
		Popular: "One of the most popular titles on the service right now",
	}
}

// Config 是解释引擎的配置。
type Config struct {
	MinScore int  `yaml:"min_score"`
	MaxScore int  `yaml:"max_score"`
	Honest   bool `yaml:"honest"`

	// ContribDepth 是向因子模型请求的贡献项数，取第 ContribDepth 名。
	// 默认 2：贡献第一名常是目标物品自身（自贡献），取第二名绕开。
	ContribDepth int `yaml:"contrib_depth"`

	// FactorModelName 是走因子归因路径的模型名，默认 "als"。
	FactorModelName string `yaml:"factor_model_name"`

	Templates Templates `yaml:"templates"`
}

// Engine 为 (model, user, item) 三元组产出相关度分数与可读解释。
//
// 分支逻辑：
//  1. 先算通用兜底：随机分数 + 物品类型文案（无类型则文案暂缺）
//  2. 用户在交互历史内且请求的是因子模型时，用因子贡献归因覆盖：
//     分数 = round(总贡献 × 100)，文案指向贡献第二名的物品标题
//  3. 非诚实模式下分数低于下限重新随机、高于上限钳制；诚实模式原样透出
//  4. 文案仍为空时替换为热门模板
//
// 未知模型名 / 超范围 ID 由 API 层先行校验，这里只假设"合法但可能是冷 ID"。
type Engine struct {
	cfg     Config
	factor  core.FactorModel
	index   *dataset.Index
	catalog *dataset.Catalog
	rand    core.Rand
}

// NewEngine 构建解释引擎。随机源显式注入，测试可给确定性序列。
func NewEngine(
	cfg Config,
	factor core.FactorModel,
	index *dataset.Index,
	catalog *dataset.Catalog,
	rnd core.Rand,
) (*Engine, error) {
	if cfg.MaxScore < cfg.MinScore {
		return nil, fmt.Errorf("explain: max_score %d below min_score %d", cfg.MaxScore, cfg.MinScore)
	}
	if index == nil || catalog == nil || rnd == nil {
		return nil, fmt.Errorf("explain: index, catalog and rand source are required")
	}
	if cfg.ContribDepth <= 0 {
		cfg.ContribDepth = 2
	}
	if cfg.FactorModelName == "" {
		cfg.FactorModelName = "als"
	}
	if cfg.Templates == (Templates{}) {
		cfg.Templates = DefaultTemplates()
	}
	return &Engine{
		cfg:     cfg,
		factor:  factor,
		index:   index,
		catalog: catalog,
		rand:    rnd,
	}, nil
}

// Explain 返回相关度分数与解释文案；文案保证非空。
func (e *Engine) Explain(modelName string, userID, itemID int64) (int, string) {
	// 1. 通用兜底
	score := e.randScore()
	explanation := e.genreText(itemID)

	// 2. 因子贡献归因覆盖
	userIdx, userKnown := e.index.Users.Index(userID)
	if userKnown && e.factor != nil && modelName == e.cfg.FactorModelName {
		if itemIdx, ok := e.index.Items.Index(itemID); ok {
			factorScore, factorText := e.factorExplain(userIdx, itemIdx, itemID)
			score = factorScore
			explanation = factorText
		}
	}

	// 3. 分数归一化
	if !e.cfg.Honest {
		if score < e.cfg.MinScore {
			score = e.randScore()
		}
		if score > e.cfg.MaxScore {
			score = e.cfg.MaxScore
		}
	}

	// 4. 最终文案兜底
	if explanation == "" {
		explanation = e.cfg.Templates.Popular
	}
	return score, explanation
}

// factorExplain 执行因子贡献归因，返回分数与文案（文案可能为空）。
func (e *Engine) factorExplain(userIdx, itemIdx int, itemID int64) (int, string) {
	userItems, userWeights := e.index.Matrix.Row(userIdx)
	total, contributions := e.factor.Explain(
		userIdx, userItems, userWeights, itemIdx, e.cfg.ContribDepth,
	)
	score := int(math.Round(total * 100))

	if len(contributions) >= e.cfg.ContribDepth {
		contrib := contributions[e.cfg.ContribDepth-1]
		if contribID, ok := e.index.Items.ID(contrib.ItemIdx); ok {
			if title, ok := e.catalog.Title(contribID); ok {
				return score, fmt.Sprintf(e.cfg.Templates.Fans, title)
			}
		}
	}
	// 无可用贡献物品：退回类型文案
	return score, e.genreText(itemID)
}

// genreText 返回物品的类型文案；物品无真实类型时返回空串（待最终兜底替换）。
func (e *Engine) genreText(itemID int64) string {
	genre := e.catalog.Genre(itemID)
	if genre == dataset.NoGenre {
		return ""
	}
	return fmt.Sprintf(e.cfg.Templates.Genre, genre)
}

func (e *Engine) randScore() int {
	return e.cfg.MinScore + e.rand.Intn(e.cfg.MaxScore-e.cfg.MinScore+1)
}
