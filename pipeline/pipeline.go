package pipeline

import (
	"context"
	"fmt"

	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/rank"
)

// Mode 是流水线策略的封闭集合，配置解析后用 switch 分发，
// 避免运行期字符串 key 查找失败。
type Mode string

const (
	// ModeOneStage 一段式：直接委托给单个推荐器（近邻召回）
	ModeOneStage Mode = "one_stage"
	// ModeTwoStage 两段式：候选生成 + 排序模型重排
	ModeTwoStage Mode = "two_stage"
	// ModeNone 未配置任何流水线，所有请求返回空列表
	ModeNone Mode = ""
)

// ParseMode 校验配置字符串并转成 Mode。
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeOneStage, ModeTwoStage, ModeNone:
		return Mode(s), nil
	default:
		return ModeNone, fmt.Errorf("pipeline: unknown mode %q", s)
	}
}

// CandidateSource 提供按用户的候选三元组（store.Artifacts 实现）。
// 冷用户返回空切片而非错误。
type CandidateSource interface {
	Candidates(ctx context.Context, userID int64) ([]core.Candidate, error)
}

// Dispatcher 按配置的策略把推荐请求路由到对应的推荐器。
// 输出不做热门兜底，由调用方（API 层）统一补齐。
type Dispatcher struct {
	mode       Mode
	oneStage   core.Recommender
	candidates CandidateSource
	ranker     *rank.CandidateRanker
}

// NewDispatcher 构建调度器；所选模式的依赖缺失视为配置错误（启动失败）。
func NewDispatcher(
	mode Mode,
	oneStage core.Recommender,
	candidates CandidateSource,
	ranker *rank.CandidateRanker,
) (*Dispatcher, error) {
	switch mode {
	case ModeOneStage:
		if oneStage == nil {
			return nil, fmt.Errorf("pipeline: one_stage mode requires a recommender")
		}
	case ModeTwoStage:
		if candidates == nil || ranker == nil {
			return nil, fmt.Errorf("pipeline: two_stage mode requires candidates and a ranker")
		}
	case ModeNone:
		// 显式的"未配置流水线"状态
	default:
		return nil, fmt.Errorf("pipeline: unknown mode %q", mode)
	}
	return &Dispatcher{
		mode:       mode,
		oneStage:   oneStage,
		candidates: candidates,
		ranker:     ranker,
	}, nil
}

// Mode 返回当前流水线策略。
func (d *Dispatcher) Mode() Mode { return d.mode }

// Recommend 实现 core.Recommender。
func (d *Dispatcher) Recommend(ctx context.Context, userID int64, k int) ([]int64, error) {
	switch d.mode {
	case ModeOneStage:
		return d.oneStage.Recommend(ctx, userID, k)

	case ModeTwoStage:
		candidates, err := d.candidates.Candidates(ctx, userID)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			// 无候选直接返回，不调用排序模型
			return nil, nil
		}
		return d.ranker.Recommend(ctx, userID, k, candidates)

	default:
		return nil, nil
	}
}
