package recall

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/dataset"
)

// TypeReco 表示近邻推荐的工作模式。
type TypeReco string

const (
	// TypeOffline 从离线预计算推荐表直接查表
	TypeOffline TypeReco = "offline"
	// TypeOnline 在线查询相似度模型
	TypeOnline TypeReco = "online"
)

// OfflineSource 提供按用户的离线预计算推荐表（store.Artifacts 实现）。
type OfflineSource interface {
	OfflineReco(ctx context.Context, userID int64) ([]int64, error)
}

// WatchSource 批量提供用户的观影历史（store.Artifacts 实现）。
type WatchSource interface {
	Watched(ctx context.Context, userIDs []int64) (map[int64][]int64, error)
}

// KNNConfig 声明 UserKNN 的工作模式。
type KNNConfig struct {
	TypeReco TypeReco `yaml:"type_reco"` // offline / online
	Blending bool     `yaml:"blending"`  // online 下是否启用双信号混合
	BMP      bool     `yaml:"bmp"`       // online 单模型下的邻居处理子模式
}

// UserKNN 是近邻推荐器：离线查表、在线相似用户召回、或双信号混合。
//
// 在线召回流程：
//  1. user_id → 矩阵下标（未映射的冷用户直接返回空，由上层热门兜底）
//  2. 相似度模型取 TopN 邻居
//  3. bmp=true 剔除查询用户自身；bmp=false 按低于 0 分的邻居数从头部裁剪
//  4. 按邻居顺序收集观影历史，首次出现去重，截断到 k
//
// 混合模式对共享的次级模型分别以 bmp=false / bmp=true 各跑一次（不截断），
// 取并集后按外部全局重要度排序（逆文档频率序）截断到 k。
type UserKNN struct {
	cfg        KNNConfig
	model      core.SimilarityModel
	blendModel core.SimilarityModel
	users      *dataset.IDMap
	offline    OfflineSource
	watched    WatchSource
	importance []int64
}

// NewUserKNN 构建近邻推荐器。当前模式需要的工件缺失时返回错误：
// 工件缺失属于启动期致命错误，进程不应继续提供服务。
func NewUserKNN(
	cfg KNNConfig,
	model, blendModel core.SimilarityModel,
	users *dataset.IDMap,
	offline OfflineSource,
	watched WatchSource,
	importance []int64,
) (*UserKNN, error) {
	switch cfg.TypeReco {
	case TypeOffline:
		if offline == nil {
			return nil, fmt.Errorf("knn: offline mode requires a precomputed reco source")
		}
	case TypeOnline:
		if users == nil || watched == nil {
			return nil, fmt.Errorf("knn: online mode requires users mapping and watch history")
		}
		if cfg.Blending {
			if blendModel == nil {
				return nil, fmt.Errorf("knn: blending requires a secondary similarity model")
			}
			if len(importance) == 0 {
				return nil, fmt.Errorf("knn: blending requires the item importance ordering")
			}
		} else if model == nil {
			return nil, fmt.Errorf("knn: online mode requires a similarity model")
		}
	default:
		return nil, fmt.Errorf("knn: unknown type_reco %q", cfg.TypeReco)
	}

	return &UserKNN{
		cfg:        cfg,
		model:      model,
		blendModel: blendModel,
		users:      users,
		offline:    offline,
		watched:    watched,
		importance: importance,
	}, nil
}

// Recommend 实现 core.Recommender。
func (r *UserKNN) Recommend(ctx context.Context, userID int64, k int) ([]int64, error) {
	if r.cfg.TypeReco == TypeOffline {
		return r.offlineReco(ctx, userID, k)
	}
	if r.cfg.Blending {
		return r.blendingReco(ctx, userID, k)
	}
	return r.onlineReco(ctx, userID, k, r.model, r.cfg.BMP, false)
}

// offlineReco 查离线预计算表，保持离线排序，只截断不重排。
func (r *UserKNN) offlineReco(ctx context.Context, userID int64, k int) ([]int64, error) {
	recs, err := r.offline.OfflineReco(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(recs) > k {
		recs = recs[:k]
	}
	return recs, nil
}

// onlineReco 执行单模型在线召回。uncapped=true 时不截断（供混合模式合并后再截断）。
func (r *UserKNN) onlineReco(
	ctx context.Context,
	userID int64,
	k int,
	model core.SimilarityModel,
	bmp bool,
	uncapped bool,
) ([]int64, error) {
	queryIdx, ok := r.users.Index(userID)
	if !ok {
		return nil, nil
	}

	neighborIdx, scores := model.Similar(queryIdx, k)

	if bmp {
		// 剔除查询用户自身
		kept := neighborIdx[:0:0]
		for _, idx := range neighborIdx {
			if idx != queryIdx {
				kept = append(kept, idx)
			}
		}
		neighborIdx = kept
	} else {
		// 低于 0 分的邻居数决定头部裁剪偏移
		cut := 0
		for _, s := range scores {
			if s < 0 {
				cut++
			}
		}
		if cut > len(neighborIdx) {
			cut = len(neighborIdx)
		}
		neighborIdx = neighborIdx[cut:]
	}

	neighborIDs := make([]int64, 0, len(neighborIdx))
	for _, idx := range neighborIdx {
		if id, ok := r.users.ID(idx); ok {
			neighborIDs = append(neighborIDs, id)
		}
	}

	histories, err := r.watched.Watched(ctx, neighborIDs)
	if err != nil {
		return nil, err
	}

	// 按邻居顺序收集，首次出现去重
	seen := make(map[int64]struct{})
	var recs []int64
	for _, id := range neighborIDs {
		for _, item := range histories[id] {
			if _, dup := seen[item]; dup {
				continue
			}
			seen[item] = struct{}{}
			recs = append(recs, item)
		}
	}

	if !uncapped && len(recs) > k {
		recs = recs[:k]
	}
	return recs, nil
}

// blendingReco 并发执行两次次级模型召回（bmp=false / bmp=true），
// 取并集后按全局重要度排序截断。
func (r *UserKNN) blendingReco(ctx context.Context, userID int64, k int) ([]int64, error) {
	if _, ok := r.users.Index(userID); !ok {
		return nil, nil
	}

	var (
		mu    sync.Mutex
		union = make(map[int64]struct{})
		eg, _ = errgroup.WithContext(ctx)
	)
	for _, bmp := range []bool{false, true} {
		bmp := bmp
		eg.Go(func() error {
			recs, err := r.onlineReco(ctx, userID, k, r.blendModel, bmp, true)
			if err != nil {
				return err
			}
			mu.Lock()
			for _, item := range recs {
				union[item] = struct{}{}
			}
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	recs := make([]int64, 0, len(union))
	for _, item := range r.importance {
		if _, ok := union[item]; ok {
			recs = append(recs, item)
		}
	}
	if len(recs) > k {
		recs = recs[:k]
	}
	return recs, nil
}
