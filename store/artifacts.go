package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rushteam/recserve/core"
)

// 工件在 Store 内的 key 约定，与离线批处理任务的写入侧对齐。
const (
	keyOfflineReco = "reco:offline:" // + user_id → JSON []item_id
	keyCandidates  = "reco:cand:"    // + user_id → JSON []Candidate
	keyWatched     = "reco:watched:" // + user_id → JSON []item_id
	keyPopular     = "reco:popular"  // zset member=item_id score=热度；或 JSON []item_id
	keyImportance  = "reco:item_idf" // JSON []item_id，按全局重要度（逆文档频率）排序
)

// Artifacts 把 Store 中的离线推荐工件解码成领域类型。
// 所有按用户读取的方法对"key 不存在"返回空结果而非错误：
// 冷用户是常态数据缺失，由上层热门兜底处理。
type Artifacts struct {
	kv core.Store
}

func NewArtifacts(kv core.Store) *Artifacts {
	return &Artifacts{kv: kv}
}

// OfflineReco 返回用户的离线预计算推荐列表（保持离线排序）。
func (a *Artifacts) OfflineReco(ctx context.Context, userID int64) ([]int64, error) {
	return a.itemList(ctx, keyOfflineReco+strconv.FormatInt(userID, 10))
}

// Candidates 返回用户的候选三元组（已展开为 item_id / lfm_score / rank）。
func (a *Artifacts) Candidates(ctx context.Context, userID int64) ([]core.Candidate, error) {
	data, err := a.kv.Get(ctx, keyCandidates+strconv.FormatInt(userID, 10))
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var cands []core.Candidate
	if err := json.Unmarshal(data, &cands); err != nil {
		return nil, fmt.Errorf("decode candidates: %w", err)
	}
	return cands, nil
}

// Watched 批量返回多个用户的观影历史，保持请求内的用户顺序语义：
// 返回 map，缺失的用户不出现在结果里。
func (a *Artifacts) Watched(ctx context.Context, userIDs []int64) (map[int64][]int64, error) {
	if len(userIDs) == 0 {
		return map[int64][]int64{}, nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = keyWatched + strconv.FormatInt(id, 10)
	}
	values, err := a.kv.BatchGet(ctx, keys)
	if err != nil {
		return nil, err
	}

	result := make(map[int64][]int64, len(values))
	for i, id := range userIDs {
		data, ok := values[keys[i]]
		if !ok {
			continue
		}
		var items []int64
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("decode watched for user %d: %w", id, err)
		}
		result[id] = items
	}
	return result, nil
}

// Popular 返回全局热门物品（按热度降序，最多 n 个）。
// 优先从有序集合读取；后端没有 zset 数据时退回普通 key 的 JSON 数组。
func (a *Artifacts) Popular(ctx context.Context, n int) ([]int64, error) {
	if n <= 0 {
		return nil, nil
	}
	members, err := a.kv.ZRevRange(ctx, keyPopular, 0, int64(n)-1)
	if err == nil && len(members) > 0 {
		items := make([]int64, 0, len(members))
		for _, m := range members {
			if id, err := strconv.ParseInt(m, 10, 64); err == nil {
				items = append(items, id)
			}
		}
		return items, nil
	}

	items, err := a.itemList(ctx, keyPopular)
	if err != nil {
		return nil, err
	}
	if len(items) > n {
		items = items[:n]
	}
	return items, nil
}

// ItemImportance 返回全局物品重要度排序（blending 的外部排序依据）。
func (a *Artifacts) ItemImportance(ctx context.Context) ([]int64, error) {
	return a.itemList(ctx, keyImportance)
}

func (a *Artifacts) itemList(ctx context.Context, key string) ([]int64, error) {
	data, err := a.kv.Get(ctx, key)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var items []int64
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode item list %s: %w", key, err)
	}
	return items, nil
}

// 写入侧：离线任务 / 启动引导 / 测试夹具使用。

// PutOfflineReco 写入用户的离线推荐列表。
func (a *Artifacts) PutOfflineReco(ctx context.Context, userID int64, items []int64) error {
	return a.putJSON(ctx, keyOfflineReco+strconv.FormatInt(userID, 10), items)
}

// PutCandidates 写入用户的候选三元组。
func (a *Artifacts) PutCandidates(ctx context.Context, userID int64, cands []core.Candidate) error {
	return a.putJSON(ctx, keyCandidates+strconv.FormatInt(userID, 10), cands)
}

// PutWatched 写入用户的观影历史。
func (a *Artifacts) PutWatched(ctx context.Context, userID int64, items []int64) error {
	return a.putJSON(ctx, keyWatched+strconv.FormatInt(userID, 10), items)
}

// PutPopular 写入全局热门榜（JSON 形式）。
func (a *Artifacts) PutPopular(ctx context.Context, items []int64) error {
	return a.putJSON(ctx, keyPopular, items)
}

// PutItemImportance 写入全局物品重要度排序。
func (a *Artifacts) PutItemImportance(ctx context.Context, items []int64) error {
	return a.putJSON(ctx, keyImportance, items)
}

func (a *Artifacts) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return a.kv.Set(ctx, key, data)
}
