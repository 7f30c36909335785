package recall

// Popular 是全局热门兜底：离线产出的热门榜（按热度降序），
// 用于把长度不足 k 的推荐列表补齐。
type Popular struct {
	Items []int64
}

// Fill 向 current 追加热门物品直到长度达到 k 或热门榜耗尽。
// 已有推荐保持原序，追加部分按热门榜顺序，不引入重复。
// current 已满时原样返回（幂等）。
func (p *Popular) Fill(current []int64, k int) []int64 {
	if len(current) >= k {
		return current
	}

	seen := make(map[int64]struct{}, len(current))
	for _, item := range current {
		seen[item] = struct{}{}
	}

	out := make([]int64, len(current), k)
	copy(out, current)
	for _, item := range p.Items {
		if len(out) >= k {
			break
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
