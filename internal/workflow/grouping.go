package workflow

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"trainhub/console/internal/upstream"
)

// MonthGroup 按创建月份分组的草稿
type MonthGroup struct {
	Key      string // 2026-10
	Year     int
	Month    time.Month
	Label    string // 2026年10月
	Expanded bool
	Drafts   []upstream.SessionDraft
	Summary  Summary
}

// Summary 分组汇总
type Summary struct {
	Total          int
	Pending        int
	Approved       int
	Rejected       int
	TotalHours     decimal.Decimal
	ApprovedHours  decimal.Decimal
	ApprovedAmount decimal.Decimal // Σ 课时 × 课时费（仅已审批）
}

// MonthKey 分组键
func MonthKey(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

// MonthLabel 分组展示名
func MonthLabel(year int, month time.Month) string {
	return fmt.Sprintf("%d年%d月", year, int(month))
}

// GroupByMonth 按 created_at 的 (年, 月) 分组，最近月份在前
// 组内保持输入顺序；仅当前自然月的分组默认展开
func GroupByMonth(drafts []upstream.SessionDraft, now time.Time, loc *time.Location) []MonthGroup {
	if loc == nil {
		loc = time.UTC
	}

	index := make(map[string]int)
	groups := make([]MonthGroup, 0)
	for _, d := range drafts {
		t := d.CreatedAt.In(loc)
		key := MonthKey(t.Year(), t.Month())
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, MonthGroup{
				Key:   key,
				Year:  t.Year(),
				Month: t.Month(),
				Label: MonthLabel(t.Year(), t.Month()),
			})
		}
		groups[i].Drafts = append(groups[i].Drafts, d)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Year != groups[j].Year {
			return groups[i].Year > groups[j].Year
		}
		return groups[i].Month > groups[j].Month
	})

	current := now.In(loc)
	currentKey := MonthKey(current.Year(), current.Month())
	for i := range groups {
		groups[i].Expanded = groups[i].Key == currentKey
		groups[i].Summary = Summarize(groups[i].Drafts)
	}
	return groups
}

// ToggleGroup 切换单个分组的展开状态，返回新切片
func ToggleGroup(groups []MonthGroup, key string) []MonthGroup {
	out := make([]MonthGroup, len(groups))
	copy(out, groups)
	for i := range out {
		if out[i].Key == key {
			out[i].Expanded = !out[i].Expanded
		}
	}
	return out
}

// ApplyExpanded 以前端回传的展开集合覆盖默认展开状态
func ApplyExpanded(groups []MonthGroup, keys []string) []MonthGroup {
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	out := make([]MonthGroup, len(groups))
	copy(out, groups)
	for i := range out {
		out[i].Expanded = want[out[i].Key]
	}
	return out
}

// FindGroup 查找指定月份的分组
func FindGroup(groups []MonthGroup, year int, month time.Month) (MonthGroup, bool) {
	key := MonthKey(year, month)
	for _, g := range groups {
		if g.Key == key {
			return g, true
		}
	}
	return MonthGroup{}, false
}

// Summarize 统计一组草稿
func Summarize(drafts []upstream.SessionDraft) Summary {
	s := Summary{
		TotalHours:     decimal.Zero,
		ApprovedHours:  decimal.Zero,
		ApprovedAmount: decimal.Zero,
	}
	for _, d := range drafts {
		s.Total++
		s.TotalHours = s.TotalHours.Add(d.DurationHours)
		switch d.Status {
		case upstream.StatusPending:
			s.Pending++
		case upstream.StatusApproved:
			s.Approved++
			s.ApprovedHours = s.ApprovedHours.Add(d.DurationHours)
			if d.HourlyRate.Valid {
				s.ApprovedAmount = s.ApprovedAmount.Add(d.DurationHours.Mul(d.HourlyRate.Decimal))
			}
		case upstream.StatusRejected:
			s.Rejected++
		}
	}
	return s
}
