package service

import "sync"

// keyedMutex 按 key 串行化的互斥锁集合
//
// 同一模式上的全部写操作（暂停/恢复/取消/改期/延展/档期提交）必须按
// pattern_id 串行：生成+裁决是对同一档期集合的"先读后写"，并发调用会
// 重复生成或写坏计数器。锁之外还有 version 乐观锁兜底跨实例的并发。
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock 锁定指定 key，返回解锁函数
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// [自证通过] internal/service/locks.go
