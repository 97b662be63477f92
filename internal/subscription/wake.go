package subscription

import (
	"context"
	"sync"
)

// WakeSignal 进程级共享唤醒信号
// 任意数量的 Watcher 可以置位，任意数量的挂起流程可以等待
// Set 幂等；不会自动复位，重新挂起前必须显式 Clear，否则残留信号会导致虚假唤醒
type WakeSignal struct {
	mu  sync.Mutex
	set bool
	ch  chan struct{}
}

func NewWakeSignal() *WakeSignal {
	return &WakeSignal{ch: make(chan struct{})}
}

// Set 置位并唤醒所有等待者，重复调用无副作用
func (s *WakeSignal) Set() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set {
		return
	}
	s.set = true
	close(s.ch)
}

// Clear 复位信号，为下一轮等待重新武装
func (s *WakeSignal) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return
	}
	s.set = false
	s.ch = make(chan struct{})
}

func (s *WakeSignal) IsSet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set
}

// Wait 挂起直至信号置位或 ctx 结束
func (s *WakeSignal) Wait(ctx context.Context) error {
	s.mu.Lock()
	set, ch := s.set, s.ch
	s.mu.Unlock()
	if set {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
