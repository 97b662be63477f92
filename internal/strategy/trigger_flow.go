// Package strategy 承载决策流程的显式状态机
// 订阅-挂起-恢复不依赖外部运行时的中断机制：Begin 返回 pending 负载，
// 上层持有它等待唤醒，再通过 Resume 回传结果继续流程。
package strategy

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"okx-trigger-trader/internal/model"
	"okx-trigger-trader/internal/subscription"
)

// FlowState 触发流程状态
type FlowState string

const (
	StateIdle      FlowState = "IDLE"
	StateWaiting   FlowState = "WAITING_FOR_PRICE"
	StateTriggered FlowState = "TRIGGERED"
	StateTimedOut  FlowState = "TIMED_OUT"
)

// PendingPayload 挂起时交给上层的负载
type PendingPayload struct {
	Status      string          `json:"status"` // 固定 "waiting_for_price"
	InstID      string          `json:"instId"`
	TargetPrice float64         `json:"target_price"`
	Direction   model.Direction `json:"direction"`
	Timeout     float64         `json:"timeout"` // 建议的最大等待秒数
	Hint        string          `json:"hint"`
}

// ResumePayload 外部唤醒或超时后回传的结果
type ResumePayload struct {
	Status    string  `json:"status"` // "triggered" 或 "timeout"
	LastPrice float64 `json:"last_price,omitempty"`
}

// TriggerFlow 单次价格触发的显式续体
type TriggerFlow struct {
	mu       sync.Mutex
	state    FlowState
	registry *subscription.Registry
	watcher  *model.Watcher
	pending  *PendingPayload
	result   *ResumePayload
	logger   *zap.Logger
}

func NewTriggerFlow(registry *subscription.Registry, logger *zap.Logger) *TriggerFlow {
	return &TriggerFlow{
		state:    StateIdle,
		registry: registry,
		logger:   logger.With(zap.String("component", "trigger-flow")),
	}
}

// Begin 注册订阅并进入 WAITING，返回 pending 负载
// 已处于 WAITING 的流程不允许重复挂起
func (f *TriggerFlow) Begin(instID string, targetPrice float64, direction model.Direction,
	timeout time.Duration, opts subscription.Options) (*PendingPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == StateWaiting {
		return nil, &model.ValidationError{InstID: instID, Reason: "flow is already waiting"}
	}

	w := f.registry.Subscribe(instID, targetPrice, direction, opts)
	f.watcher = w
	f.state = StateWaiting
	f.result = nil
	f.pending = &PendingPayload{
		Status:      "waiting_for_price",
		InstID:      w.InstID,
		TargetPrice: targetPrice,
		Direction:   direction,
		Timeout:     timeout.Seconds(),
		Hint:        "resume with {'status': 'triggered'|'timeout', 'last_price': <optional>}",
	}

	f.logger.Info("Flow suspended, waiting for price",
		zap.String("instId", w.InstID),
		zap.Float64("target", targetPrice),
		zap.String("direction", string(direction)))
	return f.pending, nil
}

// Resume 回传结果并结束等待；只接受 triggered/timeout 两种状态
func (f *TriggerFlow) Resume(payload ResumePayload) (*ResumePayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateWaiting {
		return nil, fmt.Errorf("cannot resume flow in state %s", f.state)
	}

	switch payload.Status {
	case "triggered":
		f.state = StateTriggered
	case "timeout":
		f.state = StateTimedOut
	default:
		return nil, fmt.Errorf("invalid resume status %q", payload.Status)
	}

	f.result = &payload
	f.logger.Info("Flow resumed",
		zap.String("status", payload.Status),
		zap.Float64("lastPrice", payload.LastPrice))
	return f.result, nil
}

func (f *TriggerFlow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Watcher 返回本流程注册的 Watcher（可能为 nil）
func (f *TriggerFlow) Watcher() *model.Watcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watcher
}

// Pending 返回最近一次挂起负载
func (f *TriggerFlow) Pending() *PendingPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}
