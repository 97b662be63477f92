// Package subscription 管理价格触发订阅：
// 每个合约一份 Watcher 列表，行情命中后置位共享唤醒信号，
// WS 不可用时回退为有界轮询。
package subscription

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"okx-trigger-trader/internal/api"
	"okx-trigger-trader/internal/metrics"
	"okx-trigger-trader/internal/model"
	"okx-trigger-trader/internal/service"
)

const (
	modeWebsocket = "websocket"
	modePolling   = "polling"
)

// Feed 行情通道适配器的最小接口（api.Connector 实现）
type Feed interface {
	EnsureSubscribed(instID string) error
}

// Options 单次订阅的可选参数
type Options struct {
	PollInterval time.Duration // 轮询兜底的采样间隔，<=0 取默认 5s
	Tolerance    float64       // 触发容差
	MaxChecks    int           // 轮询最大采样次数，0 表示无限
}

// Registry 订阅注册表 + 唤醒协调器
// watchers 与 lastTrigger 同时被订阅路径、WS 回调和轮询 Goroutine 访问，
// 统一由 mu 保护
type Registry struct {
	mu          sync.Mutex
	watchers    map[string][]*model.Watcher
	lastTrigger *model.TriggerEvent

	feed   Feed
	market api.MarketDataAPI
	retry  api.RetryPolicy
	wake   *WakeSignal
	logger *zap.Logger
}

func NewRegistry(market api.MarketDataAPI, retry api.RetryPolicy, logger *zap.Logger) *Registry {
	return &Registry{
		watchers: make(map[string][]*model.Watcher),
		market:   market,
		retry:    retry,
		wake:     NewWakeSignal(),
		logger:   logger.With(zap.String("component", "subscription")),
	}
}

// SetFeed 注入行情通道；未注入时所有订阅都走轮询兜底
func (r *Registry) SetFeed(feed Feed) {
	r.feed = feed
}

// Subscribe 注册一个价格触发 Watcher，立即返回
// 优先走 WS 行情流；通道不可用时该 Watcher 回退为轮询，决策只在本次订阅做一次
func (r *Registry) Subscribe(instID string, targetPrice float64, direction model.Direction, opts Options) *model.Watcher {
	inst := service.NormalizeInstID(instID)
	w := &model.Watcher{
		InstID:       inst,
		TargetPrice:  targetPrice,
		Direction:    direction,
		Tolerance:    opts.Tolerance,
		Status:       model.StatusScheduled,
		PollInterval: opts.PollInterval,
		MaxChecks:    opts.MaxChecks,
	}

	var feedErr error
	if r.feed != nil {
		feedErr = r.feed.EnsureSubscribed(inst)
	} else {
		feedErr = &model.FeedUnavailableError{Reason: "no feed attached"}
	}

	r.mu.Lock()
	r.lastTrigger = nil
	r.mu.Unlock()

	if feedErr != nil {
		r.logger.Warn("Feed unavailable, falling back to polling",
			zap.String("instId", inst), zap.Error(feedErr))
		go r.poll(w)
		return w
	}

	r.mu.Lock()
	r.watchers[inst] = append(r.watchers[inst], w)
	r.mu.Unlock()

	r.logger.Info("Watcher scheduled",
		zap.String("instId", inst),
		zap.Float64("target", targetPrice),
		zap.String("direction", string(direction)))
	return w
}

// OnTick 用一笔行情评估该合约的全部 Watcher（按注册顺序）
// 命中的标记 TRIGGERED 并移出活跃列表（每个 Watcher 至多触发一次），未命中的保留
func (r *Registry) OnTick(tick model.Tick) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.watchers[tick.InstID]
	if len(list) == 0 {
		return
	}

	remaining := list[:0]
	for _, w := range list {
		if w.Status != model.StatusScheduled || !w.Hit(tick.Price) {
			remaining = append(remaining, w)
			continue
		}
		w.Status = model.StatusTriggered
		w.LastPrice = tick.Price
		r.lastTrigger = &model.TriggerEvent{
			InstID:      tick.InstID,
			LastPrice:   tick.Price,
			TargetPrice: w.TargetPrice,
			Direction:   w.Direction,
			Mode:        modeWebsocket,
			Status:      model.StatusTriggered,
		}
		metrics.TriggersTotal.WithLabelValues(tick.InstID, modeWebsocket).Inc()
		r.wake.Set()
		r.logger.Info("!!! PRICE TRIGGER HIT !!!",
			zap.String("instId", tick.InstID),
			zap.Float64("lastPrice", tick.Price),
			zap.Float64("target", w.TargetPrice),
			zap.String("direction", string(w.Direction)))
	}
	r.watchers[tick.InstID] = remaining
}

// AwaitWake 挂起直至任一 Watcher 触发或 ctx 结束
// 信号不会自动复位，重新挂起前调用 ClearWake
func (r *Registry) AwaitWake(ctx context.Context) error {
	return r.wake.Wait(ctx)
}

// ClearWake 为下一轮等待复位唤醒信号
func (r *Registry) ClearWake() {
	r.wake.Clear()
}

// LastTrigger 返回最近一次触发/过期详情，无则返回 nil
func (r *Registry) LastTrigger() *model.TriggerEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastTrigger
}

// ResetLastTrigger 清空触发记录
func (r *Registry) ResetLastTrigger() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastTrigger = nil
}

// WatcherStatus 读取 Watcher 状态（轮询 Goroutine 也会写，需加锁）
func (r *Registry) WatcherStatus(w *model.Watcher) model.WatcherStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return w.Status
}

func (r *Registry) setLastTrigger(ev *model.TriggerEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastTrigger = ev
}
