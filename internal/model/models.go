package model

import "time"

// Direction 价格触发方向
type Direction string

const (
	DirectionAbove Direction = "above" // 价格达到或高于目标触发
	DirectionBelow Direction = "below" // 价格达到或低于目标触发
)

// WatcherStatus Watcher 生命周期状态
type WatcherStatus string

const (
	StatusScheduled WatcherStatus = "scheduled"
	StatusTriggered WatcherStatus = "triggered"
	StatusExpired   WatcherStatus = "expired"
)

// Tick 一笔行情快照 (instId + 最新成交价)
type Tick struct {
	InstID    string
	Price     float64
	Timestamp int64 // 毫秒
}

// Watcher 一条已注册的价格触发条件
// 由 subscription.Registry 独占持有，外部只读取返回的指针
type Watcher struct {
	InstID       string
	TargetPrice  float64
	Direction    Direction
	Tolerance    float64 // 触发容差，>= 0
	Status       WatcherStatus
	LastPrice    float64 // 触发/过期时记录的最后价格
	PollInterval time.Duration
	MaxChecks    int // 轮询模式最大采样次数，0 表示无限
}

// Hit 判断价格是否命中触发条件
// above: price >= target - tolerance；below: price <= target + tolerance
func (w *Watcher) Hit(price float64) bool {
	switch w.Direction {
	case DirectionAbove:
		return price >= w.TargetPrice-w.Tolerance
	case DirectionBelow:
		return price <= w.TargetPrice+w.Tolerance
	}
	return false
}

// TriggerEvent 最近一次触发/过期详情，供被唤醒的流程读取
type TriggerEvent struct {
	InstID      string        `json:"inst_id"`
	LastPrice   float64       `json:"last_price"`
	TargetPrice float64       `json:"target_price"`
	Direction   Direction     `json:"direction"`
	Mode        string        `json:"mode"` // "websocket" 或 "polling"
	Status      WatcherStatus `json:"status"`
}
