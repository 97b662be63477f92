package model

import "encoding/json"

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type PosSide string

const (
	PosSideLong  PosSide = "long"
	PosSideShort PosSide = "short"
	PosSideNet   PosSide = "net"
)

// MarginMode 逐仓/全仓
type MarginMode string

const (
	MarginIsolated MarginMode = "isolated"
	MarginCross    MarginMode = "cross"
)

// 持仓模式：long/short 需双向仓，net 需单向仓
const (
	PosModeLongShort = "long_short_mode"
	PosModeNet       = "net_mode"
)

// TradeIntent 上层决策产出的抽象交易意图
// 保证金金额乘杠杆得到名义价值，再按限价换算数量
type TradeIntent struct {
	InstID       string
	Side         Side
	PosSide      PosSide
	MarginMode   MarginMode
	MarginAmount float64 // 保证金 (USDT)
	Leverage     int
	LimitPrice   float64
	TakeProfit   float64 // 0 表示未设置
	StopLoss     float64 // 0 表示未设置
}

// Validate 校验意图字段；止盈止损至少设置一个
func (ti *TradeIntent) Validate() error {
	if ti.InstID == "" {
		return &ValidationError{Reason: "instId is required"}
	}
	if ti.Side != SideBuy && ti.Side != SideSell {
		return &ValidationError{InstID: ti.InstID, Reason: "side must be 'buy' or 'sell'"}
	}
	if ti.PosSide != PosSideLong && ti.PosSide != PosSideShort && ti.PosSide != PosSideNet {
		return &ValidationError{InstID: ti.InstID, Reason: "posSide must be long/short/net"}
	}
	if ti.MarginMode != MarginIsolated && ti.MarginMode != MarginCross {
		return &ValidationError{InstID: ti.InstID, Reason: "tdMode must be isolated/cross"}
	}
	if ti.MarginAmount <= 0 {
		return &ValidationError{InstID: ti.InstID, Reason: "margin amount must be > 0"}
	}
	if ti.LimitPrice <= 0 {
		return &ValidationError{InstID: ti.InstID, Reason: "limit price must be > 0"}
	}
	if ti.Leverage < 1 {
		return &ValidationError{InstID: ti.InstID, Reason: "leverage must be >= 1"}
	}
	if ti.TakeProfit <= 0 && ti.StopLoss <= 0 {
		return &ValidationError{InstID: ti.InstID, Reason: "at least one of take-profit/stop-loss is required"}
	}
	return nil
}

// DesiredPosMode 根据 posSide 推导账户应处的持仓模式
func (ti *TradeIntent) DesiredPosMode() string {
	if ti.PosSide == PosSideLong || ti.PosSide == PosSideShort {
		return PosModeLongShort
	}
	return PosModeNet
}

// InstrumentSpec 合约元数据，进程生命周期内视为静态
type InstrumentSpec struct {
	InstID        string
	LotSize       string  // 最小下单数量步长 (lotSz)，保留字符串以免精度丢失
	ContractValue float64 // 一张合约的基础币数量 (ctVal)，现货为 0
	ContractCcy   string  // ctValCcy
}

// OrderResult 一次下单的最终回执，返回后不再修改
type OrderResult struct {
	InstID        string          `json:"instId"`
	Side          Side            `json:"side"`
	PosSide       PosSide         `json:"posSide"`
	MarginMode    MarginMode      `json:"tdMode"`
	Leverage      int             `json:"leverage,omitempty"`
	OrderID       string          `json:"order_id"`
	ClientOrderID string          `json:"client_order_id"`
	Price         float64         `json:"price"`
	Size          string          `json:"size"` // 量化后的下单数量
	TakeProfit    float64         `json:"take_profit,omitempty"`
	StopLoss      float64         `json:"stop_loss,omitempty"`
	Raw           json.RawMessage `json:"raw_response,omitempty"`
}

// Position 当前持仓（来自交易所查询）
type Position struct {
	InstID     string
	PosSide    PosSide
	Size       float64 // 持仓数量（合约张数）
	AvgPrice   float64
	MarginMode MarginMode
}
