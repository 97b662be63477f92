package model

import (
	"encoding/json"
	"fmt"
)

// 错误分级：校验/余额/模式切换错误在下单前截断，
// 交易所拒单错误携带原始 code/msg，行情通道错误只触发轮询兜底。

// ValidationError 意图或参数不合法，不重试
type ValidationError struct {
	InstID string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.InstID == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed (instId=%s): %s", e.InstID, e.Reason)
}

// InsufficientBalanceError 可用保证金不足，下单前检查
type InsufficientBalanceError struct {
	Currency  string
	Available float64
	Required  float64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance: available=%v, required=%v",
		e.Currency, e.Available, e.Required)
}

// ModeReconciliationError 持仓模式切换或杠杆设置被拒绝
// 必须在下单前中止，否则交易所会以不兼容模式拒单
type ModeReconciliationError struct {
	InstID string
	Stage  string // "set-position-mode" 或 "set-leverage"
	Code   string
	Msg    string
}

func (e *ModeReconciliationError) Error() string {
	return fmt.Sprintf("%s failed (instId=%s): code=%s, msg=%s", e.Stage, e.InstID, e.Code, e.Msg)
}

// ExchangeRejectionError 订单或子订单被交易所拒绝，携带原始 code/msg
type ExchangeRejectionError struct {
	InstID string
	Code   string
	Msg    string
	Raw    json.RawMessage
}

func (e *ExchangeRejectionError) Error() string {
	return fmt.Sprintf("exchange rejected (instId=%s): code=%s, msg=%s", e.InstID, e.Code, e.Msg)
}

// NotFoundError 交易所查不到对应合约
type NotFoundError struct {
	InstID string
}

func (e *NotFoundError) Error() string {
	return "instrument not found: " + e.InstID
}

// FeedUnavailableError 行情通道不可用，调用方应回退为轮询而非向上传播
type FeedUnavailableError struct {
	Reason string
	Err    error
}

func (e *FeedUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("feed unavailable: %s: %v", e.Reason, e.Err)
	}
	return "feed unavailable: " + e.Reason
}

func (e *FeedUnavailableError) Unwrap() error { return e.Err }
