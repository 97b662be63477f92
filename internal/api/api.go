// Package api 封装对 OKX V5 的访问：
// 按能力拆分的类型化 REST 接口、瞬态错误重试、以及公共频道 WebSocket 连接器。
package api

import (
	"context"
	"encoding/json"
	"fmt"
)

// Response OKX V5 REST 通用响应，code=="0" 表示成功
// Data 延迟解析，由调用方按接口各自的记录类型解码
type Response struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// IsOK 顶层 code 为空或 "0" 视为成功
func (r *Response) IsOK() bool {
	return r != nil && (r.Code == "" || r.Code == "0")
}

// 按能力拆分的接口，便于测试时用 fake 替换单个能力

// MarketDataAPI 行情能力
type MarketDataAPI interface {
	GetTicker(ctx context.Context, instID string) (*Response, error)
}

// PublicDataAPI 公共数据能力（合约元数据）
type PublicDataAPI interface {
	GetInstruments(ctx context.Context, instType, instID string) (*Response, error)
}

// AccountAPI 账户能力（余额/持仓模式/杠杆/持仓）
type AccountAPI interface {
	GetBalance(ctx context.Context, ccy string) (*Response, error)
	GetAccountConfig(ctx context.Context) (*Response, error)
	SetPositionMode(ctx context.Context, posMode string) (*Response, error)
	SetLeverage(ctx context.Context, req SetLeverageRequest) (*Response, error)
	GetPositions(ctx context.Context, instID string) (*Response, error)
}

// TradeAPI 交易能力
type TradeAPI interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (*Response, error)
}

// AttachAlgoOrder 下单时附带的止盈止损触发单，ordPx "-1" 表示市价
type AttachAlgoOrder struct {
	TpTriggerPx string `json:"tpTriggerPx,omitempty"`
	TpOrdPx     string `json:"tpOrdPx,omitempty"`
	SlTriggerPx string `json:"slTriggerPx,omitempty"`
	SlOrdPx     string `json:"slOrdPx,omitempty"`
}

// OrderRequest 下单请求体
type OrderRequest struct {
	InstID         string            `json:"instId"`
	TdMode         string            `json:"tdMode"`
	Side           string            `json:"side"`
	PosSide        string            `json:"posSide,omitempty"`
	OrdType        string            `json:"ordType"`
	Px             string            `json:"px,omitempty"`
	Sz             string            `json:"sz"`
	ClOrdID        string            `json:"clOrdId,omitempty"`
	ReduceOnly     bool              `json:"reduceOnly,omitempty"`
	AttachAlgoOrds []AttachAlgoOrder `json:"attachAlgoOrds,omitempty"`
}

// SetLeverageRequest 设置杠杆请求体
// 逐仓且双向持仓时 posSide 必填，其余情况省略
type SetLeverageRequest struct {
	InstID  string `json:"instId"`
	MgnMode string `json:"mgnMode"`
	Lever   string `json:"lever"`
	PosSide string `json:"posSide,omitempty"`
}

// 各接口 data 数组元素的记录类型

type TickerData struct {
	InstID string `json:"instId"`
	Last   string `json:"last"`
	BidPx  string `json:"bidPx"`
	AskPx  string `json:"askPx"`
	Ts     string `json:"ts"`
}

type InstrumentData struct {
	InstID   string `json:"instId"`
	LotSz    string `json:"lotSz"`
	CtVal    string `json:"ctVal"`
	CtValCcy string `json:"ctValCcy"`
}

type BalanceDetail struct {
	Ccy       string `json:"ccy"`
	AvailBal  string `json:"availBal"`
	FrozenBal string `json:"frozenBal"`
	Eq        string `json:"eq"`
}

type BalanceData struct {
	TotalEq string          `json:"totalEq"`
	Details []BalanceDetail `json:"details"`
}

type AccountConfigData struct {
	PosMode string `json:"posMode"`
}

type PositionData struct {
	InstID  string `json:"instId"`
	PosSide string `json:"posSide"`
	Pos     string `json:"pos"`
	AvgPx   string `json:"avgPx"`
	MgnMode string `json:"mgnMode"`
}

type OrderData struct {
	OrdID   string `json:"ordId"`
	ClOrdID string `json:"clOrdId"`
	SCode   string `json:"sCode"`
	SMsg    string `json:"sMsg"`
}

// DecodeData 将 Response.Data 解码到 data 数组的记录切片
func DecodeData[T any](resp *Response) ([]T, error) {
	if resp == nil || len(resp.Data) == 0 {
		return nil, nil
	}
	var rows []T
	if err := json.Unmarshal(resp.Data, &rows); err != nil {
		return nil, fmt.Errorf("decode response data: %w", err)
	}
	return rows, nil
}
