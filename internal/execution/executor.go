package execution

import (
	"context"

	"okx-trigger-trader/internal/model"
)

// Executor 将抽象交易意图转换为交易所合法订单
type Executor interface {
	// Submit 提交一笔带止盈止损的限价开仓单
	Submit(ctx context.Context, intent model.TradeIntent) (*model.OrderResult, error)
	// Close 以 reduce-only 限价单平掉指定方向的持仓
	Close(ctx context.Context, instID string, posSide model.PosSide, limitPrice float64) (*model.OrderResult, error)
}
