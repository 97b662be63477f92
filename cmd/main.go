package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"okx-trigger-trader/internal/api"
	"okx-trigger-trader/internal/execution"
	"okx-trigger-trader/internal/metrics"
	"okx-trigger-trader/internal/model"
	"okx-trigger-trader/internal/service"
	"okx-trigger-trader/internal/strategy"
	"okx-trigger-trader/internal/subscription"
)

func main() {
	service.InitLogger()
	defer service.Logger.Sync()

	configPath := "config"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		service.Logger.Warn("Configuration directory 'config/' not found, relying on defaults and env.")
	}
	cfg := service.LoadConfig(configPath)

	if cfg.Metrics.Addr != "" {
		metrics.Serve(cfg.Metrics.Addr)
	}

	// 1. 显式构造 REST 客户端与重试策略，注入到所有组件
	rest := api.NewRestClient(&cfg.Exchange, service.Logger)
	retryPolicy := api.PolicyFromConfig(cfg.Retry)

	// 2. 订阅注册表 + WS 连接器（连接器把行情回灌给注册表）
	registry := subscription.NewRegistry(rest, retryPolicy, service.Logger)
	wsURL := cfg.Exchange.WSURL
	if cfg.Exchange.Simulated {
		wsURL = cfg.Exchange.WSPaperURL
	}
	registry.SetFeed(api.NewConnector(wsURL, registry, service.Logger))

	// 3. 交易执行器
	instruments := execution.NewInstrumentCache(rest, retryPolicy)
	executor := execution.NewOkxExecutor(rest, rest, instruments, retryPolicy, cfg.Exchange.MarginCcy, service.Logger)

	// 4. 选第一个符号，以当前价作为目标便于快速命中
	symbols := service.LoadSymbols("OKX_SYMBOLS", nil)
	instID := service.NormalizeInstID(symbols[0])
	service.Logger.Info(fmt.Sprintf("Demo run on %s (simulated=%v)", instID, cfg.Exchange.Simulated))

	lastPrice, err := currentPrice(rest, retryPolicy, instID)
	if err != nil {
		service.Logger.Fatal("Failed to fetch current price", zap.Error(err))
	}
	service.Logger.Info("Current price fetched", zap.Float64("lastPrice", lastPrice))

	// 5. 挂起流程：注册触发器并等待唤醒
	flow := strategy.NewTriggerFlow(registry, service.Logger)
	registry.ClearWake()
	registry.ResetLastTrigger()

	pending, err := flow.Begin(instID, lastPrice, model.DirectionAbove, cfg.Subscription.DefaultTimeout,
		subscription.Options{
			PollInterval: cfg.Subscription.PollInterval,
			Tolerance:    cfg.Subscription.Tolerance,
		})
	if err != nil {
		service.Logger.Fatal("Failed to begin trigger flow", zap.Error(err))
	}
	service.Logger.Info("Waiting for price trigger",
		zap.String("instId", pending.InstID),
		zap.Float64("target", pending.TargetPrice),
		zap.Float64("timeout", pending.Timeout))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Subscription.DefaultTimeout)
	defer cancel()

	if err := registry.AwaitWake(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			_, _ = flow.Resume(strategy.ResumePayload{Status: "timeout"})
			service.Logger.Warn("Timed out waiting for trigger, exiting.")
			return
		}
		service.Logger.Fatal("AwaitWake failed", zap.Error(err))
	}

	trigger := registry.LastTrigger()
	if trigger == nil {
		service.Logger.Warn("Woken without trigger detail, exiting.")
		return
	}
	if _, err := flow.Resume(strategy.ResumePayload{Status: "triggered", LastPrice: trigger.LastPrice}); err != nil {
		service.Logger.Fatal("Resume failed", zap.Error(err))
	}
	service.Logger.Info("Trigger detail",
		zap.String("instId", trigger.InstID),
		zap.Float64("lastPrice", trigger.LastPrice),
		zap.String("mode", trigger.Mode))

	// 6. 触发后提交一笔演示订单（仅模拟盘）
	if !cfg.Exchange.Simulated {
		service.Logger.Info("Live mode, skipping demo order submission.")
		return
	}
	result, err := executor.Submit(context.Background(), model.TradeIntent{
		InstID:       instID,
		Side:         model.SideBuy,
		PosSide:      model.PosSideLong,
		MarginMode:   model.MarginIsolated,
		MarginAmount: 200,
		Leverage:     5,
		LimitPrice:   trigger.LastPrice * 0.99,
		TakeProfit:   trigger.LastPrice * 1.10,
		StopLoss:     trigger.LastPrice * 0.90,
	})
	if err != nil {
		service.Logger.Error("Demo order failed", zap.Error(err))
		return
	}
	service.Logger.Info("Demo order submitted",
		zap.String("orderId", result.OrderID),
		zap.String("clOrdId", result.ClientOrderID),
		zap.String("size", result.Size))
}

// currentPrice 经重试包装拉一次最新成交价
func currentPrice(market api.MarketDataAPI, policy api.RetryPolicy, instID string) (float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := api.WithRetry(ctx, policy, func(ctx context.Context) (*api.Response, error) {
		return market.GetTicker(ctx, instID)
	})
	if err != nil {
		return 0, err
	}
	if !resp.IsOK() {
		return 0, &model.ExchangeRejectionError{InstID: instID, Code: resp.Code, Msg: resp.Msg, Raw: resp.Data}
	}
	rows, err := api.DecodeData[api.TickerData](resp)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, &model.NotFoundError{InstID: instID}
	}
	return service.StringToFloat(rows[0].Last)
}
