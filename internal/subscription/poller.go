package subscription

import (
	"context"
	"time"

	"go.uber.org/zap"

	"okx-trigger-trader/internal/api"
	"okx-trigger-trader/internal/metrics"
	"okx-trigger-trader/internal/model"
	"okx-trigger-trader/internal/service"
)

const defaultPollInterval = 5 * time.Second

// poll WS 不可用时的轮询兜底：采样最新价，套用同一触发谓词，
// 命中即触发；超过 MaxChecks 标记 EXPIRED 并停止（MaxChecks=0 则无限轮询）
func (r *Registry) poll(w *model.Watcher) {
	interval := w.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	checks := 0
	for {
		lastPrice, err := r.samplePrice(w.InstID)
		if err != nil {
			r.logger.Warn("Polling sample failed",
				zap.String("instId", w.InstID), zap.Error(err))
		} else if r.tryTriggerPolling(w, lastPrice) {
			return
		}

		checks++
		if w.MaxChecks > 0 && checks >= w.MaxChecks {
			r.expirePolling(w, lastPrice)
			return
		}
		time.Sleep(interval)
	}
}

// samplePrice 通过 REST 行情接口取最新价（经重试包装）
func (r *Registry) samplePrice(instID string) (float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := api.WithRetry(ctx, r.retry, func(ctx context.Context) (*api.Response, error) {
		return r.market.GetTicker(ctx, instID)
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

func (r *Registry) tryTriggerPolling(w *model.Watcher, lastPrice float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w.Status != model.StatusScheduled || !w.Hit(lastPrice) {
		return false
	}
	w.Status = model.StatusTriggered
	w.LastPrice = lastPrice
	r.lastTrigger = &model.TriggerEvent{
		InstID:      w.InstID,
		LastPrice:   lastPrice,
		TargetPrice: w.TargetPrice,
		Direction:   w.Direction,
		Mode:        modePolling,
		Status:      model.StatusTriggered,
	}
	metrics.TriggersTotal.WithLabelValues(w.InstID, modePolling).Inc()
	r.wake.Set()
	r.logger.Info("!!! PRICE TRIGGER HIT (polling) !!!",
		zap.String("instId", w.InstID),
		zap.Float64("lastPrice", lastPrice),
		zap.Float64("target", w.TargetPrice))
	return true
}

func (r *Registry) expirePolling(w *model.Watcher, lastPrice float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w.Status = model.StatusExpired
	w.LastPrice = lastPrice
	r.lastTrigger = &model.TriggerEvent{
		InstID:      w.InstID,
		LastPrice:   lastPrice,
		TargetPrice: w.TargetPrice,
		Direction:   w.Direction,
		Mode:        modePolling,
		Status:      model.StatusExpired,
	}
	r.logger.Info("Polling watcher expired",
		zap.String("instId", w.InstID),
		zap.Int("maxChecks", w.MaxChecks))
}
