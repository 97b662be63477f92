package execution

import (
	"context"
	"strings"
	"sync"

	"okx-trigger-trader/internal/api"
	"okx-trigger-trader/internal/model"
	"okx-trigger-trader/internal/service"
)

// InstrumentCache 合约元数据缓存（lotSz / ctVal）
// 懒加载，进程生命周期内不失效；并发 Resolve 同一合约可能竞争拉取，
// 后写胜出，但任何一方都不会读到半初始化的值
type InstrumentCache struct {
	mu     sync.RWMutex
	cache  map[string]*model.InstrumentSpec
	public api.PublicDataAPI
	retry  api.RetryPolicy
}

func NewInstrumentCache(public api.PublicDataAPI, retry api.RetryPolicy) *InstrumentCache {
	return &InstrumentCache{
		cache:  make(map[string]*model.InstrumentSpec),
		public: public,
		retry:  retry,
	}
}

// Resolve 返回合约元数据；交易所查不到时返回 NotFoundError
func (c *InstrumentCache) Resolve(ctx context.Context, instID string) (*model.InstrumentSpec, error) {
	c.mu.RLock()
	spec, ok := c.cache[instID]
	c.mu.RUnlock()
	if ok {
		return spec, nil
	}

	instType := "SPOT"
	if strings.Contains(instID, "SWAP") {
		instType = "SWAP"
	}

	resp, err := api.WithRetry(ctx, c.retry, func(ctx context.Context) (*api.Response, error) {
		return c.public.GetInstruments(ctx, instType, instID)
	})
	if err != nil {
		return nil, err
	}
	if !resp.IsOK() {
		return nil, &model.ExchangeRejectionError{InstID: instID, Code: resp.Code, Msg: resp.Msg, Raw: resp.Data}
	}

	rows, err := api.DecodeData[api.InstrumentData](resp)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &model.NotFoundError{InstID: instID}
	}

	row := rows[0]
	ctVal := 0.0
	if row.CtVal != "" {
		if ctVal, err = service.StringToFloat(row.CtVal); err != nil {
			return nil, &model.ValidationError{InstID: instID, Reason: "unparsable ctVal: " + row.CtVal}
		}
	}

	spec = &model.InstrumentSpec{
		InstID:        instID,
		LotSize:       row.LotSz,
		ContractValue: ctVal,
		ContractCcy:   row.CtValCcy,
	}

	c.mu.Lock()
	c.cache[instID] = spec // 竞争拉取时后写胜出
	c.mu.Unlock()
	return spec, nil
}
