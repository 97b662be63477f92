package execution

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"okx-trigger-trader/internal/api"
	"okx-trigger-trader/internal/metrics"
	"okx-trigger-trader/internal/model"
	"okx-trigger-trader/internal/service"
	"okx-trigger-trader/pkg/quant"
)

// OkxExecutor 实现 Executor 接口
// 下单前按固定顺序对齐账户状态：持仓模式 -> 杠杆 -> 下单，
// 顺序颠倒会被交易所以不兼容模式拒掉杠杆或订单请求
type OkxExecutor struct {
	account     api.AccountAPI
	trade       api.TradeAPI
	instruments *InstrumentCache
	retry       api.RetryPolicy
	marginCcy   string
	logger      *zap.Logger
}

func NewOkxExecutor(account api.AccountAPI, trade api.TradeAPI, instruments *InstrumentCache,
	retry api.RetryPolicy, marginCcy string, logger *zap.Logger) *OkxExecutor {
	if marginCcy == "" {
		marginCcy = "USDT"
	}
	return &OkxExecutor{
		account:     account,
		trade:       trade,
		instruments: instruments,
		retry:       retry,
		marginCcy:   marginCcy,
		logger:      logger.With(zap.String("executor", "Okx")),
	}
}

// Submit 提交永续限价单并附加止盈止损
// 保证金乘杠杆得名义价值，按限价换算基础币数量，再经 ctVal 换算张数并按 lotSz 向下对齐
func (e *OkxExecutor) Submit(ctx context.Context, intent model.TradeIntent) (*model.OrderResult, error) {
	if err := intent.Validate(); err != nil {
		return nil, err
	}
	instID := service.NormalizeInstID(intent.InstID)
	if !strings.HasSuffix(instID, "-SWAP") {
		return nil, &model.ValidationError{InstID: instID, Reason: "only perpetual swaps are supported"}
	}

	// 1. 可用保证金检查，不足立即失败
	available, err := e.availableBalance(ctx, e.marginCcy)
	if err != nil {
		return nil, err
	}
	if available < intent.MarginAmount {
		return nil, &model.InsufficientBalanceError{
			Currency:  e.marginCcy,
			Available: available,
			Required:  intent.MarginAmount,
		}
	}

	// 2. 持仓模式对齐，必须先于杠杆设置和下单
	if err := e.reconcilePosMode(ctx, instID, intent.DesiredPosMode()); err != nil {
		return nil, err
	}

	// 3. 设置杠杆，交易所会缓存该配置
	if err := e.setLeverage(ctx, instID, intent); err != nil {
		return nil, err
	}

	// 4. 保证金 * 杠杆 -> 名义价值 -> 基础币数量 -> 合约张数
	spec, err := e.instruments.Resolve(ctx, instID)
	if err != nil {
		return nil, err
	}
	if spec.ContractValue <= 0 {
		return nil, &model.ValidationError{InstID: instID, Reason: "instrument has no ctVal"}
	}
	notional := intent.MarginAmount * float64(intent.Leverage)
	baseSize := notional / intent.LimitPrice
	contracts := baseSize / spec.ContractValue

	sz, err := quant.QuantizeSize(contracts, spec.LotSize)
	if err != nil {
		if errors.Is(err, quant.ErrSizeTooSmall) {
			return nil, &model.ValidationError{InstID: instID, Reason: "quantized size is zero, below minimum lot"}
		}
		return nil, &model.ValidationError{InstID: instID, Reason: err.Error()}
	}

	clOrdID := e.clientOrderID(intent, instID, notional)

	req := api.OrderRequest{
		InstID:  instID,
		TdMode:  string(intent.MarginMode),
		Side:    string(intent.Side),
		PosSide: string(intent.PosSide),
		OrdType: "limit",
		Px:      formatFloat(intent.LimitPrice),
		Sz:      sz,
		ClOrdID: clOrdID,
	}
	attach := api.AttachAlgoOrder{}
	if intent.TakeProfit > 0 {
		attach.TpTriggerPx = formatFloat(intent.TakeProfit)
		attach.TpOrdPx = "-1" // -1 表示触发后以市价成交
	}
	if intent.StopLoss > 0 {
		attach.SlTriggerPx = formatFloat(intent.StopLoss)
		attach.SlOrdPx = "-1"
	}
	req.AttachAlgoOrds = []api.AttachAlgoOrder{attach}

	e.logger.Info("Submitting perp limit order",
		zap.String("instId", instID),
		zap.String("side", req.Side),
		zap.String("posSide", req.PosSide),
		zap.String("sz", sz),
		zap.String("px", req.Px),
		zap.String("clOrdId", clOrdID))

	orderData, resp, err := e.placeOrder(ctx, instID, req)
	if err != nil {
		return nil, err
	}
	metrics.OrdersTotal.WithLabelValues(instID, req.Side).Inc()

	return &model.OrderResult{
		InstID:        instID,
		Side:          intent.Side,
		PosSide:       intent.PosSide,
		MarginMode:    intent.MarginMode,
		Leverage:      intent.Leverage,
		OrderID:       orderData.OrdID,
		ClientOrderID: clOrdID,
		Price:         intent.LimitPrice,
		Size:          sz,
		TakeProfit:    intent.TakeProfit,
		StopLoss:      intent.StopLoss,
		Raw:           resp.Data,
	}, nil
}

// Close 平掉指定方向的持仓（reduce-only 限价单，默认全平）
// 沿用持仓现有的保证金模式，不再做模式/杠杆对齐
func (e *OkxExecutor) Close(ctx context.Context, instID string, posSide model.PosSide, limitPrice float64) (*model.OrderResult, error) {
	instID = service.NormalizeInstID(instID)
	if !strings.HasSuffix(instID, "-SWAP") {
		return nil, &model.ValidationError{InstID: instID, Reason: "only perpetual swaps are supported"}
	}
	if posSide != model.PosSideLong && posSide != model.PosSideShort {
		return nil, &model.ValidationError{InstID: instID, Reason: "posSide must be long or short"}
	}
	if limitPrice <= 0 {
		return nil, &model.ValidationError{InstID: instID, Reason: "limit price must be > 0"}
	}

	pos, err := e.findPosition(ctx, instID, posSide)
	if err != nil {
		return nil, err
	}
	if pos.Size <= 0 {
		return nil, &model.ValidationError{InstID: instID, Reason: fmt.Sprintf("no open %s position", posSide)}
	}

	spec, err := e.instruments.Resolve(ctx, instID)
	if err != nil {
		return nil, err
	}
	sz, err := quant.QuantizeSize(pos.Size, spec.LotSize)
	if err != nil {
		if errors.Is(err, quant.ErrSizeTooSmall) {
			return nil, &model.ValidationError{InstID: instID, Reason: "position size below minimum lot"}
		}
		return nil, &model.ValidationError{InstID: instID, Reason: err.Error()}
	}

	side := model.SideSell
	if posSide == model.PosSideShort {
		side = model.SideBuy
	}
	tdMode := pos.MarginMode
	if tdMode == "" {
		tdMode = model.MarginIsolated
	}
	clOrdID := fmt.Sprintf("close%s%s%s",
		time.Now().Format("20060102"), posSide, uuidSuffix(4))

	req := api.OrderRequest{
		InstID:     instID,
		TdMode:     string(tdMode),
		Side:       string(side),
		PosSide:    string(posSide),
		OrdType:    "limit",
		Px:         formatFloat(limitPrice),
		Sz:         sz,
		ClOrdID:    clOrdID,
		ReduceOnly: true,
	}

	e.logger.Info("Submitting reduce-only close order",
		zap.String("instId", instID),
		zap.String("posSide", string(posSide)),
		zap.String("sz", sz),
		zap.String("px", req.Px))

	orderData, resp, err := e.placeOrder(ctx, instID, req)
	if err != nil {
		return nil, err
	}
	metrics.OrdersTotal.WithLabelValues(instID, req.Side).Inc()

	return &model.OrderResult{
		InstID:        instID,
		Side:          side,
		PosSide:       posSide,
		MarginMode:    tdMode,
		OrderID:       orderData.OrdID,
		ClientOrderID: clOrdID,
		Price:         limitPrice,
		Size:          sz,
		Raw:           resp.Data,
	}, nil
}

// availableBalance 查询保证金币种的可用余额
func (e *OkxExecutor) availableBalance(ctx context.Context, ccy string) (float64, error) {
	resp, err := api.WithRetry(ctx, e.retry, func(ctx context.Context) (*api.Response, error) {
		return e.account.GetBalance(ctx, ccy)
	})
	if err != nil {
		return 0, err
	}
	if !resp.IsOK() {
		return 0, &model.ExchangeRejectionError{Code: resp.Code, Msg: resp.Msg, Raw: resp.Data}
	}
	rows, err := api.DecodeData[api.BalanceData](resp)
	if err != nil {
		return 0, err
	}
	for _, row := range rows {
		for _, detail := range row.Details {
			if detail.Ccy != ccy {
				continue
			}
			// availBal 解析失败按 0 处理，走余额不足分支
			avail, err := service.StringToFloat(detail.AvailBal)
			if err != nil {
				return 0, nil
			}
			return avail, nil
		}
	}
	return 0, nil
}

// reconcilePosMode 当前持仓模式与意图不符时切换
// 读取当前配置失败时视为未知，直接尝试切换
func (e *OkxExecutor) reconcilePosMode(ctx context.Context, instID, desired string) error {
	current := ""
	resp, err := api.WithRetry(ctx, e.retry, func(ctx context.Context) (*api.Response, error) {
		return e.account.GetAccountConfig(ctx)
	})
	if err == nil && resp.IsOK() {
		if rows, derr := api.DecodeData[api.AccountConfigData](resp); derr == nil && len(rows) > 0 {
			current = rows[0].PosMode
		}
	}
	if current == desired {
		return nil
	}

	switchResp, err := api.WithRetry(ctx, e.retry, func(ctx context.Context) (*api.Response, error) {
		return e.account.SetPositionMode(ctx, desired)
	})
	if err != nil {
		return err
	}
	if !switchResp.IsOK() {
		return &model.ModeReconciliationError{
			InstID: instID, Stage: "set-position-mode",
			Code: switchResp.Code, Msg: switchResp.Msg,
		}
	}
	e.logger.Info("Position mode switched", zap.String("posMode", desired))
	return nil
}

func (e *OkxExecutor) setLeverage(ctx context.Context, instID string, intent model.TradeIntent) error {
	req := api.SetLeverageRequest{
		InstID:  instID,
		MgnMode: string(intent.MarginMode),
		Lever:   strconv.Itoa(intent.Leverage),
	}
	// 逐仓双向持仓时必须带 posSide
	if intent.MarginMode == model.MarginIsolated && intent.PosSide != model.PosSideNet {
		req.PosSide = string(intent.PosSide)
	}
	resp, err := api.WithRetry(ctx, e.retry, func(ctx context.Context) (*api.Response, error) {
		return e.account.SetLeverage(ctx, req)
	})
	if err != nil {
		return err
	}
	if !resp.IsOK() {
		return &model.ModeReconciliationError{
			InstID: instID, Stage: "set-leverage",
			Code: resp.Code, Msg: resp.Msg,
		}
	}
	return nil
}

func (e *OkxExecutor) findPosition(ctx context.Context, instID string, posSide model.PosSide) (*model.Position, error) {
	resp, err := api.WithRetry(ctx, e.retry, func(ctx context.Context) (*api.Response, error) {
		return e.account.GetPositions(ctx, instID)
	})
	if err != nil {
		return nil, err
	}
	if !resp.IsOK() {
		return nil, &model.ExchangeRejectionError{InstID: instID, Code: resp.Code, Msg: resp.Msg, Raw: resp.Data}
	}
	rows, err := api.DecodeData[api.PositionData](resp)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.PosSide != string(posSide) {
			continue
		}
		size, _ := service.StringToFloat(row.Pos)
		avgPx, _ := service.StringToFloat(row.AvgPx)
		return &model.Position{
			InstID:     instID,
			PosSide:    posSide,
			Size:       size,
			AvgPrice:   avgPx,
			MarginMode: model.MarginMode(row.MgnMode),
		}, nil
	}
	return nil, &model.ValidationError{InstID: instID, Reason: fmt.Sprintf("no %s position found", posSide)}
}

// placeOrder 经重试包装提交订单，并做顶层 code 与单级 sCode 两道检查
func (e *OkxExecutor) placeOrder(ctx context.Context, instID string, req api.OrderRequest) (*api.OrderData, *api.Response, error) {
	resp, err := api.WithRetry(ctx, e.retry, func(ctx context.Context) (*api.Response, error) {
		return e.trade.PlaceOrder(ctx, req)
	})
	if err != nil {
		return nil, nil, err
	}
	if !resp.IsOK() {
		return nil, nil, &model.ExchangeRejectionError{InstID: instID, Code: resp.Code, Msg: resp.Msg, Raw: resp.Data}
	}
	rows, err := api.DecodeData[api.OrderData](resp)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, &model.ExchangeRejectionError{InstID: instID, Code: resp.Code, Msg: "empty order data", Raw: resp.Data}
	}
	orderData := rows[0]
	if orderData.SCode != "" && orderData.SCode != "0" {
		return nil, nil, &model.ExchangeRejectionError{InstID: instID, Code: orderData.SCode, Msg: orderData.SMsg, Raw: resp.Data}
	}
	return &orderData, resp, nil
}

// clientOrderID 可追溯的客户端订单号：日期+方向+持仓侧+币种+名义金额+杠杆+随机后缀
// 随机后缀保证每次提交唯一，不用于交易所侧的幂等去重
func (e *OkxExecutor) clientOrderID(intent model.TradeIntent, instID string, notional float64) string {
	posLabel := "short"
	if intent.PosSide == model.PosSideLong {
		posLabel = "long"
	}
	return fmt.Sprintf("%s%s%s%s%d%d%s",
		time.Now().Format("20060102"),
		intent.Side,
		posLabel,
		service.BaseAsset(instID),
		int(notional),
		intent.Leverage,
		uuidSuffix(4))
}

func uuidSuffix(n int) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n > len(hex) {
		n = len(hex)
	}
	return hex[:n]
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
