package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"okx-trigger-trader/internal/service"
)

// RestClient OKX V5 REST 客户端，实现 api 包的全部能力接口
// 显式构造一次，注入到所有需要它的组件，不使用包级单例
type RestClient struct {
	cfg    *service.ExchangeConfig
	http   *http.Client
	logger *zap.Logger
}

func NewRestClient(cfg *service.ExchangeConfig, logger *zap.Logger) *RestClient {
	return &RestClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: logger.With(zap.String("component", "okx-rest")),
	}
}

// do 发起一次签名请求：sign = Base64(HMAC-SHA256(ts + method + requestPath + body))
func (c *RestClient) do(ctx context.Context, method, path string, query url.Values, body any) (*Response, error) {
	requestPath := path
	if len(query) > 0 {
		requestPath += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.RESTURL+requestPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	ts := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	mac := hmac.New(sha256.New, []byte(c.cfg.SecretKey))
	mac.Write([]byte(ts + method + requestPath + string(payload)))
	sign := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OK-ACCESS-KEY", c.cfg.APIKey)
	req.Header.Set("OK-ACCESS-SIGN", sign)
	req.Header.Set("OK-ACCESS-TIMESTAMP", ts)
	req.Header.Set("OK-ACCESS-PASSPHRASE", c.cfg.Passphrase)
	if c.cfg.Simulated {
		req.Header.Set("x-simulated-trading", "1")
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("okx request %s %s: %w", method, path, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read okx response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode okx response (%s %s, http %d): %w", method, path, httpResp.StatusCode, err)
	}
	if !resp.IsOK() {
		c.logger.Warn("okx returned non-zero code",
			zap.String("path", path), zap.String("code", resp.Code), zap.String("msg", resp.Msg))
	}
	return &resp, nil
}

func (c *RestClient) GetTicker(ctx context.Context, instID string) (*Response, error) {
	q := url.Values{}
	q.Set("instId", instID)
	return c.do(ctx, http.MethodGet, "/api/v5/market/ticker", q, nil)
}

func (c *RestClient) GetInstruments(ctx context.Context, instType, instID string) (*Response, error) {
	q := url.Values{}
	q.Set("instType", instType)
	if instID != "" {
		q.Set("instId", instID)
	}
	return c.do(ctx, http.MethodGet, "/api/v5/public/instruments", q, nil)
}

func (c *RestClient) GetBalance(ctx context.Context, ccy string) (*Response, error) {
	q := url.Values{}
	if ccy != "" {
		q.Set("ccy", ccy)
	}
	return c.do(ctx, http.MethodGet, "/api/v5/account/balance", q, nil)
}

func (c *RestClient) GetAccountConfig(ctx context.Context) (*Response, error) {
	return c.do(ctx, http.MethodGet, "/api/v5/account/config", nil, nil)
}

func (c *RestClient) SetPositionMode(ctx context.Context, posMode string) (*Response, error) {
	return c.do(ctx, http.MethodPost, "/api/v5/account/set-position-mode", nil,
		map[string]string{"posMode": posMode})
}

func (c *RestClient) SetLeverage(ctx context.Context, req SetLeverageRequest) (*Response, error) {
	return c.do(ctx, http.MethodPost, "/api/v5/account/set-leverage", nil, req)
}

func (c *RestClient) GetPositions(ctx context.Context, instID string) (*Response, error) {
	q := url.Values{}
	if instID != "" {
		q.Set("instId", instID)
	}
	return c.do(ctx, http.MethodGet, "/api/v5/account/positions", q, nil)
}

func (c *RestClient) PlaceOrder(ctx context.Context, req OrderRequest) (*Response, error) {
	return c.do(ctx, http.MethodPost, "/api/v5/trade/order", nil, req)
}
