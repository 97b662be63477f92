package api

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"okx-trigger-trader/internal/metrics"
	"okx-trigger-trader/internal/model"
	"okx-trigger-trader/internal/service"
)

// okxWsMessage OKX V5 公共频道通用响应结构
type okxWsMessage struct {
	Arg struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
	Data  json.RawMessage `json:"data"` // 延迟解析
	Event string          `json:"event"`
}

// okxWsTicker tickers 频道数据，最新价在 last（个别消息用 px）
type okxWsTicker struct {
	InstID string `json:"instId"`
	Last   string `json:"last"`
	Px     string `json:"px"`
	Ts     string `json:"ts"`
}

// TickSink 接收解析后行情的回调，由 subscription.Registry 实现
type TickSink interface {
	OnTick(tick model.Tick)
}

// Connector 懒加载的 OKX 公共频道连接器
// 首次订阅时才建连；建连过程含阻塞点，由互斥锁保证并发订阅方不会各开一条连接
// 同一 instId 只发一次订阅，后续 Watcher 复用已有流
type Connector struct {
	wsURL  string
	sink   TickSink
	logger *zap.Logger

	mu         sync.Mutex // 保护 conn/connected/subscribed
	conn       *websocket.Conn
	connected  bool
	subscribed map[string]struct{}
}

func NewConnector(wsURL string, sink TickSink, logger *zap.Logger) *Connector {
	return &Connector{
		wsURL:      wsURL,
		sink:       sink,
		logger:     logger.With(zap.String("component", "okx-ws")),
		subscribed: make(map[string]struct{}),
	}
}

// EnsureSubscribed 确保 instId 的 tickers 频道已订阅（幂等）
// 连接或订阅失败返回 FeedUnavailableError，调用方应回退为轮询
func (c *Connector) EnsureSubscribed(instID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		conn, _, err := websocket.DefaultDialer.Dial(c.wsURL, nil)
		if err != nil {
			return &model.FeedUnavailableError{Reason: "ws dial failed", Err: err}
		}
		c.conn = conn
		c.connected = true
		go c.readLoop(conn)
		c.logger.Info("Connected to Okx public channel", zap.String("URL", c.wsURL))
	}

	if _, ok := c.subscribed[instID]; ok {
		return nil
	}

	subscribeMsg := map[string]interface{}{
		"op":   "subscribe",
		"args": []map[string]string{{"channel": "tickers", "instId": instID}},
	}
	if err := c.conn.WriteJSON(subscribeMsg); err != nil {
		return &model.FeedUnavailableError{Reason: "ws subscribe failed", Err: err}
	}
	c.subscribed[instID] = struct{}{}
	c.logger.Info("Subscribed to tickers stream", zap.String("instId", instID))
	return nil
}

// readLoop 持续读取 WS 消息并转发给 TickSink
// 读失败时丢弃连接并清空订阅集合，后续 Subscribe 会重新建连重订
func (c *Connector) readLoop(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			c.logger.Error("Error reading WS message, dropping connection", zap.Error(err))
			c.reset(conn)
			return
		}

		var wsResp okxWsMessage
		if err := json.Unmarshal(message, &wsResp); err != nil {
			continue
		}
		if wsResp.Event != "" {
			continue // 忽略订阅成功/失败等事件回执
		}
		if wsResp.Arg.Channel != "tickers" || len(wsResp.Data) == 0 {
			continue
		}

		var tickers []okxWsTicker
		if err := json.Unmarshal(wsResp.Data, &tickers); err != nil {
			c.logger.Error("Tickers data unmarshal error", zap.Error(err))
			continue
		}
		if len(tickers) == 0 {
			continue
		}

		okxTicker := tickers[0] // 仅处理最新的快照
		rawPx := okxTicker.Last
		if rawPx == "" {
			rawPx = okxTicker.Px
		}
		price, err := service.StringToFloat(rawPx)
		if err != nil {
			continue
		}
		ts, _ := service.StringToInt64(okxTicker.Ts)

		instID := okxTicker.InstID
		if instID == "" {
			instID = wsResp.Arg.InstID
		}

		metrics.TicksTotal.WithLabelValues(instID).Inc()
		c.sink.OnTick(model.Tick{InstID: instID, Price: price, Timestamp: ts})
	}
}

// reset 丢弃失效连接；只清理仍归属该连接的状态，避免覆盖新建的连接
func (c *Connector) reset(conn *websocket.Conn) {
	_ = conn.Close()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.conn = nil
		c.connected = false
		c.subscribed = make(map[string]struct{})
	}
}
