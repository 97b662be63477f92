package subscription

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"okx-trigger-trader/internal/api"
	"okx-trigger-trader/internal/model"
)

type fakeFeed struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeFeed) EnsureSubscribed(instID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, instID)
	return f.err
}

func (f *fakeFeed) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeMarket struct {
	mu     sync.Mutex
	calls  int
	prices []float64 // 依次返回，超出后重复最后一个
}

func (m *fakeMarket) GetTicker(ctx context.Context, instID string) (*api.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	price := m.prices[len(m.prices)-1]
	if m.calls < len(m.prices) {
		price = m.prices[m.calls]
	}
	m.calls++
	data := fmt.Sprintf(`[{"instId":%q,"last":"%v"}]`, instID, price)
	return &api.Response{Code: "0", Data: []byte(data)}, nil
}

func (m *fakeMarket) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func testRegistry(feed Feed, market api.MarketDataAPI) *Registry {
	r := NewRegistry(market, api.RetryPolicy{
		RetryableCodes: map[string]struct{}{"50001": {}},
		MaxRetries:     2,
		BaseDelay:      time.Millisecond,
	}, zap.NewNop())
	if feed != nil {
		r.SetFeed(feed)
	}
	return r
}

func TestOnTickTriggersAndWakes(t *testing.T) {
	feed := &fakeFeed{}
	r := testRegistry(feed, nil)

	w := r.Subscribe("BTC/USDT:USDT", 100, model.DirectionAbove, Options{Tolerance: 0.5})
	if w.InstID != "BTC-USDT-SWAP" {
		t.Fatalf("instId not normalized: %s", w.InstID)
	}
	if r.WatcherStatus(w) != model.StatusScheduled {
		t.Fatalf("new watcher must be scheduled")
	}

	r.OnTick(model.Tick{InstID: "BTC-USDT-SWAP", Price: 99.4})
	if r.WatcherStatus(w) != model.StatusScheduled {
		t.Fatalf("non-matching tick must not trigger")
	}

	r.OnTick(model.Tick{InstID: "BTC-USDT-SWAP", Price: 99.6})
	if r.WatcherStatus(w) != model.StatusTriggered {
		t.Fatalf("matching tick must trigger")
	}
	if w.LastPrice != 99.6 {
		t.Fatalf("last price not recorded: %v", w.LastPrice)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.AwaitWake(ctx); err != nil {
		t.Fatalf("wake signal not set: %v", err)
	}

	trigger := r.LastTrigger()
	if trigger == nil || trigger.Mode != "websocket" || trigger.Status != model.StatusTriggered {
		t.Fatalf("unexpected trigger record: %+v", trigger)
	}

	// 已触发的 Watcher 至多触发一次：再次命中不应改变任何状态
	r.ResetLastTrigger()
	r.OnTick(model.Tick{InstID: "BTC-USDT-SWAP", Price: 200})
	if r.LastTrigger() != nil {
		t.Fatalf("triggered watcher must be removed from the active list")
	}
}

func TestOneTickTriggersMultipleWatchers(t *testing.T) {
	r := testRegistry(&fakeFeed{}, nil)

	w1 := r.Subscribe("ETH-USDT-SWAP", 3000, model.DirectionAbove, Options{})
	w2 := r.Subscribe("ETH-USDT-SWAP", 2900, model.DirectionAbove, Options{})
	w3 := r.Subscribe("ETH-USDT-SWAP", 3100, model.DirectionAbove, Options{})

	r.OnTick(model.Tick{InstID: "ETH-USDT-SWAP", Price: 3050})
	if r.WatcherStatus(w1) != model.StatusTriggered || r.WatcherStatus(w2) != model.StatusTriggered {
		t.Fatalf("both matching watchers must trigger in one pass")
	}
	if r.WatcherStatus(w3) != model.StatusScheduled {
		t.Fatalf("non-matching watcher must stay scheduled")
	}
}

func TestSubscribeRequestsFeedPerWatcher(t *testing.T) {
	feed := &fakeFeed{}
	r := testRegistry(feed, nil)

	r.Subscribe("BTC-USDT-SWAP", 100, model.DirectionAbove, Options{})
	r.Subscribe("BTC-USDT-SWAP", 105, model.DirectionBelow, Options{})

	// 去重发生在连接器层；注册表每次订阅都会确认通道存在
	if feed.callCount() != 2 {
		t.Fatalf("expected 2 EnsureSubscribed calls, got %d", feed.callCount())
	}
}

func TestFeedFailureFallsBackToPolling(t *testing.T) {
	feed := &fakeFeed{err: &model.FeedUnavailableError{Reason: "dial refused"}}
	market := &fakeMarket{prices: []float64{101}}
	r := testRegistry(feed, market)

	r.Subscribe("BTC-USDT-SWAP", 100, model.DirectionAbove, Options{PollInterval: time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.AwaitWake(ctx); err != nil {
		t.Fatalf("polling fallback never triggered: %v", err)
	}
	trigger := r.LastTrigger()
	if trigger == nil || trigger.Mode != "polling" {
		t.Fatalf("expected polling trigger, got %+v", trigger)
	}
}

func TestPollingExpiresAfterMaxChecks(t *testing.T) {
	feed := &fakeFeed{err: &model.FeedUnavailableError{Reason: "no ws"}}
	market := &fakeMarket{prices: []float64{90}} // 永不命中 above 100
	r := testRegistry(feed, market)

	w := r.Subscribe("BTC-USDT-SWAP", 100, model.DirectionAbove,
		Options{PollInterval: time.Millisecond, MaxChecks: 3})

	deadline := time.After(2 * time.Second)
	for r.WatcherStatus(w) != model.StatusExpired {
		select {
		case <-deadline:
			t.Fatalf("watcher never expired, status=%s", r.WatcherStatus(w))
		case <-time.After(5 * time.Millisecond):
		}
	}
	if got := market.callCount(); got != 3 {
		t.Fatalf("expected exactly 3 samples, got %d", got)
	}
	trigger := r.LastTrigger()
	if trigger == nil || trigger.Status != model.StatusExpired {
		t.Fatalf("expected expired trigger record, got %+v", trigger)
	}
}

func TestWakeSignalClearAndRearm(t *testing.T) {
	s := NewWakeSignal()
	s.Set()
	s.Set() // 幂等
	if err := s.Wait(context.Background()); err != nil {
		t.Fatalf("wait on a set signal must return immediately: %v", err)
	}

	s.Clear()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("cleared signal must block again, got %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Wait(context.Background()) }()
	time.Sleep(10 * time.Millisecond)
	s.Set()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("waiter not released: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter never woke after re-arm")
	}
}
