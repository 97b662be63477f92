package strategy

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"okx-trigger-trader/internal/api"
	"okx-trigger-trader/internal/model"
	"okx-trigger-trader/internal/subscription"
)

type noopFeed struct{}

func (noopFeed) EnsureSubscribed(instID string) error { return nil }

func testFlow() *TriggerFlow {
	r := subscription.NewRegistry(nil, api.DefaultRetryPolicy(), zap.NewNop())
	r.SetFeed(noopFeed{})
	return NewTriggerFlow(r, zap.NewNop())
}

func TestBeginReturnsPendingPayload(t *testing.T) {
	f := testFlow()

	pending, err := f.Begin("BTC/USDT:USDT", 90000, model.DirectionAbove, 30*time.Minute, subscription.Options{})
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if pending.Status != "waiting_for_price" {
		t.Fatalf("unexpected status %s", pending.Status)
	}
	if pending.InstID != "BTC-USDT-SWAP" {
		t.Fatalf("instId not normalized: %s", pending.InstID)
	}
	if pending.TargetPrice != 90000 || pending.Direction != model.DirectionAbove {
		t.Fatalf("pending does not echo the request: %+v", pending)
	}
	if pending.Timeout != 1800 {
		t.Fatalf("timeout not in seconds: %v", pending.Timeout)
	}
	if f.State() != StateWaiting {
		t.Fatalf("flow must be waiting, got %s", f.State())
	}
	if f.Watcher() == nil {
		t.Fatal("flow must hold the registered watcher")
	}
}

func TestBeginRejectsDoubleWait(t *testing.T) {
	f := testFlow()

	if _, err := f.Begin("BTC-USDT-SWAP", 90000, model.DirectionAbove, time.Minute, subscription.Options{}); err != nil {
		t.Fatalf("first Begin failed: %v", err)
	}
	_, err := f.Begin("ETH-USDT-SWAP", 3000, model.DirectionBelow, time.Minute, subscription.Options{})
	if err == nil {
		t.Fatal("second Begin while waiting must fail")
	}
}

func TestResumeTriggered(t *testing.T) {
	f := testFlow()
	if _, err := f.Begin("BTC-USDT-SWAP", 90000, model.DirectionAbove, time.Minute, subscription.Options{}); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	result, err := f.Resume(ResumePayload{Status: "triggered", LastPrice: 90010})
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if result.LastPrice != 90010 {
		t.Fatalf("last price not carried: %v", result.LastPrice)
	}
	if f.State() != StateTriggered {
		t.Fatalf("expected TRIGGERED, got %s", f.State())
	}
}

func TestResumeTimeout(t *testing.T) {
	f := testFlow()
	if _, err := f.Begin("BTC-USDT-SWAP", 90000, model.DirectionAbove, time.Minute, subscription.Options{}); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	if _, err := f.Resume(ResumePayload{Status: "timeout"}); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if f.State() != StateTimedOut {
		t.Fatalf("expected TIMED_OUT, got %s", f.State())
	}
}

func TestResumeRejectsInvalidStatus(t *testing.T) {
	f := testFlow()
	if _, err := f.Begin("BTC-USDT-SWAP", 90000, model.DirectionAbove, time.Minute, subscription.Options{}); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	if _, err := f.Resume(ResumePayload{Status: "cancelled"}); err == nil {
		t.Fatal("invalid resume status must be rejected")
	}
	// 非法状态不改变流程，仍可正常恢复
	if f.State() != StateWaiting {
		t.Fatalf("flow must still be waiting, got %s", f.State())
	}
	if _, err := f.Resume(ResumePayload{Status: "triggered", LastPrice: 90001}); err != nil {
		t.Fatalf("flow should still accept a valid resume: %v", err)
	}
}

func TestResumeRequiresWaiting(t *testing.T) {
	f := testFlow()
	if _, err := f.Resume(ResumePayload{Status: "triggered"}); err == nil {
		t.Fatal("resuming an idle flow must fail")
	}
}

func TestFlowCanRestartAfterCompletion(t *testing.T) {
	f := testFlow()
	if _, err := f.Begin("BTC-USDT-SWAP", 90000, model.DirectionAbove, time.Minute, subscription.Options{}); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if _, err := f.Resume(ResumePayload{Status: "timeout"}); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}

	pending, err := f.Begin("BTC-USDT-SWAP", 91000, model.DirectionAbove, time.Minute, subscription.Options{})
	if err != nil {
		t.Fatalf("restart after completion failed: %v", err)
	}
	if pending.TargetPrice != 91000 {
		t.Fatalf("new wait must use the new target: %+v", pending)
	}
	if f.State() != StateWaiting {
		t.Fatalf("expected WAITING after restart, got %s", f.State())
	}
}
