package service

import (
	"os"
	"strconv"
	"strings"
)

func StringToFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func StringToInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// DefaultPerpSymbols 默认关注的永续合约（ccxt 风格，带结算后缀）
var DefaultPerpSymbols = []string{
	"BTC/USDT:USDT",
	"DOGE/USDT:USDT",
	"ETH/USDT:USDT",
	"SOL/USDT:USDT",
}

// LoadSymbols 从环境变量读取逗号分隔的符号列表，缺省回退到默认值
func LoadSymbols(envVar string, fallback []string) []string {
	if envVar == "" {
		envVar = "OKX_SYMBOLS"
	}
	if fallback == nil {
		fallback = DefaultPerpSymbols
	}
	raw := os.Getenv(envVar)
	if raw == "" {
		return append([]string(nil), fallback...)
	}
	var symbols []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, s)
		}
	}
	if len(symbols) == 0 {
		return append([]string(nil), fallback...)
	}
	return symbols
}

// NormalizeInstID 将 ccxt 风格符号统一为 OKX 永续 instId
// "BTC/USDT:USDT" -> "BTC-USDT-SWAP"；已是 instId 的原样返回
func NormalizeInstID(symbolOrInst string) string {
	if strings.HasSuffix(symbolOrInst, "-SWAP") && strings.Contains(symbolOrInst, "-") {
		return symbolOrInst
	}
	if strings.Contains(symbolOrInst, "/") {
		baseQuote := strings.SplitN(symbolOrInst, ":", 2)[0] // 去掉结算后缀
		parts := strings.SplitN(baseQuote, "/", 2)
		return parts[0] + "-" + parts[1] + "-SWAP"
	}
	return symbolOrInst
}

// BaseAsset 提取基础币种，例如 "BTC-USDT-SWAP" / "BTC/USDT:USDT" -> "BTC"
func BaseAsset(symbolOrInst string) string {
	if strings.Contains(symbolOrInst, "/") {
		return strings.SplitN(symbolOrInst, "/", 2)[0]
	}
	if strings.Contains(symbolOrInst, "-") {
		return strings.SplitN(symbolOrInst, "-", 2)[0]
	}
	return symbolOrInst
}
