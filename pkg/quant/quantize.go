// Package quant 提供下单数量的精确量化
// 全部使用 Decimal 运算，避免二进制浮点截断 (如 5.1/0.01 -> 509.9999...) 造成持仓残留
package quant

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrSizeTooSmall 量化后数量为 0，低于最小下单手数
var ErrSizeTooSmall = errors.New("order size below minimum lot size")

// QuantizeSize 将请求数量按 lotSz 向下对齐到整数倍
// 只向下取整，绝不向上，防止意外超出保证金可承受的名义价值
// 返回值带 lotSz 同等精度的字符串，可直接作为 sz 字段下单
func QuantizeSize(size float64, lotSize string) (string, error) {
	step, err := decimal.NewFromString(lotSize)
	if err != nil {
		return "", fmt.Errorf("unparsable lotSz %q: %w", lotSize, err)
	}
	if step.Sign() <= 0 {
		return "", fmt.Errorf("invalid lotSz: %s", lotSize)
	}

	sz := decimal.NewFromFloat(size)
	multiples := sz.Div(step).Floor()
	quantized := multiples.Mul(step)
	if quantized.Sign() <= 0 {
		return "", ErrSizeTooSmall
	}

	precision := int32(0)
	if step.Exponent() < 0 {
		precision = -step.Exponent()
	}
	return quantized.StringFixed(precision), nil
}
