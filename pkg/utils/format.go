// Package utils provides shared utility functions.
package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatUSD formats an amount as dollars with thousands separators, e.g. $12,345.68.
func FormatUSD(amount float64) string {
	return formatMoney(amount, 2, "$")
}

// FormatAsset formats an asset quantity with six decimals and no symbol.
func FormatAsset(qty float64) string {
	return formatMoney(qty, 6, "")
}

// FormatPrice formats a quote. Sub-dollar prices keep four decimals.
func FormatPrice(price float64) string {
	places := int32(2)
	if price != 0 && price < 1 && price > -1 {
		places = 4
	}
	return formatMoney(price, places, "$")
}

func formatMoney(amount float64, places int32, symbol string) string {
	d := decimal.NewFromFloat(amount).Round(places)
	negative := d.IsNegative()
	str := d.Abs().StringFixed(places)

	intPart, decPart := str, ""
	if i := strings.IndexByte(str, '.'); i >= 0 {
		intPart, decPart = str[:i], str[i:]
	}

	result := symbol + groupThousands(intPart) + decPart
	if negative {
		result = "-" + result
	}
	return result
}

// groupThousands inserts commas every three digits from the right.
func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	var b strings.Builder
	head := n % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatPnL formats P&L with an explicit sign.
func FormatPnL(pnl float64) string {
	formatted := FormatUSD(pnl)
	if decimal.NewFromFloat(pnl).Round(2).IsPositive() {
		return "+" + formatted
	}
	return formatted
}

// FormatCompact formats large amounts as K/M/B.
func FormatCompact(amount float64) string {
	abs := amount
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 1e9:
		return fmt.Sprintf("$%.2fB", amount/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("$%.2fM", amount/1e6)
	case abs >= 1e4:
		return fmt.Sprintf("$%.2fK", amount/1e3)
	}
	return FormatUSD(amount)
}
