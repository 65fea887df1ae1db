package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatAmount renders an amount in minor units (kobo) with the currency symbol,
// grouping thousands and dropping a zero fractional part.
func FormatAmount(amount int64, symbol string) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	major := groupThousands(strconv.FormatInt(amount/100, 10))
	if minor := amount % 100; minor != 0 {
		return fmt.Sprintf("%s%s%s.%02d", sign, symbol, major, minor)
	}
	return sign + symbol + major
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
