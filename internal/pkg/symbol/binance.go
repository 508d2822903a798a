package symbol

import "strings"

type BinanceConverter struct{}

var binanceSeparators = strings.NewReplacer("/", "", "-", "")

// ToExchange 输出 Binance 的拼接形式（"eth/usdt" -> "ETHUSDT"）。
// 已是拼接形式的输入只做大写与去空白，不改结构。
func (BinanceConverter) ToExchange(internal string) string {
	s := strings.ToUpper(strings.TrimSpace(internal))
	if s == "" {
		return ""
	}
	return binanceSeparators.Replace(s)
}

func (BinanceConverter) FromExchange(raw string) string {
	return Parse(raw).Internal()
}

func (BinanceConverter) Format() Format {
	return FormatBinance
}

var Binance = BinanceConverter{}
