package symbol

import "strings"

type KuCoinConverter struct{}

// ToExchange 输出 KuCoin 的连字符形式（"ethusdt" -> "ETH-USDT"）。
// 报价资产按 quoteCurrencies 的优先级匹配；都不命中且长度大于 3 时，
// 退化为按最后三位拆分。该回退对报价资产不是三个字符的交易对会拆错
// （例如 DOGE 计价），属于沿用已久的启发式行为。
func (KuCoinConverter) ToExchange(internal string) string {
	s := strings.ToUpper(strings.TrimSpace(internal))
	if s == "" {
		return ""
	}
	if sym := Parse(s); sym.Base != "" && sym.Quote != "" {
		return sym.KuCoin()
	}
	if len(s) > 3 && !strings.ContainsAny(s, "/-") {
		return s[:len(s)-3] + "-" + s[len(s)-3:]
	}
	return s
}

func (KuCoinConverter) FromExchange(raw string) string {
	return Parse(raw).Internal()
}

func (KuCoinConverter) Format() Format {
	return FormatKuCoin
}

var KuCoin = KuCoinConverter{}
