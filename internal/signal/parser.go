package signal

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"callout/internal/logger"
	"callout/internal/pkg/occ"
	"callout/internal/types"
)

// Parser 将一条告警文本转换为零或多条 TradeIntent。
// 模式组独立应用：喊单作者措辞不一致，互斥分支会漏单；
// 而模式未命中只代表“没有提取到交易”，不是错误。
type Parser struct {
	registry *Registry
	nowFn    func() time.Time
	log      *logger.TagLogger
}

func NewParser(registry *Registry) *Parser {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Parser{
		registry: registry,
		nowFn:    time.Now,
		log:      logger.Tagged("parser"),
	}
}

// Parse 对文本应用全部模式。畸形捕获记录警告后整条丢弃，绝不产出半成品；
// 同一条消息里重叠模式产出的相同意图只保留一份。
func (p *Parser) Parse(text string) []types.TradeIntent {
	snap := p.registry.Snapshot()
	now := p.nowFn()

	var intents []types.TradeIntent
	for _, pat := range snap.Patterns {
		groups := pat.re.FindStringSubmatch(text)
		if groups == nil {
			continue
		}
		extract, ok := extractors[pat.Name]
		if !ok {
			p.log.Errorf("pattern %q matched but has no extractor", pat.Name)
			continue
		}
		intent, err := extract(groups[1:], now)
		if err != nil {
			p.log.Warnf("pattern %q capture rejected: %v (text=%q)", pat.Name, err, text)
			continue
		}
		if containsIntent(intents, intent) {
			continue
		}
		intents = append(intents, intent)
	}
	return dropShadowedExits(intents)
}

// dropShadowedExits 过滤被 stop 覆盖的无目标 exit：
// "stopped out of X @ 0.80" 会同时命中 stop 与 exit 模式，
// 两者都执行就会重复卖出，限价 stop 优先。
func dropShadowedExits(intents []types.TradeIntent) []types.TradeIntent {
	stops := make(map[string]bool)
	for _, it := range intents {
		if it.Kind == types.IntentStop {
			stops[it.Ticker] = true
		}
	}
	if len(stops) == 0 {
		return intents
	}
	out := intents[:0]
	for _, it := range intents {
		if it.Kind == types.IntentExit && it.DesiredPLPC == nil && stops[it.Ticker] {
			continue
		}
		out = append(out, it)
	}
	return out
}

func containsIntent(list []types.TradeIntent, intent types.TradeIntent) bool {
	for _, existing := range list {
		if existing.Equal(intent) {
			return true
		}
	}
	return false
}

// extractor 将正则捕获组转换为完整意图；任何必填字段解析失败都返回错误。
type extractor func(groups []string, now time.Time) (types.TradeIntent, error)

var extractors = map[string]extractor{
	"entry":   extractEntry,
	"add":     extractAdd,
	"trim":    extractTrim,
	"exit":    extractExit,
	"unnamed": extractUnnamed,
	"filled":  extractFilled,
	"stop":    extractStop,
}

// extractEntry 处理 "in SPY 6/20 420C @ 1.25"，日期与代码顺序可互换，
// 日期缺省取最近的周五。
func extractEntry(g []string, now time.Time) (types.TradeIntent, error) {
	if len(g) < 7 {
		return types.TradeIntent{}, fmt.Errorf("entry pattern needs 7 groups, got %d", len(g))
	}
	ticker := g[0]
	expiration := g[1]
	if ticker == "" {
		expiration = g[2]
		ticker = g[3]
	}
	if ticker == "" {
		return types.TradeIntent{}, fmt.Errorf("entry missing ticker")
	}
	if expiration == "" {
		expiration = occ.NearestFriday(now)
	}
	expiration = normalizeExpiration(expiration)
	strike, err := parsePrice("strike", g[4])
	if err != nil {
		return types.TradeIntent{}, err
	}
	price, err := parsePrice("option price", g[6])
	if err != nil {
		return types.TradeIntent{}, err
	}
	return types.TradeIntent{
		Kind:        types.IntentEntry,
		Ticker:      strings.ToUpper(ticker),
		Expiration:  expiration,
		Strike:      strike,
		OptionType:  strings.ToUpper(g[5]),
		OptionPrice: price,
	}, nil
}

// extractAdd 处理 "added to AFRM, new avg is 1.80"。
func extractAdd(g []string, _ time.Time) (types.TradeIntent, error) {
	if len(g) < 2 {
		return types.TradeIntent{}, fmt.Errorf("add pattern needs 2 groups, got %d", len(g))
	}
	avg, err := parsePrice("desired avg price", g[1])
	if err != nil {
		return types.TradeIntent{}, err
	}
	return types.TradeIntent{
		Kind:            types.IntentAdd,
		Ticker:          strings.ToUpper(g[0]),
		DesiredAvgPrice: avg,
	}, nil
}

// extractTrim 处理 "trimming NVDA @ 50%"。
func extractTrim(g []string, _ time.Time) (types.TradeIntent, error) {
	if len(g) < 2 {
		return types.TradeIntent{}, fmt.Errorf("trim pattern needs 2 groups, got %d", len(g))
	}
	plpc, err := parsePrice("target plpc", g[1])
	if err != nil {
		return types.TradeIntent{}, err
	}
	return types.TradeIntent{
		Kind:        types.IntentTrim,
		Ticker:      strings.ToUpper(g[0]),
		DesiredPLPC: types.PLPC(plpc),
	}, nil
}

// extractExit 处理 "all out of TSLA" / "out of TSLA @ 30%"。
// 百分比缺省表示立即市价离场。
func extractExit(g []string, _ time.Time) (types.TradeIntent, error) {
	if len(g) < 1 || g[0] == "" {
		return types.TradeIntent{}, fmt.Errorf("exit missing ticker")
	}
	intent := types.TradeIntent{
		Kind:   types.IntentExit,
		Ticker: strings.ToUpper(g[0]),
	}
	if len(g) > 1 && g[1] != "" {
		plpc, err := parsePrice("target plpc", g[1])
		if err != nil {
			return types.TradeIntent{}, err
		}
		intent.DesiredPLPC = types.PLPC(plpc)
	}
	return intent, nil
}

// extractUnnamed 处理 `NVDA 120 C 6/20 "1.25"` 形式的无前导词喊单。
func extractUnnamed(g []string, _ time.Time) (types.TradeIntent, error) {
	if len(g) < 5 {
		return types.TradeIntent{}, fmt.Errorf("unnamed pattern needs 5 groups, got %d", len(g))
	}
	strike, err := parsePrice("strike", g[1])
	if err != nil {
		return types.TradeIntent{}, err
	}
	price, err := parsePrice("option price", g[4])
	if err != nil {
		return types.TradeIntent{}, err
	}
	return types.TradeIntent{
		Kind:        types.IntentEntry,
		Ticker:      strings.ToUpper(g[0]),
		Expiration:  normalizeExpiration(g[3]),
		Strike:      strike,
		OptionType:  strings.ToUpper(g[2]),
		OptionPrice: price,
	}, nil
}

// extractFilled 处理 "filled on AFRM June 2025 40 calls ... at 1.25"。
// 月份+年份给不出具体到期日，回落到最近的周五。
func extractFilled(g []string, now time.Time) (types.TradeIntent, error) {
	if len(g) < 5 {
		return types.TradeIntent{}, fmt.Errorf("filled pattern needs 5 groups, got %d", len(g))
	}
	strike, err := parsePrice("strike", g[2])
	if err != nil {
		return types.TradeIntent{}, err
	}
	price, err := parsePrice("option price", g[4])
	if err != nil {
		return types.TradeIntent{}, err
	}
	optionType := "P"
	if strings.EqualFold(g[3], "calls") {
		optionType = "C"
	}
	return types.TradeIntent{
		Kind:        types.IntentEntry,
		Ticker:      strings.ToUpper(g[0]),
		Expiration:  occ.NearestFriday(now),
		Strike:      strike,
		OptionType:  optionType,
		OptionPrice: price,
	}, nil
}

// extractStop 处理 "stopped out of AFRM @ 0.80",限价离场。
func extractStop(g []string, _ time.Time) (types.TradeIntent, error) {
	if len(g) < 2 {
		return types.TradeIntent{}, fmt.Errorf("stop pattern needs 2 groups, got %d", len(g))
	}
	limit, err := parsePrice("stop limit price", g[1])
	if err != nil {
		return types.TradeIntent{}, err
	}
	return types.TradeIntent{
		Kind:       types.IntentStop,
		Ticker:     strings.ToUpper(g[0]),
		LimitPrice: limit,
	}, nil
}

// normalizeExpiration 把 6/20 之类的日期补零成 06/20。
func normalizeExpiration(raw string) string {
	parts := strings.SplitN(raw, "/", 2)
	if len(parts) != 2 {
		return raw
	}
	month, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	day, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return raw
	}
	return fmt.Sprintf("%02d/%02d", month, day)
}

func parsePrice(field, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not numeric", field, raw)
	}
	return v, nil
}
