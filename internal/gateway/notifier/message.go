package notifier

import (
	"fmt"
	"strings"
	"time"
)

// ExecutionNotice 描述一次订单执行结果的推送内容。
type ExecutionNotice struct {
	Ticker    string
	Action    string // "entry" / "trim" / "exit" / "stop" / "add" / "escalated"
	Symbol    string // 完整合约代码
	Quantity  int
	Price     float64 // 0 表示市价
	Channel   string
	Timestamp time.Time
}

// RenderMarkdown 生成推送文本。
func (n ExecutionNotice) RenderMarkdown() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("*%s* %s\n", strings.ToUpper(n.Ticker), n.Action))
	b.WriteString(fmt.Sprintf("`%s` x%d", n.Symbol, n.Quantity))
	if n.Price > 0 {
		b.WriteString(fmt.Sprintf(" @ %.2f", n.Price))
	} else {
		b.WriteString(" @ market")
	}
	b.WriteString("\n")
	if n.Channel != "" {
		b.WriteString("来源频道：" + n.Channel + "\n")
	}
	ts := n.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	b.WriteString("时间：" + ts.Format("2006-01-02 15:04:05 MST"))
	return b.String()
}

// Notify 渲染并发送执行通知，失败只记日志语义（由调用方处理错误）。
func Notify(n TextNotifier, notice ExecutionNotice) error {
	if n == nil {
		return nil
	}
	return n.SendText(notice.RenderMarkdown())
}
