package discord

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	cfgpkg "callout/internal/config"
	"callout/internal/logger"
	"callout/internal/source"

	"github.com/chromedp/chromedp"
)

const loginURL = "https://discord.com/login"

// BrowserSource 驱动一个常驻 headless Chrome 会话抓取频道消息。
// 每个频道独占一个 tab，登录只做一次；会话由上层显式构造并注入，
// 不存在进程级单例。
type BrowserSource struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	rootCtx     context.Context
	rootCancel  context.CancelFunc

	email     string
	password  string
	loginWait time.Duration
	log       *logger.TagLogger

	mu   sync.Mutex
	tabs map[string]*channelTab
}

type channelTab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

var _ source.Source = (*BrowserSource)(nil)

// NewBrowserSource 启动浏览器并完成 Discord 登录。
func NewBrowserSource(ctx context.Context, cfg cfgpkg.DiscordConfig) (*BrowserSource, error) {
	if strings.TrimSpace(cfg.Email) == "" || strings.TrimSpace(cfg.Password) == "" {
		return nil, fmt.Errorf("discord browser source requires email and password")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1440, 900),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	rootCtx, rootCancel := chromedp.NewContext(allocCtx)

	s := &BrowserSource{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		rootCtx:     rootCtx,
		rootCancel:  rootCancel,
		email:       cfg.Email,
		password:    cfg.Password,
		loginWait:   time.Duration(cfg.LoginWaitSec) * time.Second,
		log:         logger.Tagged("discord"),
		tabs:        make(map[string]*channelTab),
	}
	if err := s.login(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *BrowserSource) login() error {
	s.log.Infof("logging into Discord...")
	wait := s.loginWait
	if wait <= 0 {
		wait = 20 * time.Second
	}
	err := chromedp.Run(s.rootCtx,
		chromedp.Navigate(loginURL),
		chromedp.WaitVisible(`input[name="email"]`, chromedp.ByQuery),
		chromedp.SendKeys(`input[name="email"]`, s.email, chromedp.ByQuery),
		chromedp.SendKeys(`input[name="password"]`, s.password, chromedp.ByQuery),
		chromedp.Click(`button[type="submit"]`, chromedp.ByQuery),
		// 登录后要等 2FA/跳转结束，Discord 没有稳定的完成标志。
		chromedp.Sleep(wait),
	)
	if err != nil {
		return fmt.Errorf("discord 登录失败: %w", err)
	}
	s.log.Infof("Discord login finished")
	return nil
}

// tab 返回频道对应的 tab，首次访问时打开并导航。
func (s *BrowserSource) tab(ch source.Channel) (*channelTab, error) {
	key := ch.Key()
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tabs[key]; ok {
		return t, nil
	}
	if strings.TrimSpace(ch.URL) == "" {
		return nil, fmt.Errorf("discord browser source: channel %q missing url", key)
	}
	tabCtx, tabCancel := chromedp.NewContext(s.rootCtx)
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(ch.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(3*time.Second),
	)
	if err != nil {
		tabCancel()
		return nil, fmt.Errorf("打开频道 %s 失败: %w", key, err)
	}
	t := &channelTab{ctx: tabCtx, cancel: tabCancel}
	s.tabs[key] = t
	s.log.Infof("channel tab opened: %s", key)
	return t, nil
}

// FetchMessages 抽取当前可见的消息文本，DOM 顺序即旧→新。
func (s *BrowserSource) FetchMessages(ctx context.Context, ch source.Channel) ([]source.Message, error) {
	t, err := s.tab(ch)
	if err != nil {
		return nil, err
	}
	// 抓取挂在 tab 的 chromedp context 上,但要跟着调用方一起取消。
	runCtx, cancel := context.WithTimeout(t.ctx, 15*time.Second)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var scraped []struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}
	err = chromedp.Run(runCtx, chromedp.Evaluate(`
		Array.from(document.querySelectorAll('li[id^="chat-messages-"]')).map(li => {
			const el = li.querySelector('div[class*="messageContent"]');
			return el ? {id: li.id, text: el.innerText} : null;
		}).filter(Boolean)`, &scraped))
	if err != nil {
		return nil, fmt.Errorf("抓取频道 %s 失败: %w", ch.Key(), err)
	}

	out := make([]source.Message, 0, len(scraped))
	for _, m := range scraped {
		text := strings.TrimSpace(m.Text)
		if text == "" {
			continue
		}
		out = append(out, source.Message{ID: m.ID, Channel: ch.Key(), Text: text})
	}
	return out, nil
}

// Close 关闭全部 tab 与浏览器进程。
func (s *BrowserSource) Close() error {
	s.mu.Lock()
	for _, t := range s.tabs {
		t.cancel()
	}
	s.tabs = make(map[string]*channelTab)
	s.mu.Unlock()
	if s.rootCancel != nil {
		s.rootCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	return nil
}
