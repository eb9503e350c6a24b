// Package monitor polls the marketplace and tells Telegram chats and Discord
// channels about new listings, new bids and auctions waiting for settlement.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/xyths/hs/convert"
	"go.uber.org/zap"

	"github.com/xyths/ticket-market/marketplace"
	"github.com/xyths/ticket-market/metrics"
)

const (
	DefaultInterval = time.Minute
	DefaultTTL      = 30 * 24 * time.Hour

	StateMongo  = "mongo"
	StateMemory = "memory"

	// Telegram allows about 30 messages per second per bot.
	burstSize  = 30
	burstPause = time.Second
)

type TelegramConf struct {
	Bot   string `json:"bot"` // bot username
	Token string `json:"token"`
}

type DiscordConf struct {
	Token    string   `json:"token"`
	Channels []string `json:"channels"`
}

type Config struct {
	Interval string       `json:"interval"`
	State    string       `json:"state"` // mongo (default) or memory
	TTL      string       `json:"ttl"`   // how long a sent notification is remembered
	Telegram TelegramConf `json:"telegram"`
	Discord  DiscordConf  `json:"discord"`
	// SiteURL is the marketplace front end, used for links.
	SiteURL string `json:"siteUrl"`
	// NotifyExisting sends records for sales that were open before the
	// first poll; otherwise they are only remembered.
	NotifyExisting bool `json:"notifyExisting"`
}

// Sales is the read side the monitor polls; *marketplace.Scanner has it.
type Sales interface {
	ListActiveSales(ctx context.Context) ([]marketplace.SaleEntry, error)
}

type TelegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type DiscordAPI interface {
	ChannelMessageSend(channelID string, content string) (*discordgo.Message, error)
}

type Monitor struct {
	cfg      Config
	interval time.Duration
	sales    Sales
	state    State
	now      func() time.Time

	Sugar    *zap.SugaredLogger
	Telegram TelegramAPI
	Discord  DiscordAPI

	discord *discordgo.Session
}

func New(cfg Config, sales Sales, state State, sugar *zap.SugaredLogger) (*Monitor, error) {
	m := &Monitor{
		cfg:      cfg,
		interval: DefaultInterval,
		sales:    sales,
		state:    state,
		now:      time.Now,
		Sugar:    sugar,
	}
	if cfg.Interval != "" {
		d, err := time.ParseDuration(cfg.Interval)
		if err != nil {
			return nil, fmt.Errorf("interval %s format error: %w", cfg.Interval, err)
		}
		m.interval = d
	}
	return m, nil
}

// TTLDuration parses cfg.TTL, DefaultTTL when empty.
func (cfg Config) TTLDuration() (time.Duration, error) {
	if cfg.TTL == "" {
		return DefaultTTL, nil
	}
	return time.ParseDuration(cfg.TTL)
}

// Init connects the configured bots.
func (m *Monitor) Init(ctx context.Context) error {
	if m.Telegram == nil && m.cfg.Telegram.Token != "" {
		tg, err := tgbotapi.NewBotAPI(m.cfg.Telegram.Token)
		if err != nil {
			m.Sugar.Errorf("New Telegram bot error: %s", err)
			return err
		}
		m.Telegram = tg
		m.Sugar.Info("Telegram bot initialized")
	}
	if m.Discord == nil && m.cfg.Discord.Token != "" {
		s, err := discordgo.New("Bot " + m.cfg.Discord.Token)
		if err != nil {
			m.Sugar.Errorf("discord bot init error: %s", err)
			return err
		}
		m.discord = s
		m.Discord = s
		m.Sugar.Info("Discord bot initialized")
	}
	if m.Telegram == nil && m.Discord == nil {
		m.Sugar.Warn("no Telegram or Discord bot configured, records are only logged")
	}
	return nil
}

func (m *Monitor) Close() {
	if m.discord != nil {
		if err := m.discord.Close(); err != nil {
			m.Sugar.Errorf("discord close error: %s", err)
		}
	}
	m.Sugar.Info("monitor closed")
}

// Run polls every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.Poll(ctx); err != nil {
		m.Sugar.Errorf("poll error: %s", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.interval):
			if err := m.Poll(ctx); err != nil {
				m.Sugar.Errorf("poll error: %s", err)
			}
		}
	}
}

// Poll reads the active sales once and dispatches the records not seen before.
func (m *Monitor) Poll(ctx context.Context) error {
	m.Sugar.Info("poll start")
	defer m.Sugar.Info("poll finish")
	last, err := m.state.LastPoll(ctx)
	if err != nil {
		return err
	}
	silent := last == nil && !m.cfg.NotifyExisting

	sales, err := m.sales.ListActiveSales(ctx)
	if err != nil {
		return err
	}
	now := m.now()
	var fresh []Record
	for i := range sales {
		for _, r := range toRecords(&sales[i], now) {
			isNew, err := m.state.MarkSeen(ctx, r.Key())
			if err != nil {
				m.Sugar.Errorf("mark %s seen error: %s", r.Key(), err)
				continue
			}
			if isNew {
				fresh = append(fresh, r)
			}
		}
	}
	m.Sugar.Infof("sales = %d, new records = %d", len(sales), len(fresh))

	if silent {
		m.Sugar.Infof("first poll, %d existing records remembered without sending", len(fresh))
	} else if len(fresh) > 0 {
		m.dispatch(ctx, fresh)
	}
	if err = m.state.SavePoll(ctx, now); err != nil {
		m.Sugar.Errorf("save poll time error: %s", err)
	}
	return nil
}

func (m *Monitor) dispatch(ctx context.Context, records []Record) {
	if m.Telegram != nil {
		chats, err := m.state.Chats(ctx, m.cfg.Telegram.Bot)
		if err != nil {
			m.Sugar.Errorf("get available chats error: %s", err)
		}
		m.Sugar.Infof("chats size = %d", len(chats))
		for _, chat := range chats {
			m.sendTelegram(ctx, chat, records)
		}
	}
	if m.Discord != nil {
		for _, ch := range m.cfg.Discord.Channels {
			for i := range records {
				_, err := m.Discord.ChannelMessageSend(ch, format(&records[i], m.cfg.SiteURL, true))
				metrics.Notification("discord", err)
				if err != nil {
					m.Sugar.Errorf("discord send to %s error: %s", ch, err)
				}
			}
		}
	}
	if m.Telegram == nil && m.Discord == nil {
		for i := range records {
			m.Sugar.Infof("record %s", records[i].Key())
		}
	}
}

func (m *Monitor) sendTelegram(ctx context.Context, chat Configuration, records []Record) {
	if !chat.ExpireAt.IsZero() && chat.ExpireAt.Before(m.now()) {
		m.Sugar.Debugf("chat %d membership expired", chat.ChatId)
		return
	}
	var count int
	for i := range records {
		r := &records[i]
		// send all messages even if the context is cancelled
		if !filter(r, chat.Filter) {
			m.Sugar.Debugf("record %s filtered for chat %d", r.Key(), chat.ChatId)
			continue
		}
		msg := tgbotapi.NewMessage(chat.ChatId, format(r, m.cfg.SiteURL, chat.Options[OptionLink]))
		_, err := m.Telegram.Send(msg)
		metrics.Notification("telegram", err)
		if err != nil {
			m.Sugar.Errorf("send message error: %s", err)
		}
		count++
		if count == burstSize {
			select {
			case <-ctx.Done():
			case <-time.After(burstPause):
			}
			count = 0
		}
	}
}

// format is the text of one notification.
func format(r *Record, siteURL string, link bool) string {
	content := fmt.Sprintf("%s\nTokenId: %d  Sale: %d  Type: %s\n", r.Name, r.TokenID, r.SaleID, r.EventType)
	switch r.Event {
	case EventList:
		content += fmt.Sprintf(
			`Listed
  Seller: %s
  Starting price: $%s
  Ends: %s`,
			convert.ShortAddress(r.Seller), r.Price.Display(), endTime(r.EndTime),
		)
	case EventBid:
		content += fmt.Sprintf(
			`New bid
  Bidder: %s
  Bid: $%s
  Ends: %s`,
			convert.ShortAddress(r.Bidder), r.Price.Display(), endTime(r.EndTime),
		)
	case EventEnded:
		if r.Bidder != "" {
			content += fmt.Sprintf(
				`Auction ended, waiting for the winner to claim
  Winner: %s
  Winning bid: $%s`,
				convert.ShortAddress(r.Bidder), r.Price.Display(),
			)
		} else {
			content += fmt.Sprintf(
				`Auction ended without bids, the seller can reclaim
  Seller: %s`,
				convert.ShortAddress(r.Seller),
			)
		}
	}
	if link && siteURL != "" {
		content += fmt.Sprintf("\nLink: %s/nft/%d\nPreview: \n%s", strings.TrimRight(siteURL, "/"), r.TokenID, r.ImagePreviewUrl)
	}
	return content
}

func endTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04 MST")
}
