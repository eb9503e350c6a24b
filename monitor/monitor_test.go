package monitor

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/ethereum/go-ethereum/common"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/xyths/ticket-market/chain"
	"github.com/xyths/ticket-market/marketplace"
)

var (
	seller = common.HexToAddress("0xAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAa")
	bidder = common.HexToAddress("0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB")

	testNow = time.Unix(1760000000, 0)
)

func entry(saleID uint64, bid int64, endTime int64) marketplace.SaleEntry {
	s := chain.Sale{
		Seller:         seller,
		TokenID:        saleID + 100,
		ListPriceUSD:   big.NewInt(5000000000),
		BuyNowPriceUSD: big.NewInt(10000000000),
		CurrentBidUSD:  big.NewInt(bid),
		EndTime:        endTime,
		Active:         true,
	}
	if bid > 0 {
		s.CurrentBidder = bidder
	}
	return marketplace.SaleEntry{
		SaleID: saleID,
		Sale:   s,
		NFTData: marketplace.NFTData{
			Picture:   "https://gateway.pinata.cloud/ipfs/QmTicket",
			Location:  "Main Arena",
			EventName: "Main Arena",
			EventType: marketplace.Sports,
		},
	}
}

type fakeSales struct {
	entries []marketplace.SaleEntry
	err     error
}

func (f *fakeSales) ListActiveSales(context.Context) ([]marketplace.SaleEntry, error) {
	return f.entries, f.err
}

type fakeTelegram struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, f.err
}

type fakeDiscord struct {
	mu   sync.Mutex
	sent map[string][]string
}

func (f *fakeDiscord) ChannelMessageSend(channelID string, content string) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sent == nil {
		f.sent = make(map[string][]string)
	}
	f.sent[channelID] = append(f.sent[channelID], content)
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func newTestMonitor(t *testing.T, cfg Config, sales Sales, state State) *Monitor {
	t.Helper()
	m, err := New(cfg, sales, state, zap.NewNop().Sugar())
	require.NoError(t, err)
	m.now = func() time.Time { return testNow }
	return m
}

func TestRecordKeys(t *testing.T) {
	e := entry(7, 6000000000, testNow.Unix()-60)
	records := toRecords(&e, testNow)
	require.Len(t, records, 3)

	assert.Equal(t, "list:7", records[0].Key())
	assert.Equal(t, "5000000000", records[0].Price.String())
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", records[0].Seller)

	assert.Equal(t, "bid:7:6000000000", records[1].Key())
	assert.Equal(t, "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", records[1].Bidder)

	assert.Equal(t, EventEnded, records[2].Event)
	assert.Equal(t, "ended:7", records[2].Key())
	assert.Equal(t, "60.00", records[2].Price.Display())
}

func TestRecordsOfRunningSaleWithoutBids(t *testing.T) {
	e := entry(3, 0, testNow.Unix()+3600)
	records := toRecords(&e, testNow)
	require.Len(t, records, 1)
	assert.Equal(t, EventList, records[0].Event)
}

func TestRecordsOfExpiredSaleWithoutBids(t *testing.T) {
	e := entry(3, 0, testNow.Unix())
	records := toRecords(&e, testNow)
	require.Len(t, records, 2)
	assert.Equal(t, EventEnded, records[1].Event)
	assert.Empty(t, records[1].Bidder)
	assert.Equal(t, "50.00", records[1].Price.Display())
}

func TestFilter(t *testing.T) {
	e := entry(1, 6000000000, testNow.Unix()+3600)
	records := toRecords(&e, testNow)
	list, bid := &records[0], &records[1]

	tests := []struct {
		name string
		conf interface{}
		list bool
		bid  bool
	}{
		{"nil list", []interface{}(nil), true, true},
		{"empty list", []interface{}{}, true, true},
		{"event type", []interface{}{map[string]interface{}{"eventType": "sports"}}, true, true},
		{"event type case", []interface{}{map[string]interface{}{"eventType": "SPORTS"}}, true, true},
		{"other event type", []interface{}{map[string]interface{}{"eventType": "concert"}}, false, false},
		{"event type list", []interface{}{map[string]interface{}{"eventType": []interface{}{"concert", "sports"}}}, true, true},
		{"bids only", []interface{}{map[string]interface{}{"event": "Bid"}}, false, true},
		{"min price", []interface{}{map[string]interface{}{"minPrice": "55"}}, false, true},
		{"min price equal", []interface{}{map[string]interface{}{"minPrice": "50.00"}}, true, true},
		{"bad min price", []interface{}{map[string]interface{}{"minPrice": "cheap"}}, false, false},
		{"and", []interface{}{map[string]interface{}{"event": "List", "minPrice": "55"}}, false, false},
		{"or", []interface{}{
			map[string]interface{}{"event": "List"},
			map[string]interface{}{"minPrice": "55"},
		}, true, true},
		{"bson", primitive.A{primitive.D{{"eventType", "sports"}, {"event", "Bid"}}}, false, true},
		{"bson map", primitive.A{primitive.M{"eventType": primitive.A{"sports"}}}, true, true},
		{"not a filter", 42, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.list, filter(list, tt.conf), "list")
			assert.Equal(t, tt.bid, filter(bid, tt.conf), "bid")
		})
	}
}

func TestFormat(t *testing.T) {
	e := entry(7, 6000000000, testNow.Unix()-60)
	records := toRecords(&e, testNow)

	text := format(&records[0], "https://tickets.example/", false)
	assert.Contains(t, text, "Main Arena\nTokenId: 107  Sale: 7  Type: sports\n")
	assert.Contains(t, text, "Starting price: $50.00")
	assert.Contains(t, text, "Ends: 2025-10-09 08:52 UTC")
	assert.NotContains(t, text, "Link:")

	text = format(&records[1], "https://tickets.example/", true)
	assert.Contains(t, text, "Bid: $60.00")
	assert.Contains(t, text, "Link: https://tickets.example/nft/107")
	assert.Contains(t, text, "https://gateway.pinata.cloud/ipfs/QmTicket")

	text = format(&records[2], "", true)
	assert.Contains(t, text, "waiting for the winner to claim")
	assert.NotContains(t, text, "Link:")
}

func TestPollFirstRunPrimes(t *testing.T) {
	sales := &fakeSales{entries: []marketplace.SaleEntry{entry(1, 0, testNow.Unix()+3600)}}
	state := NewMemoryState([]Configuration{{Bot: "ticket_bot", ChatId: 10}})
	m := newTestMonitor(t, Config{Telegram: TelegramConf{Bot: "ticket_bot"}}, sales, state)
	tg := &fakeTelegram{}
	m.Telegram = tg

	require.NoError(t, m.Poll(context.Background()))
	assert.Empty(t, tg.sent)
	last, err := state.LastPoll(context.Background())
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.Equal(testNow))

	// a bid arrives after priming
	sales.entries = []marketplace.SaleEntry{entry(1, 6000000000, testNow.Unix()+3600)}
	require.NoError(t, m.Poll(context.Background()))
	require.Len(t, tg.sent, 1)
	assert.Equal(t, int64(10), tg.sent[0].ChatID)
	assert.Contains(t, tg.sent[0].Text, "New bid")

	// nothing new
	require.NoError(t, m.Poll(context.Background()))
	assert.Len(t, tg.sent, 1)
}

func TestPollNotifyExisting(t *testing.T) {
	sales := &fakeSales{entries: []marketplace.SaleEntry{
		entry(1, 0, testNow.Unix()+3600),
		entry(2, 6000000000, testNow.Unix()-60),
	}}
	state := NewMemoryState([]Configuration{
		{Bot: "ticket_bot", ChatId: 10},
		{Bot: "ticket_bot", ChatId: 11, Filter: []interface{}{map[string]interface{}{"event": "Ended"}}},
		{Bot: "ticket_bot", ChatId: 12, ExpireAt: testNow.Add(-time.Hour)},
		{Bot: "other_bot", ChatId: 13},
	})
	cfg := Config{
		NotifyExisting: true,
		Telegram:       TelegramConf{Bot: "ticket_bot"},
		Discord:        DiscordConf{Channels: []string{"c1", "c2"}},
	}
	m := newTestMonitor(t, cfg, sales, state)
	tg := &fakeTelegram{}
	dc := &fakeDiscord{}
	m.Telegram = tg
	m.Discord = dc

	require.NoError(t, m.Poll(context.Background()))

	perChat := make(map[int64]int)
	for _, msg := range tg.sent {
		perChat[msg.ChatID]++
	}
	// sale 1: list; sale 2: list, bid, ended
	assert.Equal(t, map[int64]int{10: 4, 11: 1}, perChat)
	assert.Len(t, dc.sent["c1"], 4)
	assert.Len(t, dc.sent["c2"], 4)
}

func TestPollSendErrorsDoNotStop(t *testing.T) {
	sales := &fakeSales{entries: []marketplace.SaleEntry{entry(1, 0, testNow.Unix()+3600)}}
	state := NewMemoryState([]Configuration{{Bot: "b", ChatId: 1}, {Bot: "b", ChatId: 2}})
	m := newTestMonitor(t, Config{NotifyExisting: true, Telegram: TelegramConf{Bot: "b"}}, sales, state)
	tg := &fakeTelegram{err: errors.New("Forbidden: bot was blocked by the user")}
	m.Telegram = tg

	require.NoError(t, m.Poll(context.Background()))
	assert.Len(t, tg.sent, 2)
}

func TestPollListError(t *testing.T) {
	sales := &fakeSales{err: marketplace.ErrUnavailable}
	state := NewMemoryState(nil)
	m := newTestMonitor(t, Config{}, sales, state)

	err := m.Poll(context.Background())
	assert.ErrorIs(t, err, marketplace.ErrUnavailable)
	last, err := state.LastPoll(context.Background())
	require.NoError(t, err)
	assert.Nil(t, last, "a failed poll is not a poll")
}

func TestRunStopsOnCancel(t *testing.T) {
	sales := &fakeSales{}
	m := newTestMonitor(t, Config{Interval: "10ms"}, sales, NewMemoryState(nil))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestConfigDurations(t *testing.T) {
	_, err := New(Config{Interval: "soon"}, &fakeSales{}, NewMemoryState(nil), zap.NewNop().Sugar())
	assert.Error(t, err)

	ttl, err := Config{}.TTLDuration()
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, ttl)
	ttl, err = Config{TTL: "72h"}.TTLDuration()
	require.NoError(t, err)
	assert.Equal(t, 72*time.Hour, ttl)
}

func TestMemoryState(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryState(nil)
	isNew, err := s.MarkSeen(ctx, "list:1")
	require.NoError(t, err)
	assert.True(t, isNew)
	isNew, err = s.MarkSeen(ctx, "list:1")
	require.NoError(t, err)
	assert.False(t, isNew)

	chats, err := s.Chats(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, chats)
}
