package monitor

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/xyths/ticket-market/pricing"
)

const (
	CollPreferences = "preferences"

	OptionLink = "link"
)

// Configuration is one Telegram chat subscribed to a bot.
type Configuration struct {
	Bot      string        `bson:"bot"` // bot username
	ChatId   int64         `bson:"chatId"`
	Options  Options       `bson:"options"`
	Filter   []interface{} `bson:"filter"`
	ExpireAt time.Time     `bson:"expireAt"` // membership
}
type Options = map[string]bool

// filter the record, return true if pass.
// 1. list means `or`, map means `and`;
// 2. top level is always list, an empty list passes everything.
func filter(record *Record, conf interface{}) bool {
	list, ok := asList(conf)
	if ok {
		if len(list) == 0 {
			return true
		}
		for _, f := range list { // one pass is pass
			if filter(record, f) {
				return true
			}
		}
		return false
	}
	m, ok := asMap(conf)
	if !ok {
		return false
	}
	for k, v := range m { // all pass is pass
		switch k {
		case "eventType":
			if !filterEventType(record, v) {
				return false
			}
		case "minPrice":
			if !filterMinPrice(record, v) {
				return false
			}
		case "event":
			if !filterEvent(record, v) {
				return false
			}
		}
	}
	return true
}

// asMap accepts both JSON maps and the documents the mongo driver decodes
// into an interface{}.
func asMap(conf interface{}) (map[string]interface{}, bool) {
	switch m := conf.(type) {
	case map[string]interface{}:
		return m, true
	case primitive.M:
		return m, true
	case primitive.D:
		return m.Map(), true
	}
	return nil, false
}

func asList(conf interface{}) ([]interface{}, bool) {
	switch l := conf.(type) {
	case []interface{}:
		return l, true
	case primitive.A:
		return l, true
	}
	return nil, false
}

func filterEventType(record *Record, conf interface{}) bool {
	return matchAny(string(record.EventType), conf)
}

func filterEvent(record *Record, conf interface{}) bool {
	return matchAny(record.Event, conf)
}

// filterMinPrice keeps records priced at or above a dollar amount like "25.50".
func filterMinPrice(record *Record, conf interface{}) bool {
	s, ok := conf.(string)
	if !ok {
		return false
	}
	floor, err := pricing.ParseUSD(s)
	if err != nil {
		return false
	}
	return record.Price.Cmp(floor) >= 0
}

// matchAny compares case-insensitively against a string or a list of strings.
func matchAny(value string, conf interface{}) bool {
	if list, ok := asList(conf); ok {
		for _, v := range list {
			if s, ok := v.(string); ok && strings.EqualFold(value, s) {
				return true
			}
		}
		return false
	}
	switch c := conf.(type) {
	case string:
		return strings.EqualFold(value, c)
	case []string:
		for _, s := range c {
			if strings.EqualFold(value, s) {
				return true
			}
		}
	}
	return false
}
