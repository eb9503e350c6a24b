package marketplace

import (
	"regexp"
	"strings"

	"github.com/xyths/ticket-market/chain"
)

type EventType string

const (
	Food   EventType = "food"
	Sports EventType = "sports"
	Events EventType = "events"
	Other  EventType = "other"
)

// eventTypes is indexed by the eventType enum of the current NFT contract.
var eventTypes = [...]EventType{Food, Sports, Events, Other}

// Legacy tokens carry their type as a "(type)" suffix on the location, with
// their own vocabulary.
var (
	legacySuffix     = regexp.MustCompile(`\((sports|music|food|others)\)$`)
	legacyEventTypes = map[string]EventType{
		"sports": Sports,
		"music":  Events,
		"food":   Food,
		"others": Other,
	}
)

// DecodeEventType maps the on-chain enum. Unknown values are Other.
func DecodeEventType(v uint8) EventType {
	if int(v) < len(eventTypes) {
		return eventTypes[v]
	}
	return Other
}

// LegacyEventType reads the location suffix of a token minted by the legacy contract.
func LegacyEventType(location string) EventType {
	m := legacySuffix.FindStringSubmatch(strings.TrimSpace(location))
	if m == nil {
		return Other
	}
	return legacyEventTypes[m[1]]
}

func TicketEventType(t *chain.Ticket) EventType {
	if t.HasEventType {
		return DecodeEventType(t.EventType)
	}
	return LegacyEventType(t.Location)
}

func ParseEventType(s string) (EventType, bool) {
	switch e := EventType(strings.ToLower(strings.TrimSpace(s))); e {
	case Food, Sports, Events, Other:
		return e, true
	}
	return "", false
}
