package metadata

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xyths/ticket-market/imageurl"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

func sample() *Metadata {
	return &Metadata{
		Name:        "Cup Final",
		Description: "North stand",
		Image:       "https://ipfs.io/ipfs/QmTicket",
		Attributes:  []Attribute{{TraitType: "location", Value: "Wembley"}},
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	m := sample()
	require.NoError(t, s.Put(ctx, "k", m))
	m.Attributes[0].Value = "changed"

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "Wembley", got.Attributes[0].Value, "stored copy is independent of the caller")

	got.Name = "changed"
	again, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "Cup Final", again.Name)
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	s := NewRedisStore(db, time.Hour)

	m := sample()
	b, err := json.Marshal(m)
	require.NoError(t, err)

	mock.ExpectSet("metadata:k", b, time.Hour).SetVal("OK")
	require.NoError(t, s.Put(ctx, "k", m))

	mock.ExpectGet("metadata:k").SetVal(string(b))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, m, got)

	mock.ExpectGet("metadata:missing").RedisNil()
	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectGet("metadata:bad").SetVal("{")
	_, err = s.Get(ctx, "bad")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContentKey(t *testing.T) {
	a := ContentKey([]byte("ticket"))
	assert.Len(t, a, 46)
	assert.Equal(t, "Qm", a[:2])
	assert.Equal(t, a, ContentKey([]byte("ticket")))
	assert.NotEqual(t, a, ContentKey([]byte("ticket2")))
}

func newTestBuilder(t *testing.T, cfg Config) (*Builder, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	b, err := NewBuilder(cfg, store, imageurl.New(imageurl.Config{}), zap.NewNop().Sugar())
	require.NoError(t, err)
	return b, store
}

func TestBuildFromImageBytes(t *testing.T) {
	ctx := context.Background()
	b, store := newTestBuilder(t, Config{})

	res, err := b.Build(ctx, Upload{
		Name:        " Cup Final ",
		Description: "North stand",
		Image:       pngHeader,
		Location:    "Wembley",
		EventDate:   "2025-05-17",
		EventTime:   "15:00",
		EventType:   "Sports",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://ipfs.io/ipfs/"+ContentKey(pngHeader), res.PictureURL)
	assert.Equal(t, "https://ipfs.io/ipfs/"+res.Key, res.TokenURI)
	assert.Equal(t, int64(1747494000), res.Datetime)
	assert.Equal(t, "Cup Final", res.Metadata.Name)
	assert.Equal(t, []Attribute{
		{TraitType: "location", Value: "Wembley"},
		{TraitType: "datetime", Value: "1747494000"},
		{TraitType: "event_type", Value: "sports"},
	}, res.Metadata.Attributes)

	stored, err := store.Get(ctx, res.Key)
	require.NoError(t, err)
	assert.Equal(t, res.Metadata, stored)

	again, err := b.Build(ctx, Upload{
		Name:        "Cup Final",
		Description: "North stand",
		Image:       pngHeader,
		Location:    "Wembley",
		EventDate:   "2025-05-17",
		EventTime:   "15:00",
		EventType:   "sports",
	})
	require.NoError(t, err)
	assert.Equal(t, res.Key, again.Key, "same document, same key")
}

func TestBuildFromImageURL(t *testing.T) {
	b, _ := newTestBuilder(t, Config{PublicURL: "https://tickets.example.com/"})

	res, err := b.Build(context.Background(), Upload{Name: "Gig", ImageURL: "ipfs://QmPoster"})
	require.NoError(t, err)
	assert.Equal(t, "https://ipfs.io/ipfs/QmPoster", res.PictureURL)
	assert.Equal(t, "https://tickets.example.com/api/metadata/"+res.Key, res.TokenURI)
	assert.Zero(t, res.Datetime)
	assert.Empty(t, res.Metadata.Attributes)
}

func TestBuildTimeZone(t *testing.T) {
	b, _ := newTestBuilder(t, Config{TimeZone: "Asia/Shanghai"})
	res, err := b.Build(context.Background(), Upload{Name: "Gig", ImageURL: "https://img.example.com/a.png", EventDate: "2025-05-17"})
	require.NoError(t, err)
	assert.Equal(t, int64(1747411200), res.Datetime)
}

func TestBuildRejects(t *testing.T) {
	b, store := newTestBuilder(t, Config{MaxImageBytes: 64})
	tests := map[string]Upload{
		"no name":      {ImageURL: "https://img.example.com/a.png"},
		"blank name":   {Name: "  ", ImageURL: "https://img.example.com/a.png"},
		"no image":     {Name: "Gig"},
		"not an image": {Name: "Gig", Image: []byte("hello, world")},
		"too large":    {Name: "Gig", Image: append(append([]byte{}, pngHeader...), make([]byte, 64)...)},
		"script url":   {Name: "Gig", ImageURL: "javascript:alert(1)"},
		"relative url": {Name: "Gig", ImageURL: "poster.png"},
		"bad date":     {Name: "Gig", ImageURL: "https://img.example.com/a.png", EventDate: "17/05/2025"},
		"bad time":     {Name: "Gig", ImageURL: "https://img.example.com/a.png", EventDate: "2025-05-17", EventTime: "3pm"},
	}
	for name, u := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := b.Build(context.Background(), u)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
	assert.Empty(t, store.docs, "rejected uploads store nothing")
}

func TestNewBuilderBadTimeZone(t *testing.T) {
	_, err := NewBuilder(Config{TimeZone: "Mars/Olympus"}, NewMemoryStore(), imageurl.New(imageurl.Config{}), zap.NewNop().Sugar())
	assert.Error(t, err)
}
