package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collConfig        = "config"
	CollNotifications = "notifications"

	keyLastPollTime = "lastPollTime"

	expireIndexName = "notificationExpireIndex"
	keyIndexName    = "notificationKeyIndex"
)

// State is what the monitor remembers between polls.
type State interface {
	// MarkSeen records key and reports whether it was new.
	MarkSeen(ctx context.Context, key string) (bool, error)
	Chats(ctx context.Context, bot string) ([]Configuration, error)
	LastPoll(ctx context.Context) (*time.Time, error)
	SavePoll(ctx context.Context, t time.Time) error
}

type MongoState struct {
	db *mongo.Database
	// a key not seen for ttl is forgotten
	ttl time.Duration
}

func NewMongoState(db *mongo.Database, ttl time.Duration) *MongoState {
	return &MongoState{db: db, ttl: ttl}
}

func (s *MongoState) MarkSeen(ctx context.Context, key string) (bool, error) {
	coll := s.db.Collection(CollNotifications)
	res, err := coll.UpdateOne(
		ctx,
		bson.D{
			{"key", key},
		},
		bson.D{
			{"$currentDate", bson.D{
				{"lastSeen", true},
			}},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, err
	}
	return res.UpsertedCount == 1, nil
}

func (s *MongoState) Chats(ctx context.Context, bot string) ([]Configuration, error) {
	coll := s.db.Collection(CollPreferences)
	var chats []Configuration
	cur, err := coll.Find(ctx,
		bson.D{
			{"bot", bot},
		},
	)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	if err = cur.All(ctx, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

func (s *MongoState) LastPoll(ctx context.Context) (*time.Time, error) {
	coll := s.db.Collection(collConfig)
	last := struct {
		Key          string    `bson:"key"`
		Value        time.Time `bson:"value"`
		LastModified time.Time `bson:"lastModified"`
	}{}
	if err := coll.FindOne(ctx, bson.D{{"key", keyLastPollTime}}).Decode(&last); err == nil {
		return &last.Value, nil
	} else if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	} else {
		return nil, err
	}
}

func (s *MongoState) SavePoll(ctx context.Context, now time.Time) error {
	coll := s.db.Collection(collConfig)

	if _, err := coll.UpdateOne(
		ctx,
		bson.D{
			{"key", keyLastPollTime},
		},
		bson.D{
			{"$set", bson.D{
				{"value", now},
			}},
			{"$currentDate", bson.D{
				{"lastModified", true},
			}},
		},
		options.Update().SetUpsert(true),
	); err != nil {
		return err
	}
	return nil
}

// InitIndex creates the unique key index and the TTL index of the
// notifications collection unless they exist.
func (s *MongoState) InitIndex(ctx context.Context) error {
	coll := s.db.Collection(CollNotifications)
	indexView := coll.Indexes()
	cursor, err := indexView.List(ctx, options.ListIndexes().SetMaxTime(time.Second*2))
	if err != nil {
		return err
	}
	var indexes []bson.M
	if err = cursor.All(ctx, &indexes); err != nil {
		return err
	}
	existing := make(map[string]bool)
	for _, index := range indexes {
		if name, ok := index["name"].(string); ok {
			existing[name] = true
		}
	}
	var models []mongo.IndexModel
	if !existing[keyIndexName] {
		models = append(models, mongo.IndexModel{
			Keys:    bson.D{{"key", 1}},
			Options: options.Index().SetUnique(true).SetName(keyIndexName),
		})
	}
	if !existing[expireIndexName] {
		models = append(models, mongo.IndexModel{
			Keys:    bson.D{{"lastSeen", 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(s.ttl.Seconds())).SetName(expireIndexName),
		})
	}
	if len(models) == 0 {
		return nil
	}
	_, err = indexView.CreateMany(ctx, models)
	return err
}

// MemoryState keeps monitor state in the process, for runs without MongoDB.
type MemoryState struct {
	mu    sync.Mutex
	seen  map[string]bool
	chats []Configuration
	last  *time.Time
}

func NewMemoryState(chats []Configuration) *MemoryState {
	return &MemoryState{seen: make(map[string]bool), chats: chats}
}

func (s *MemoryState) MarkSeen(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	return true, nil
}

func (s *MemoryState) Chats(_ context.Context, bot string) ([]Configuration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Configuration
	for _, c := range s.chats {
		if c.Bot == bot {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *MemoryState) LastPoll(context.Context) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil, nil
	}
	t := *s.last
	return &t, nil
}

func (s *MemoryState) SavePoll(_ context.Context, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &t
	return nil
}
