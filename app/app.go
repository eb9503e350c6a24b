// Package app loads the configuration and wires the services the commands run.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/redis/go-redis/v9"
	"github.com/xyths/hs"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/xyths/ticket-market/api"
	"github.com/xyths/ticket-market/chain"
	"github.com/xyths/ticket-market/imageurl"
	"github.com/xyths/ticket-market/marketplace"
	"github.com/xyths/ticket-market/metadata"
	"github.com/xyths/ticket-market/monitor"
	"github.com/xyths/ticket-market/pricing"
)

// Metadata store backends.
const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
	BackendRedis  = "redis"
)

type StorageConf struct {
	Backend  string          `json:"backend"` // memory (default), mongo or redis
	Metadata metadata.Config `json:"metadata"`
}

type Config struct {
	Log     hs.LogConf           `json:"log"`
	Mongo   hs.MongoConf         `json:"mongo"`
	Redis   metadata.RedisConfig `json:"redis"`
	Chain   chain.Config         `json:"chain"`
	Http    api.Config           `json:"http"`
	Ipfs    imageurl.Config      `json:"ipfs"`
	Price   pricing.OracleConfig `json:"price"`
	Storage StorageConf          `json:"storage"`
	Monitor monitor.Config       `json:"monitor"`
}

func Load(file string) (Config, error) {
	cfg := Config{}
	if err := hs.ParseJsonConfig(file, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

type App struct {
	cfg Config

	Sugar *zap.SugaredLogger

	eth *ethclient.Client
	db  *mongo.Database
	rdb *redis.Client

	Images  *imageurl.Sanitizer
	Scanner *marketplace.Scanner
	Planner *marketplace.Planner
	Oracle  *pricing.Oracle
	Store   metadata.Store
	Builder *metadata.Builder
}

func New(cfg Config) *App {
	return &App{cfg: cfg}
}

func (a *App) Config() Config { return a.cfg }

func (a *App) Init(ctx context.Context) error {
	l, err := hs.NewZapLogger(a.cfg.Log)
	if err != nil {
		return err
	}
	a.Sugar = l.Sugar()
	a.Sugar.Info("logger initialized")

	a.eth, err = chain.Dial(ctx, a.cfg.Chain)
	if err != nil {
		a.Sugar.Errorf("dial %s error: %s", a.cfg.Chain.RPC, err)
		return err
	}
	contracts, err := chain.New(a.eth, a.cfg.Chain)
	if err != nil {
		a.Sugar.Errorf("contracts init error: %s", err)
		return err
	}
	a.Sugar.Infof("chain initialized, nft %s, marketplace %s", contracts.NFTAddress().Hex(), contracts.MarketplaceAddress().Hex())

	a.Images = imageurl.New(a.cfg.Ipfs)
	a.Scanner = marketplace.NewScanner(contracts, a.Images, a.Sugar)
	a.Planner = marketplace.NewPlanner(contracts)
	a.Oracle, err = pricing.NewOracle(a.cfg.Price, a.Sugar)
	if err != nil {
		a.Sugar.Errorf("price oracle init error: %s", err)
		return err
	}

	if err = a.initStore(ctx); err != nil {
		return err
	}
	a.Builder, err = metadata.NewBuilder(a.cfg.Storage.Metadata, a.Store, a.Images, a.Sugar)
	if err != nil {
		a.Sugar.Errorf("metadata builder init error: %s", err)
		return err
	}
	a.Sugar.Info("app initialized")
	return nil
}

func (a *App) initStore(ctx context.Context) error {
	switch a.cfg.Storage.Backend {
	case "", BackendMemory:
		a.Store = metadata.NewMemoryStore()
	case BackendMongo:
		db, err := a.Mongo(ctx)
		if err != nil {
			return err
		}
		s := metadata.NewMongoStore(db)
		if err = s.InitIndex(ctx); err != nil {
			a.Sugar.Errorf("metadata index error: %s", err)
			return err
		}
		a.Store = s
	case BackendRedis:
		var ttl time.Duration
		if a.cfg.Redis.TTL != "" {
			d, err := time.ParseDuration(a.cfg.Redis.TTL)
			if err != nil {
				return fmt.Errorf("redis ttl %s format error: %w", a.cfg.Redis.TTL, err)
			}
			ttl = d
		}
		rdb, err := metadata.NewRedisClient(ctx, a.cfg.Redis)
		if err != nil {
			a.Sugar.Errorf("connect redis error: %s", err)
			return err
		}
		a.rdb = rdb
		a.Store = metadata.NewRedisStore(rdb, ttl)
	default:
		return fmt.Errorf("unknown storage backend %q", a.cfg.Storage.Backend)
	}
	a.Sugar.Infof("metadata store %s initialized", a.cfg.Storage.Backend)
	return nil
}

// Mongo connects on first use.
func (a *App) Mongo(ctx context.Context) (*mongo.Database, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := hs.ConnectMongo(ctx, a.cfg.Mongo)
	if err != nil {
		a.Sugar.Errorf("connect mongo error: %s", err)
		return nil, err
	}
	a.db = db
	a.Sugar.Info("database initialized")
	return db, nil
}

func (a *App) Close(ctx context.Context) {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.Sugar.Errorf("redis close error: %s", err)
		}
	}
	if a.db != nil {
		if err := a.db.Client().Disconnect(ctx); err != nil {
			a.Sugar.Errorf("db close error: %s", err)
		}
	}
	if a.eth != nil {
		a.eth.Close()
	}
	if a.Sugar != nil {
		a.Sugar.Info("app closed")
		_ = a.Sugar.Sync()
	}
}

func (a *App) Handler() *api.Handler {
	return &api.Handler{
		Market:   a.Scanner,
		Planner:  a.Planner,
		Builder:  a.Builder,
		Metadata: a.Store,
		Price:    a.Oracle,
		Sugar:    a.Sugar,
	}
}

// Serve runs the HTTP API until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	engine := api.NewEngine(a.cfg.Http, a.Handler())
	return api.Serve(ctx, a.cfg.Http, engine, a.Sugar)
}

// NewMonitor builds the notifier. State lives in MongoDB unless the monitor
// is configured for memory.
func (a *App) NewMonitor(ctx context.Context) (*monitor.Monitor, error) {
	var state monitor.State
	if a.cfg.Monitor.State == monitor.StateMemory {
		state = monitor.NewMemoryState(nil)
	} else {
		ttl, err := a.cfg.Monitor.TTLDuration()
		if err != nil {
			return nil, fmt.Errorf("monitor ttl %s format error: %w", a.cfg.Monitor.TTL, err)
		}
		db, err := a.Mongo(ctx)
		if err != nil {
			return nil, err
		}
		s := monitor.NewMongoState(db, ttl)
		if err = s.InitIndex(ctx); err != nil {
			a.Sugar.Errorf("notification index error: %s", err)
			return nil, err
		}
		state = s
	}
	m, err := monitor.New(a.cfg.Monitor, a.Scanner, state, a.Sugar)
	if err != nil {
		return nil, err
	}
	if err = m.Init(ctx); err != nil {
		return nil, err
	}
	return m, nil
}
