package metadata

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mr-tron/base58"
	"go.uber.org/zap"
)

const DefaultMaxImageBytes = 10 << 20

// ErrInvalid marks uploads rejected before anything is stored.
var ErrInvalid = errors.New("invalid upload")

// Images resolves picture references.
type Images interface {
	Sanitize(raw string) string
	Placeholder() string
	Gateway(hash string) string
}

type Config struct {
	// PublicURL, when set, makes token URIs point at this service's
	// /api/metadata/:key instead of the IPFS gateway.
	PublicURL     string `json:"publicUrl"`
	MaxImageBytes int64  `json:"maxImageBytes"`
	// TimeZone of eventDate and eventTime, UTC when empty.
	TimeZone string `json:"timeZone"`
}

// Upload is one mint form submission. Exactly one of Image and ImageURL is set.
type Upload struct {
	Name        string
	Description string
	Image       []byte
	ImageURL    string
	Location    string
	EventDate   string // 2006-01-02
	EventTime   string // 15:04, optional
	EventType   string
}

type Result struct {
	PictureURL string    `json:"pictureUrl"`
	TokenURI   string    `json:"tokenURI"`
	Key        string    `json:"key"`
	Metadata   *Metadata `json:"metadata"`
	// Datetime is the event start in unix seconds, 0 without an event date.
	Datetime int64 `json:"datetime"`
}

type Builder struct {
	store     Store
	images    Images
	publicURL string
	maxImage  int64
	loc       *time.Location

	Sugar *zap.SugaredLogger
}

func NewBuilder(cfg Config, store Store, images Images, sugar *zap.SugaredLogger) (*Builder, error) {
	b := &Builder{
		store:     store,
		images:    images,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		maxImage:  cfg.MaxImageBytes,
		loc:       time.UTC,
		Sugar:     sugar,
	}
	if b.maxImage <= 0 {
		b.maxImage = DefaultMaxImageBytes
	}
	if cfg.TimeZone != "" {
		loc, err := time.LoadLocation(cfg.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("time zone %q: %w", cfg.TimeZone, err)
		}
		b.loc = loc
	}
	return b, nil
}

// MaxImageBytes is the largest image Build accepts.
func (b *Builder) MaxImageBytes() int64 { return b.maxImage }

// Build validates u, stores its metadata document and returns where the
// picture and the document can be fetched.
func (b *Builder) Build(ctx context.Context, u Upload) (*Result, error) {
	name := strings.TrimSpace(u.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	picture, err := b.picture(u)
	if err != nil {
		return nil, err
	}
	datetime, err := b.datetime(u.EventDate, u.EventTime)
	if err != nil {
		return nil, err
	}

	m := &Metadata{
		Name:        name,
		Description: strings.TrimSpace(u.Description),
		Image:       picture,
		Attributes:  make([]Attribute, 0, 3),
	}
	if loc := strings.TrimSpace(u.Location); loc != "" {
		m.Attributes = append(m.Attributes, Attribute{TraitType: "location", Value: loc})
	}
	if datetime > 0 {
		m.Attributes = append(m.Attributes, Attribute{TraitType: "datetime", Value: strconv.FormatInt(datetime, 10)})
	}
	if et := strings.ToLower(strings.TrimSpace(u.EventType)); et != "" {
		m.Attributes = append(m.Attributes, Attribute{TraitType: "event_type", Value: et})
	}

	doc, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	key := ContentKey(doc)
	if err = b.store.Put(ctx, key, m); err != nil {
		return nil, err
	}
	b.Sugar.Infof("metadata %s stored for %q", key, name)
	return &Result{
		PictureURL: picture,
		TokenURI:   b.tokenURI(key),
		Key:        key,
		Metadata:   m,
		Datetime:   datetime,
	}, nil
}

func (b *Builder) picture(u Upload) (string, error) {
	switch {
	case len(u.Image) > 0:
		if int64(len(u.Image)) > b.maxImage {
			return "", fmt.Errorf("%w: image larger than %d bytes", ErrInvalid, b.maxImage)
		}
		if ct := http.DetectContentType(u.Image); !strings.HasPrefix(ct, "image/") {
			return "", fmt.Errorf("%w: image has content type %s", ErrInvalid, ct)
		}
		return b.images.Gateway(ContentKey(u.Image)), nil
	case strings.TrimSpace(u.ImageURL) != "":
		pic := b.images.Sanitize(u.ImageURL)
		if pic == b.images.Placeholder() {
			return "", fmt.Errorf("%w: image must be an http, https or ipfs url", ErrInvalid)
		}
		return pic, nil
	}
	return "", fmt.Errorf("%w: image is required", ErrInvalid)
}

func (b *Builder) datetime(date, clock string) (int64, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return 0, nil
	}
	clock = strings.TrimSpace(clock)
	if clock == "" {
		clock = "00:00"
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, b.loc)
	if err != nil {
		return 0, fmt.Errorf("%w: event date %q time %q", ErrInvalid, date, clock)
	}
	return t.Unix(), nil
}

func (b *Builder) tokenURI(key string) string {
	if b.publicURL != "" {
		return b.publicURL + "/api/metadata/" + key
	}
	return b.images.Gateway(key)
}

// ContentKey is a base58 sha2-256 multihash of data, the shape of an IPFS
// CIDv0. It hashes the raw bytes, not a UnixFS DAG, so it will not match
// the CID IPFS assigns to the same file.
func ContentKey(data []byte) string {
	sum := sha256.Sum256(data)
	mh := make([]byte, 0, 2+len(sum))
	mh = append(mh, 0x12, 0x20)
	mh = append(mh, sum[:]...)
	return base58.Encode(mh)
}
