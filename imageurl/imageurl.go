// Package imageurl turns ticket picture references into URLs a browser can load.
package imageurl

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	DefaultPlaceholder = "/placeholder-nft.svg"

	ipfsScheme = "ipfs://"
)

// Gateways that serve the same content; the first one is the default.
var Gateways = []string{
	"https://ipfs.io",
	"https://gateway.pinata.cloud",
	"https://cloudflare-ipfs.com",
}

var ipfsPath = regexp.MustCompile(`/ipfs/([a-zA-Z0-9]+)`)

type Config struct {
	Gateway     string `json:"gateway"`
	Placeholder string `json:"placeholder"`
}

type Sanitizer struct {
	gateway     string
	placeholder string
}

func New(cfg Config) *Sanitizer {
	s := &Sanitizer{
		gateway:     strings.TrimRight(cfg.Gateway, "/"),
		placeholder: cfg.Placeholder,
	}
	if s.gateway == "" {
		s.gateway = Gateways[0]
	}
	if s.placeholder == "" {
		s.placeholder = DefaultPlaceholder
	}
	return s
}

func (s *Sanitizer) Placeholder() string { return s.placeholder }

// Gateway returns the URL of hash on the primary gateway.
func (s *Sanitizer) Gateway(hash string) string {
	return s.gateway + "/ipfs/" + hash
}

// Sanitize never fails: anything it cannot vouch for becomes the placeholder.
func (s *Sanitizer) Sanitize(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return s.placeholder
	}
	if strings.HasPrefix(u, ipfsScheme) {
		return ConvertGateway(u, s.gateway)
	}
	// already on a gateway
	if IsIPFS(u) || strings.Contains(u, "ipfs.") {
		return u
	}
	// invalid percent escapes are rejected here, where a browser would pass them on
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return s.placeholder
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return s.placeholder
	}
	return parsed.String()
}

func IsIPFS(u string) bool {
	return strings.HasPrefix(u, ipfsScheme) || strings.Contains(u, "/ipfs/")
}

// ConvertGateway re-points an IPFS reference at gateway. Other URLs are returned as is.
func ConvertGateway(u, gateway string) string {
	gateway = strings.TrimRight(gateway, "/")
	if strings.HasPrefix(u, ipfsScheme) {
		return gateway + "/ipfs/" + strings.TrimPrefix(u, ipfsScheme)
	}
	if m := ipfsPath.FindStringSubmatch(u); m != nil {
		return gateway + "/ipfs/" + m[1]
	}
	return u
}
