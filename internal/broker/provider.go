package broker

import (
	"os"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// APIKeyEnv is the environment override consulted when settings carry no key.
const APIKeyEnv = "COMPOSIO_API_KEY"

// Settings are the broker credentials as read from configuration.
type Settings struct {
	APIKey  string
	BaseURL string
}

type cacheKey struct {
	apiKey  string
	baseURL string
}

type cachedClient struct {
	key    cacheKey
	client *Client
}

// Provider hands out the shared broker Client. The cached entry is replaced
// wholesale, never edited, so readers always see a complete client.
type Provider struct {
	current atomic.Pointer[cachedClient]
	group   singleflight.Group

	// Getenv is consulted for APIKeyEnv. Defaults to os.Getenv.
	Getenv func(string) string
}

// NewProvider creates an empty provider.
func NewProvider() *Provider {
	return &Provider{Getenv: os.Getenv}
}

// Resolve applies the environment fallback and base URL default.
// ok is false when no API key is available.
func (p *Provider) Resolve(s Settings) (resolved Settings, ok bool) {
	key := strings.TrimSpace(s.APIKey)
	if key == "" && p.Getenv != nil {
		key = strings.TrimSpace(p.Getenv(APIKeyEnv))
	}
	base := strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return Settings{APIKey: key, BaseURL: base}, key != ""
}

// Get returns the client for s, or nil when no API key is configured.
// A nil result means the integration is disabled, not that something failed.
func (p *Provider) Get(s Settings) *Client {
	resolved, ok := p.Resolve(s)
	if !ok {
		return nil
	}
	key := cacheKey{apiKey: resolved.APIKey, baseURL: resolved.BaseURL}

	if cur := p.current.Load(); cur != nil && cur.key == key {
		return cur.client
	}

	v, _, _ := p.group.Do(key.apiKey+"\x00"+key.baseURL, func() (interface{}, error) {
		if cur := p.current.Load(); cur != nil && cur.key == key {
			return cur.client, nil
		}
		client := NewClient(key.apiKey, key.baseURL)
		p.current.Store(&cachedClient{key: key, client: client})
		log.Info().Str("base_url", key.baseURL).Msg("Broker client created")
		return client, nil
	})
	return v.(*Client)
}

// Reset drops the cached client. The next Get builds a fresh one.
func (p *Provider) Reset() {
	p.current.Store(nil)
}
