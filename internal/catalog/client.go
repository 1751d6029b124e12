package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"artie/internal/faults"
	"artie/internal/logging"
	"artie/internal/ratelimit"
)

const (
	gameInfoEndpoint   = "jeuInfos.php"
	gameSearchEndpoint = "jeuRecherche.php"

	defaultHTTPTimeout = 30 * time.Second
)

// Sentinel errors callers branch on. All are additionally tagged with the
// shared faults markers so job-level classification works through wrapping.
var (
	ErrNotFound         = faults.ErrNotFound
	ErrAuth             = faults.ErrAuth
	ErrTransient        = faults.ErrTransient
	ErrMediaUnavailable = errors.New("media unavailable")
)

// Config describes client construction parameters.
type Config struct {
	BaseURL     string
	Username    string
	Password    string
	Softname    string
	Regions     []string
	MediaWidth  int
	MediaHeight int
	MaxRetries  int
	HTTPClient  *http.Client
	Limiter     *ratelimit.Limiter
	Logger      *slog.Logger
}

// Client wraps the remote catalog REST API.
type Client struct {
	baseURL    *url.URL
	username   string
	password   string
	softname   string
	regions    []string
	mediaW     int
	mediaH     int
	maxRetries int
	http       *http.Client
	limiter    *ratelimit.Limiter
	logger     *slog.Logger
}

// New creates a Client from the supplied configuration.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Username) == "" || strings.TrimSpace(cfg.Password) == "" {
		return nil, faults.Wrap(faults.ErrConfiguration, "catalog", "new", "credentials are required", nil)
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, faults.Wrap(faults.ErrConfiguration, "catalog", "new", "base url is required", nil)
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, faults.Wrap(faults.ErrConfiguration, "catalog", "new", "parse base url", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.New(60, 5)
	}
	logger := logging.NewComponentLogger(cfg.Logger, "catalog")
	softname := strings.TrimSpace(cfg.Softname)
	if softname == "" {
		softname = "artie"
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxAttempts - 1
	}
	return &Client{
		baseURL:    baseURL,
		username:   cfg.Username,
		password:   cfg.Password,
		softname:   softname,
		regions:    append([]string(nil), cfg.Regions...),
		mediaW:     cfg.MediaWidth,
		mediaH:     cfg.MediaHeight,
		maxRetries: maxRetries,
		http:       httpClient,
		limiter:    limiter,
		logger:     logger,
	}, nil
}

// SearchByChecksum looks a ROM up by its CRC32 checksum, size, and filename.
// The endpoint returns at most one game; ErrNotFound means the catalog has no
// record for the checksum.
func (c *Client) SearchByChecksum(ctx context.Context, systemID, crc32 string, size int64, filename string) (*Game, error) {
	if strings.TrimSpace(crc32) == "" {
		return nil, faults.Wrap(ErrNotFound, "catalog", "search by checksum", "empty checksum", nil)
	}
	params := c.baseParams()
	params.Set("crc", strings.ToUpper(crc32))
	if systemID != "" {
		params.Set("systemeid", systemID)
	}
	if size > 0 {
		params.Set("romtaille", strconv.FormatInt(size, 10))
	}
	if filename != "" {
		params.Set("romnom", filename)
	}

	body, err := c.getJSON(ctx, gameInfoEndpoint, params)
	if err != nil {
		return nil, err
	}
	response, err := decodeEnvelope(body)
	if err != nil {
		return nil, faults.Wrap(ErrTransient, "catalog", "search by checksum", "malformed response", err)
	}
	if response.Game == nil {
		return nil, faults.Wrap(ErrNotFound, "catalog", "search by checksum", "no game in response", nil)
	}
	game := response.Game.toGame(c.regions)
	return &game, nil
}

// SearchByName queries the catalog for games whose name resembles the given
// one. Results come back in the API's own relevance order; ranking and
// acceptance are the resolver's concern.
func (c *Client) SearchByName(ctx context.Context, systemID, name string) ([]Game, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, faults.Wrap(ErrNotFound, "catalog", "search by name", "empty name", nil)
	}
	params := c.baseParams()
	params.Set("recherche", trimmed)
	if systemID != "" {
		params.Set("systemeid", systemID)
	}

	body, err := c.getJSON(ctx, gameSearchEndpoint, params)
	if err != nil {
		return nil, err
	}
	response, err := decodeEnvelope(body)
	if err != nil {
		return nil, faults.Wrap(ErrTransient, "catalog", "search by name", "malformed response", err)
	}
	if len(response.Games) == 0 {
		return nil, faults.Wrap(ErrNotFound, "catalog", "search by name", fmt.Sprintf("no results for %q", trimmed), nil)
	}
	games := make([]Game, 0, len(response.Games))
	for _, g := range response.Games {
		games = append(games, g.toGame(c.regions))
	}
	return games, nil
}

func (c *Client) baseParams() url.Values {
	params := url.Values{}
	params.Set("ssid", c.username)
	params.Set("sspassword", c.password)
	params.Set("softname", c.softname)
	params.Set("output", "json")
	return params
}

func (c *Client) endpointURL(endpoint string, params url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + endpoint
	u.RawQuery = params.Encode()
	return u.String()
}
