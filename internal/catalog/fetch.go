package catalog

import (
	"context"
	"net/url"
	"strconv"

	"artie/internal/faults"
)

// MediaPayload carries downloaded media bytes plus the metadata the cache
// records about their remote origin.
type MediaPayload struct {
	Data []byte
	// SourceVersion is the remote's content identity for the asset: the
	// reported MD5 when present, otherwise the response ETag. Empty when the
	// remote offers neither.
	SourceVersion string
	Format        string
}

// FetchMedia downloads one media kind for a previously matched game.
// Synopsis text is materialized from the game record itself without another
// network round trip. ErrMediaUnavailable means the game has no variant of
// the requested kind for any preferred region.
func (c *Client) FetchMedia(ctx context.Context, game *Game, kind MediaKind) (MediaPayload, error) {
	if game == nil {
		return MediaPayload{}, faults.Wrap(ErrNotFound, "catalog", "fetch media", "nil game", nil)
	}

	if kind.IsText() {
		if game.Synopsis == "" {
			return MediaPayload{}, faults.Wrap(ErrMediaUnavailable, "catalog", "fetch media", "game has no synopsis", nil)
		}
		return MediaPayload{Data: []byte(game.Synopsis), Format: "txt"}, nil
	}

	media, ok := game.MediaFor(kind, c.regions)
	if !ok {
		return MediaPayload{}, faults.Wrap(ErrMediaUnavailable, "catalog", "fetch media", "no "+kind.String()+" variant", nil)
	}

	target, err := c.mediaURL(media.URL)
	if err != nil {
		return MediaPayload{}, faults.Wrap(ErrTransient, "catalog", "fetch media", "parse media url", err)
	}

	data, etag, err := c.getBytes(ctx, target)
	if err != nil {
		return MediaPayload{}, err
	}
	version := media.MD5
	if version == "" {
		version = etag
	}
	return MediaPayload{Data: data, SourceVersion: version, Format: media.Format}, nil
}

// mediaURL appends the configured resize hints to a media URL so the remote
// scales server-side and the device never holds a full-size asset.
func (c *Client) mediaURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if c.mediaW > 0 || c.mediaH > 0 {
		query := parsed.Query()
		if c.mediaW > 0 {
			query.Set("maxwidth", strconv.Itoa(c.mediaW))
		}
		if c.mediaH > 0 {
			query.Set("maxheight", strconv.Itoa(c.mediaH))
		}
		parsed.RawQuery = query.Encode()
	}
	return parsed.String(), nil
}
