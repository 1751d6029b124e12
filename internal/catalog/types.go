package catalog

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Game is one catalog record with enough detail to enumerate its media.
type Game struct {
	ID       string
	Name     string
	AltNames []string
	Synopsis string
	Medias   []Media
}

// Media describes one downloadable asset variant attached to a game.
type Media struct {
	Kind   string
	Region string
	URL    string
	Format string
	MD5    string
}

// MediaFor returns the first media variant of the requested kind whose region
// appears in the caller's preference order. Variants with an empty region act
// as a final fallback.
func (g *Game) MediaFor(kind MediaKind, regions []string) (Media, bool) {
	for _, region := range regions {
		for _, media := range g.Medias {
			if media.Kind == string(kind) && media.Region == region && media.URL != "" {
				return media, true
			}
		}
	}
	for _, media := range g.Medias {
		if media.Kind == string(kind) && media.URL != "" {
			return media, true
		}
	}
	return Media{}, false
}

// Wire DTOs. Field names follow the remote API's French vocabulary; they stay
// confined to this file.

type apiEnvelope struct {
	Response apiResponse `json:"response"`
}

type apiResponse struct {
	Game  *apiGame  `json:"jeu"`
	Games []apiGame `json:"jeux"`
}

type apiGame struct {
	ID       json.Number    `json:"id"`
	Names    []regionalText `json:"noms"`
	Synopsis []localeText   `json:"synopsis"`
	Medias   []apiMedia     `json:"medias"`
}

type regionalText struct {
	Region string `json:"region"`
	Text   string `json:"text"`
}

type localeText struct {
	Language string `json:"langue"`
	Text     string `json:"text"`
}

type apiMedia struct {
	Type   string `json:"type"`
	Region string `json:"region"`
	URL    string `json:"url"`
	Format string `json:"format"`
	MD5    string `json:"md5"`
}

func (g apiGame) toGame(regions []string) Game {
	game := Game{ID: g.ID.String()}

	names := make([]string, 0, len(g.Names))
	byRegion := make(map[string]string, len(g.Names))
	for _, name := range g.Names {
		text := strings.TrimSpace(name.Text)
		if text == "" {
			continue
		}
		names = append(names, text)
		if _, seen := byRegion[name.Region]; !seen {
			byRegion[name.Region] = text
		}
	}
	for _, region := range regions {
		if name, ok := byRegion[region]; ok {
			game.Name = name
			break
		}
	}
	if game.Name == "" && len(names) > 0 {
		game.Name = names[0]
	}
	for _, name := range names {
		if name != game.Name {
			game.AltNames = append(game.AltNames, name)
		}
	}

	for _, syn := range g.Synopsis {
		text := strings.TrimSpace(syn.Text)
		if text == "" {
			continue
		}
		if game.Synopsis == "" || strings.HasPrefix(syn.Language, "en") {
			game.Synopsis = text
		}
		if strings.HasPrefix(syn.Language, "en") {
			break
		}
	}

	for _, media := range g.Medias {
		if media.URL == "" {
			continue
		}
		game.Medias = append(game.Medias, Media{
			Kind:   media.Type,
			Region: media.Region,
			URL:    media.URL,
			Format: media.Format,
			MD5:    media.MD5,
		})
	}

	return game
}

func decodeEnvelope(body []byte) (apiResponse, error) {
	var envelope apiEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return apiResponse{}, fmt.Errorf("decode catalog response: %w", err)
	}
	return envelope.Response, nil
}
