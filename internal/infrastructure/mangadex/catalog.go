package mangadex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"MangaVote/internal/domain"
	"MangaVote/internal/ports"
)

const (
	untitled          = "Untitled"
	formatGroup       = "format"
	coverArtType      = "cover_art"
	defaultCoverBase  = "https://mangadex.org/covers"
	statisticsIDParam = "manga[]"
)

// Manga is the subset of the upstream manga record the catalog needs.
type Manga struct {
	ID         string `json:"id"`
	Attributes struct {
		Title     json.RawMessage `json:"title"`
		CreatedAt string          `json:"createdAt"`
		Tags      []struct {
			Attributes struct {
				Name  map[string]string `json:"name"`
				Group string            `json:"group"`
			} `json:"attributes"`
		} `json:"tags"`
	} `json:"attributes"`
	Relationships []struct {
		Type       string `json:"type"`
		Attributes *struct {
			FileName string `json:"fileName"`
		} `json:"attributes,omitempty"`
	} `json:"relationships"`
}

type listResponse struct {
	Data  []Manga `json:"data"`
	Total int     `json:"total"`
}

type statisticsResponse struct {
	Statistics map[string]struct {
		Rating struct {
			Bayesian *float64 `json:"bayesian"`
		} `json:"rating"`
	} `json:"statistics"`
}

// Catalog adapts Client to ports.CatalogAPI.
type Catalog struct {
	client    *Client
	coverBase string
}

var _ ports.CatalogAPI = (*Catalog)(nil)

// NewCatalog wires the listing and statistics endpoints; coverBase defaults to the public CDN.
func NewCatalog(client *Client, coverBase string) *Catalog {
	coverBase = strings.TrimSuffix(coverBase, "/")
	if coverBase == "" {
		coverBase = defaultCoverBase
	}
	return &Catalog{client: client, coverBase: coverBase}
}

// ListEntries fetches one listing page and normalizes every entry.
func (c *Catalog) ListEntries(ctx context.Context, q ports.ListingQuery) (ports.ListingPage, error) {
	var resp listResponse
	err := c.client.Fetch(ctx, Request{
		Path: PathManga,
		Query: map[string]any{
			"limit":              q.Limit,
			"offset":             q.Offset,
			"includedTags[]":     q.IncludedTags,
			"includedTagsMode":   q.IncludedTagsMode,
			"originalLanguage[]": q.OriginalLanguages,
			"includes[]":         q.Includes,
		},
	}, &resp)
	if err != nil {
		return ports.ListingPage{}, err
	}

	entries := make([]domain.CatalogEntry, 0, len(resp.Data))
	for _, m := range resp.Data {
		entries = append(entries, Simplify(m, c.coverBase))
	}
	return ports.ListingPage{Entries: entries, Total: resp.Total}, nil
}

// Ratings fetches bayesian ratings for ids in a single statistics call.
// IDs missing from the response, or with a null rating, are omitted.
func (c *Catalog) Ratings(ctx context.Context, ids []string) (map[string]float64, error) {
	var resp statisticsResponse
	err := c.client.Fetch(ctx, Request{
		Path:  PathStatistics,
		Query: map[string]any{statisticsIDParam: ids},
	}, &resp)
	if err != nil {
		return nil, err
	}

	ratings := make(map[string]float64, len(resp.Statistics))
	for id, stat := range resp.Statistics {
		if stat.Rating.Bayesian == nil {
			continue
		}
		ratings[id] = *stat.Rating.Bayesian
	}
	return ratings, nil
}

// Simplify normalizes one upstream record into a catalog entry with a zero score.
func Simplify(m Manga, coverBase string) domain.CatalogEntry {
	tags := make([]string, 0, len(m.Attributes.Tags))
	for _, tag := range m.Attributes.Tags {
		if tag.Attributes.Group != formatGroup {
			continue
		}
		tags = append(tags, tag.Attributes.Name["en"])
	}

	cover := ""
	for _, rel := range m.Relationships {
		if rel.Type != coverArtType {
			continue
		}
		if rel.Attributes != nil && rel.Attributes.FileName != "" {
			cover = fmt.Sprintf("%s/%s/%s", coverBase, m.ID, rel.Attributes.FileName)
		}
		break
	}

	published, err := time.Parse(time.RFC3339, m.Attributes.CreatedAt)
	if err != nil {
		published = time.Time{}
	}

	return domain.CatalogEntry{
		ID:          m.ID,
		Title:       firstTitle(m.Attributes.Title),
		Tags:        tags,
		PublishedAt: published.UTC().Truncate(time.Millisecond),
		CoverURL:    cover,
	}
}

// firstTitle returns the value of the first key of the localized title object in document order.
func firstTitle(raw json.RawMessage) string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return untitled
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return untitled
	}
	if !dec.More() {
		return untitled
	}
	if _, err := dec.Token(); err != nil {
		return untitled
	}
	var value string
	if err := dec.Decode(&value); err != nil || value == "" {
		return untitled
	}
	return value
}
