package hakush

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"rolesync/pkg/config"
	errs "rolesync/pkg/errors"
	"rolesync/pkg/httpclient"
	"rolesync/pkg/logger"
	"rolesync/pkg/metadata"
	"rolesync/pkg/ratelimit"
)

// detailAttributes are copied from the detail document when present, next to
// the configured image reference field
var detailAttributes = []string{"icon", "rank", "weapon", "element"}

// Fetcher builds the character roster from the hakush.in API
type Fetcher struct {
	client       httpclient.Fetcher
	baseURL      string
	locales      []string
	detailLocale string
	imageField   string
	timeout      time.Duration
	limiter      ratelimit.Limiter
	logger       logger.Logger
}

// NewFetcher creates a Fetcher. timeout applies to every call.
func NewFetcher(client httpclient.Fetcher, cfg config.HakushConfig, timeout time.Duration, log logger.Logger) *Fetcher {
	if log == nil {
		log = logger.GetLogger()
	}
	detail := cfg.DetailLocale
	if detail == "" && len(cfg.Locales) > 0 {
		detail = cfg.Locales[0]
	}

	return &Fetcher{
		client:       client,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		locales:      cfg.Locales,
		detailLocale: detail,
		imageField:   cfg.ImageField,
		timeout:      timeout,
		limiter:      ratelimit.NewFixedDelay(cfg.RequestDelay),
		logger:       log.WithField("component", "hakush"),
	}
}

// WithLimiter replaces the pacing between calls
func (f *Fetcher) WithLimiter(l ratelimit.Limiter) *Fetcher {
	f.limiter = l
	return f
}

// ListURL returns the character list URL for locale
func (f *Fetcher) ListURL(locale string) string {
	return fmt.Sprintf("%s/data/%s/character.json", f.baseURL, url.PathEscape(locale))
}

// DetailURL returns the detail document URL for a character
func (f *Fetcher) DetailURL(id string) string {
	return fmt.Sprintf("%s/data/%s/character/%s.json", f.baseURL, url.PathEscape(f.detailLocale), url.PathEscape(id))
}

// FetchRoster fetches every locale list and every character detail and
// returns the merged roster sorted by id. Any failure other than a missing
// detail document aborts the fetch.
func (f *Fetcher) FetchRoster(ctx context.Context) (*metadata.Roster, error) {
	roster := metadata.NewRoster()

	for _, locale := range f.locales {
		names, err := f.FetchNames(ctx, locale)
		if err != nil {
			return nil, fmt.Errorf("fetch %s character list: %w", locale, err)
		}

		added := 0
		for _, id := range sortedKeys(names) {
			set, err := roster.Ensure(id).SetIfAbsent(locale, names[id])
			if err != nil {
				return nil, err
			}
			if set {
				added++
			}
		}
		f.logger.InfoWithFields("Character list fetched", map[string]interface{}{
			"locale":     locale,
			"characters": len(names),
			"names":      added,
		})
	}

	if roster.Len() == 0 {
		return nil, errs.New(errs.ErrorTypeParsing, 0, nil, "no characters returned for locales %v", f.locales)
	}
	roster.SortByID()

	missing := 0
	for _, c := range roster.Characters() {
		ok, err := f.fillDetail(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("fetch detail for character %s: %w", c.ID, err)
		}
		if !ok {
			missing++
		}
	}

	f.logger.InfoWithFields("Character metadata fetched", map[string]interface{}{
		"characters":      roster.Len(),
		"missing_details": missing,
	})
	return roster, nil
}

// FetchNames returns id -> display name for one locale. Entries may be a
// plain string or an object with a name field; others are skipped.
func (f *Fetcher) FetchNames(ctx context.Context, locale string) (map[string]string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := f.client.GetJSON(ctx, f.ListURL(locale), f.timeout, &raw); err != nil {
		return nil, err
	}

	names := make(map[string]string, len(raw))
	for id, entry := range raw {
		name, ok := decodeName(entry)
		if !ok {
			f.logger.DebugWithFields("Skipping list entry without a name", map[string]interface{}{
				"locale": locale,
				"id":     id,
			})
			continue
		}
		names[id] = name
	}
	return names, nil
}

func decodeName(entry json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(entry, &s); err == nil {
		return s, s != ""
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(entry, &obj); err != nil {
		return "", false
	}
	for k, v := range obj {
		if strings.EqualFold(k, "name") {
			if err := json.Unmarshal(v, &s); err == nil && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// fillDetail copies the image reference and attributes onto c. It reports
// false for a missing-field condition: no detail document or no reference.
func (f *Fetcher) fillDetail(ctx context.Context, c *metadata.Character) (bool, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return false, err
	}

	var detail map[string]json.RawMessage
	err := f.client.GetJSON(ctx, f.DetailURL(c.ID), f.timeout, &detail)
	if errs.Is(err, errs.ErrorTypeNotFound) {
		f.logger.WarnWithFields("No detail document for character", map[string]interface{}{
			"id": c.ID,
		})
		return false, nil
	}
	if err != nil {
		return false, err
	}

	found := false
	for k, v := range detail {
		if strings.EqualFold(k, f.imageField) {
			var ref string
			if json.Unmarshal(v, &ref) == nil && ref != "" {
				if err := c.Set(f.imageField, ref); err != nil {
					return false, err
				}
				found = true
			}
		}
	}
	for _, attr := range detailAttributes {
		if attr == f.imageField {
			continue
		}
		if v, ok := detail[attr]; ok && string(v) != "null" {
			if err := c.Set(attr, v); err != nil {
				return false, err
			}
		}
	}

	if !found {
		f.logger.WarnWithFields("Character has no image reference", map[string]interface{}{
			"id":    c.ID,
			"field": f.imageField,
		})
	}
	return found, nil
}

// ImageURL converts an image reference such as
// "/Game/Aki/UI/UIResources/Common/Image/RolePile/T_RolePile_1102.T_RolePile_1102"
// into the WebP asset URL served by the API host
func (f *Fetcher) ImageURL(ref string) (string, error) {
	return ImageURL(f.baseURL, ref)
}

// ImageURL is the base-URL form of Fetcher.ImageURL
func ImageURL(baseURL, ref string) (string, error) {
	path, _, _ := strings.Cut(ref, ".")
	path = strings.ReplaceAll(path, "/Game/Aki/", "")
	path = strings.TrimLeft(path, "/")
	if path == "" {
		return "", errs.New(errs.ErrorTypeMissingField, 0, nil, "empty image reference %q", ref)
	}
	return fmt.Sprintf("%s/%s.webp", strings.TrimRight(baseURL, "/"), path), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
