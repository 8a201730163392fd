package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"trendscout/researchservice/internal/domain"
	"trendscout/researchservice/internal/research"
)

const (
	providerName   = "youtube"
	defaultBaseURL = "https://www.googleapis.com/youtube/v3"
	maxPageSize    = 50
	maxErrorBody   = 512
)

var (
	ErrMissingAPIKey = errors.New("youtube api key is not configured")
	ErrQuotaExceeded = errors.New("youtube quota exceeded")
)

type Config struct {
	APIKey         string
	FallbackAPIKey string
	BaseURL        string
	UserAgent      string
	Client         *http.Client
}

// Client talks to the YouTube Data API v3. When the primary key runs out of
// quota the fallback key, if any, is tried for the same request.
type Client struct {
	keys      []string
	baseURL   string
	userAgent string
	http      *http.Client
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	var keys []string
	for _, key := range []string{cfg.APIKey, cfg.FallbackAPIKey} {
		if value := strings.TrimSpace(key); value != "" {
			keys = append(keys, value)
		}
	}
	return &Client{
		keys:      keys,
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: strings.TrimSpace(cfg.UserAgent),
		http:      httpClient,
	}
}

func (c *Client) Name() string {
	return providerName
}

func (c *Client) Enabled() bool {
	return len(c.keys) > 0
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

type videoListResponse struct {
	NextPageToken string      `json:"nextPageToken"`
	Items         []videoItem `json:"items"`
}

type videoItem struct {
	ID      string `json:"id"`
	Snippet struct {
		Title                string `json:"title"`
		Description          string `json:"description"`
		ChannelID            string `json:"channelId"`
		ChannelTitle         string `json:"channelTitle"`
		PublishedAt          string `json:"publishedAt"`
		LiveBroadcastContent string `json:"liveBroadcastContent"`
		Thumbnails           map[string]struct {
			URL string `json:"url"`
		} `json:"thumbnails"`
	} `json:"snippet"`
	Statistics struct {
		ViewCount string `json:"viewCount"`
	} `json:"statistics"`
	ContentDetails struct {
		Duration string `json:"duration"`
	} `json:"contentDetails"`
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// Search returns video ids for one query, in the platform's order.
func (c *Client) Search(ctx context.Context, query domain.SearchQuery) ([]string, error) {
	params := url.Values{
		"part":       {"snippet"},
		"type":       {"video"},
		"q":          {strings.TrimSpace(query.Query)},
		"maxResults": {strconv.Itoa(clampPageSize(query.MaxResults))},
	}
	if query.Order != "" {
		params.Set("order", string(query.Order))
	}
	if query.Language != "" {
		params.Set("relevanceLanguage", query.Language)
	}
	if query.Region != "" {
		params.Set("regionCode", strings.ToUpper(query.Region))
	}
	switch query.Format {
	case domain.ContentFormatShort:
		params.Set("videoDuration", "short")
	case domain.ContentFormatLive:
		params.Set("eventType", "live")
	}

	var payload searchResponse
	if err := c.get(ctx, "search", params, &payload); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(payload.Items))
	for _, item := range payload.Items {
		if id := strings.TrimSpace(item.ID.VideoID); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Details fetches full records for up to 50 ids.
func (c *Client) Details(ctx context.Context, ids []string) ([]domain.VideoRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > maxPageSize {
		return nil, fmt.Errorf("youtube details: %d ids exceeds the limit of %d", len(ids), maxPageSize)
	}
	params := url.Values{
		"part":       {"snippet,statistics,contentDetails"},
		"id":         {strings.Join(ids, ",")},
		"maxResults": {strconv.Itoa(maxPageSize)},
	}
	var payload videoListResponse
	if err := c.get(ctx, "videos", params, &payload); err != nil {
		return nil, err
	}
	records := make([]domain.VideoRecord, 0, len(payload.Items))
	for _, item := range payload.Items {
		if strings.TrimSpace(item.ID) == "" {
			continue
		}
		records = append(records, item.toRecord())
	}
	return records, nil
}

// Trending pages through the most-popular chart of a region.
func (c *Client) Trending(ctx context.Context, region string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = maxPageSize
	}
	ids := make([]string, 0, limit)
	pageToken := ""
	for len(ids) < limit {
		params := url.Values{
			"part":       {"id"},
			"chart":      {"mostPopular"},
			"maxResults": {strconv.Itoa(clampPageSize(limit - len(ids)))},
		}
		if region != "" {
			params.Set("regionCode", strings.ToUpper(region))
		}
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}
		var payload videoListResponse
		if err := c.get(ctx, "videos", params, &payload); err != nil {
			if len(ids) > 0 {
				return ids, nil
			}
			return nil, err
		}
		for _, item := range payload.Items {
			if id := strings.TrimSpace(item.ID); id != "" {
				ids = append(ids, id)
			}
		}
		if payload.NextPageToken == "" || len(payload.Items) == 0 {
			break
		}
		pageToken = payload.NextPageToken
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (item videoItem) toRecord() domain.VideoRecord {
	views, err := strconv.ParseInt(strings.TrimSpace(item.Statistics.ViewCount), 10, 64)
	if err != nil || views < 0 {
		views = 0
	}
	thumbnail := ""
	for _, size := range []string{"high", "medium", "default"} {
		if thumb, ok := item.Snippet.Thumbnails[size]; ok && thumb.URL != "" {
			thumbnail = thumb.URL
			break
		}
	}
	return domain.VideoRecord{
		ID:              strings.TrimSpace(item.ID),
		Title:           item.Snippet.Title,
		ChannelName:     item.Snippet.ChannelTitle,
		ChannelID:       item.Snippet.ChannelID,
		Description:     item.Snippet.Description,
		PublishedAt:     research.ParsePublishedAt(item.Snippet.PublishedAt),
		ViewCount:       views,
		DurationSeconds: research.DecodeDuration(item.ContentDetails.Duration),
		LiveStatus:      domain.NormalizeLiveStatus(item.Snippet.LiveBroadcastContent),
		ThumbnailURL:    thumbnail,
	}
}

func (c *Client) get(ctx context.Context, resource string, params url.Values, dest any) error {
	if len(c.keys) == 0 {
		return ErrMissingAPIKey
	}
	var lastErr error
	for _, key := range c.keys {
		lastErr = c.getWithKey(ctx, resource, params, key, dest)
		if !errors.Is(lastErr, ErrQuotaExceeded) {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) getWithKey(ctx context.Context, resource string, params url.Values, key string, dest any) error {
	query := url.Values{}
	for name, values := range params {
		query[name] = values
	}
	query.Set("key", key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+resource+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("youtube %s: build request: %w", resource, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("youtube %s: %w", resource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return classifyError(resource, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("youtube %s: decode response: %w", resource, err)
	}
	return nil
}

func classifyError(resource string, status int, body []byte) error {
	var payload apiErrorResponse
	message := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil && payload.Error.Message != "" {
		message = payload.Error.Message
		for _, detail := range payload.Error.Errors {
			switch detail.Reason {
			case "quotaExceeded", "dailyLimitExceeded", "rateLimitExceeded", "userRateLimitExceeded":
				return fmt.Errorf("%w: %s", ErrQuotaExceeded, message)
			}
		}
	}
	if status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", ErrQuotaExceeded, message)
	}
	if len(message) > maxErrorBody {
		message = message[:maxErrorBody]
	}
	return fmt.Errorf("youtube %s: status %d: %s", resource, status, message)
}

func clampPageSize(value int) int {
	switch {
	case value <= 0:
		return 25
	case value > maxPageSize:
		return maxPageSize
	default:
		return value
	}
}
