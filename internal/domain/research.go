package domain

import "time"

type ResearchMode string

const (
	ResearchModeKeyword  ResearchMode = "keyword"
	ResearchModeTrending ResearchMode = "trending"
)

type ResearchRequest struct {
	SessionID string        `json:"sessionId,omitempty"`
	Query     string        `json:"query"`
	Policy    RankingPolicy `json:"policy"`
	Format    FormatFilter  `json:"format"`
}

// RankedVideo is a VideoRecord together with the values derived from it at
// ranking time.
type RankedVideo struct {
	VideoRecord
	Rank         int           `json:"rank"`
	Format       ContentFormat `json:"format"`
	Relevance    int           `json:"relevance"`
	ViewsPerHour float64       `json:"viewsPerHour"`
	AgeHours     float64       `json:"ageHours"`
	Recency      string        `json:"recency"`
	DurationText string        `json:"durationText"`
	ViewsText    string        `json:"viewsText"`
}

type ProviderStatus struct {
	Name      string `json:"name"`
	Operation string `json:"operation"`
	Query     string `json:"query,omitempty"`
	Language  string `json:"language,omitempty"`
	Region    string `json:"region,omitempty"`
	OK        bool   `json:"ok"`
	Count     int    `json:"count"`
	Error     string `json:"error,omitempty"`
}

type FormatDistribution struct {
	Short   int `json:"short"`
	Live    int `json:"live"`
	Regular int `json:"regular"`
}

type TokenCount struct {
	Token string `json:"token"`
	Count int    `json:"count"`
}

// NicheSummary holds the aggregate statistics of a result set. Rendering it
// into prose is left to the caller.
type NicheSummary struct {
	SampleCount        int                `json:"sampleCount"`
	RelevantOnly       bool               `json:"relevantOnly"`
	Formats            FormatDistribution `json:"formats"`
	TopTokens          []TokenCount       `json:"topTokens"`
	Timezone           string             `json:"timezone"`
	PublishHourSamples int                `json:"publishHourSamples"`
	MeanPublishHour    int                `json:"meanPublishHour"`
	PeakPublishHours   []int              `json:"peakPublishHours"`
	ViewsMean          int64              `json:"viewsMean"`
	ViewsMedian        int64              `json:"viewsMedian"`
	VPHMean            float64            `json:"vphMean"`
}

type ResearchResponse struct {
	SessionID   string           `json:"sessionId"`
	Query       string           `json:"query"`
	Mode        ResearchMode     `json:"mode"`
	Policy      RankingPolicy    `json:"policy"`
	Format      FormatFilter     `json:"format"`
	Variants    []QueryVariant   `json:"variants"`
	Items       []RankedVideo    `json:"items"`
	Candidates  int              `json:"candidates"`
	Providers   []ProviderStatus `json:"providers"`
	Summary     NicheSummary     `json:"summary"`
	Titles      []string         `json:"titles"`
	Tags        string           `json:"tags"`
	ElapsedMS   int64            `json:"elapsedMs"`
	GeneratedAt time.Time        `json:"generatedAt"`
}

type ResearchPhase string

const (
	ResearchPhaseSearch   ResearchPhase = "search"
	ResearchPhaseTrending ResearchPhase = "trending"
	ResearchPhaseDetails  ResearchPhase = "details"
)

// ResearchProgress is reported once per provider call while a submission
// runs.
type ResearchProgress struct {
	Phase     ResearchPhase  `json:"phase"`
	Step      int            `json:"step"`
	Total     int            `json:"total"`
	Status    ProviderStatus `json:"status"`
	Collected int            `json:"collected"`
}

type IdeaSource string

const (
	IdeaSourceAssistant IdeaSource = "assistant"
	IdeaSourceLocal     IdeaSource = "local"
)

type IdeasResponse struct {
	SessionID string     `json:"sessionId"`
	Query     string     `json:"query"`
	Source    IdeaSource `json:"source"`
	Ideas     []string   `json:"ideas"`
	Notice    string     `json:"notice,omitempty"`
}

// Session is the per-user application state that lives between
// submissions. It is replaced wholesale by each new research submission,
// except for the assistant flags which last for the whole session.
type Session struct {
	ID               string            `json:"id"`
	Query            string            `json:"query"`
	Mode             ResearchMode      `json:"mode"`
	Policy           RankingPolicy     `json:"policy"`
	Format           FormatFilter      `json:"format"`
	Variants         []QueryVariant    `json:"variants"`
	Candidates       []VideoRecord     `json:"candidates"`
	Providers        []ProviderStatus  `json:"providers"`
	Summary          NicheSummary      `json:"summary"`
	AssistantBlocked bool              `json:"assistantBlocked"`
	NoticeShown      bool              `json:"noticeShown"`
	AssistantCache   map[string]string `json:"assistantCache,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

type ProviderDiagnostics struct {
	Name                string     `json:"name"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	BlockedUntil        *time.Time `json:"blockedUntil,omitempty"`
	LastError           string     `json:"lastError,omitempty"`
	LastSuccessAt       *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *time.Time `json:"lastFailureAt,omitempty"`
	LastLatencyMS       int64      `json:"lastLatencyMs,omitempty"`
	LastTimeout         bool       `json:"lastTimeout,omitempty"`
	LastQuery           string     `json:"lastQuery,omitempty"`
	TotalRequests       int64      `json:"totalRequests,omitempty"`
	TotalFailures       int64      `json:"totalFailures,omitempty"`
	TimeoutCount        int64      `json:"timeoutCount,omitempty"`
}
