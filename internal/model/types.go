package model

import "time"

// JobURL is one unit of batch input: the listing URL plus the title hint
// used by the keyword pre-filter. The URL is the job's identity.
type JobURL struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// FetchResult is the rendered content of one page load. LoggedOut means
// the browser landed on a login page instead of the target and carries
// no content.
type FetchResult struct {
	Text      string
	HTML      string
	Markdown  string
	LoggedOut bool
}

// Record is the persisted result of processing one job URL. URL is the
// primary key; at most one Record exists per URL.
type Record struct {
	URL            string    `json:"url"`
	JobTitle       string    `json:"jobTitle,omitempty"`
	Description    string    `json:"description,omitempty"`
	AIResponse     string    `json:"aiResponse,omitempty"`
	CompanyName    string    `json:"companyName,omitempty"`
	Location       string    `json:"location,omitempty"`
	Remote         string    `json:"remote,omitempty"`
	ContractType   string    `json:"contractType,omitempty"`
	Seniority      string    `json:"seniority,omitempty"`
	Currency       string    `json:"currency,omitempty"`
	HourlyMin      string    `json:"hourlyMin,omitempty"`
	HourlyMax      string    `json:"hourlyMax,omitempty"`
	SalaryText     string    `json:"salaryText,omitempty"`
	TechKeywords   []string  `json:"techKeywords,omitempty"`
	MissingSkills  []string  `json:"missingSkills,omitempty"`
	Strengths      []string  `json:"strengths,omitempty"`
	Confidence     string    `json:"confidence,omitempty"`
	Summary        string    `json:"summary,omitempty"`
	Recommendation string    `json:"recommendation,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	MatchScore     *int      `json:"matchScore,omitempty"`
	Score          int       `json:"score"`
	Rejected       bool      `json:"rejected"`
	Marked         bool      `json:"marked"`
	Applied        bool      `json:"applied"`
	CreatedAt      time.Time `json:"createdAt"`
}

// RunSummary is the aggregate outcome of one batch run.
type RunSummary struct {
	Total      int       `json:"total"`
	Succeeded  int       `json:"succeeded"`
	Duplicates int       `json:"duplicates"`
	Empty      int       `json:"empty"`
	Errors     int       `json:"errors"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// SuccessRate returns the share of processed jobs that were stored,
// as a percentage.
func (s RunSummary) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Succeeded) * 100 / float64(s.Total)
}
