package parser

import (
	"math"
	"strconv"
	"strings"
)

// The analyzer is asked to end its reply with a block of key/value lines
// wrapped in these markers. Replies from older prompt revisions omit the
// markers entirely, in which case the whole reply is treated as the block.
const (
	startMarker = "<<<RESULTS>>>"
	endMarker   = "<<<END>>>"
)

// canonicalKeys maps lowercased incoming keys to their canonical names.
// Keys outside this set are dropped so prompt changes cannot break storage.
var canonicalKeys = map[string]string{
	"companyname":        "companyName",
	"jobtitle":           "jobTitle",
	"location":           "location",
	"remote":             "remote",
	"contracttype":       "contractType",
	"seniority":          "seniority",
	"seniorityfit":       "seniority",
	"currency":           "currency",
	"hourlymin":          "hourlyMin",
	"hourlymax":          "hourlyMax",
	"salarytext":         "salaryText",
	"salaryoriginaltext": "salaryText",
	"techkeywords":       "techKeywords",
	"missingskills":      "missingSkills",
	"strengths":          "strengths",
	"confidence":         "confidence",
	"summary":            "summary",
	"recommendation":     "recommendation",
	"notes":              "notes",
	"matchscore":         "matchScore",
	"score":              "score",
}

var allowedSeniority = map[string]bool{
	"low":    true,
	"medium": true,
	"high":   true,
}

// Fields is the typed result of parsing one analyzer reply. String fields
// are empty when absent; scores are nil when missing or unparseable.
type Fields struct {
	CompanyName    string
	JobTitle       string
	Location       string
	Remote         string
	ContractType   string
	Seniority      string
	Currency       string
	HourlyMin      string
	HourlyMax      string
	SalaryText     string
	TechKeywords   []string
	MissingSkills  []string
	Strengths      []string
	Confidence     string
	Summary        string
	Recommendation string
	Notes          string
	MatchScore     *int
	Score          *int
}

// Parse extracts the recognized fields from a free-form analyzer reply.
// It is total: any input, including empty strings and binary garbage,
// yields a valid Fields value with unparseable fields left absent. It
// never panics, which is what lets a bad reply degrade a single job
// instead of aborting an unattended batch run.
func Parse(raw string) Fields {
	kv := parseKeyValues(extractBlock(raw))

	return Fields{
		CompanyName:    kv["companyName"],
		JobTitle:       kv["jobTitle"],
		Location:       kv["location"],
		Remote:         kv["remote"],
		ContractType:   kv["contractType"],
		Seniority:      normalizeSeniority(kv["seniority"]),
		Currency:       kv["currency"],
		HourlyMin:      kv["hourlyMin"],
		HourlyMax:      kv["hourlyMax"],
		SalaryText:     kv["salaryText"],
		TechKeywords:   splitList(kv["techKeywords"]),
		MissingSkills:  splitList(kv["missingSkills"]),
		Strengths:      splitList(kv["strengths"]),
		Confidence:     kv["confidence"],
		Summary:        kv["summary"],
		Recommendation: kv["recommendation"],
		Notes:          kv["notes"],
		MatchScore:     parseScore(kv["matchScore"]),
		Score:          parseScore(kv["score"]),
	}
}

// extractBlock returns the text between the result markers, or the whole
// input when no well-formed marker pair is present.
func extractBlock(raw string) string {
	start := strings.Index(raw, startMarker)
	if start < 0 {
		return raw
	}
	rest := raw[start+len(startMarker):]
	end := strings.Index(rest, endMarker)
	if end < 0 {
		return raw
	}
	return rest[:end]
}

// parseKeyValues tokenizes one-assignment-per-line text into a canonical
// key map. Lines split at the first ':' or '=', whichever comes first, so
// values may themselves contain delimiter characters. The first occurrence
// of a key wins; later duplicates are ignored for determinism.
func parseKeyValues(block string) map[string]string {
	out := make(map[string]string)

	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" {
			continue
		}

		idx := firstDelimiter(line)
		if idx <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:idx])
		if key == "" {
			continue
		}
		canonical, ok := canonicalKeys[strings.ToLower(key)]
		if !ok {
			continue
		}
		if _, dup := out[canonical]; dup {
			continue
		}

		value := strings.TrimSpace(line[idx+1:])
		if strings.EqualFold(value, "null") {
			value = ""
		}
		// An empty value still claims the key so a later duplicate
		// cannot override the first occurrence.
		out[canonical] = value
	}

	return out
}

// firstDelimiter returns the index of the earliest ':' or '=' in line,
// or -1 when neither is present.
func firstDelimiter(line string) int {
	colon := strings.IndexByte(line, ':')
	eq := strings.IndexByte(line, '=')
	switch {
	case colon < 0:
		return eq
	case eq < 0:
		return colon
	case colon < eq:
		return colon
	default:
		return eq
	}
}

func normalizeSeniority(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if !allowedSeniority[v] {
		return ""
	}
	return v
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var items []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}

// parseScore normalizes a score value to the 0..10 contract. Values in
// 0..100 are tolerated as an accidentally rescaled 0..10 and divided by
// ten with away-from-zero rounding; anything else is absent. Some prompt
// revisions mixed the two ranges up, so the leniency is deliberate.
func parseScore(raw string) *int {
	if raw == "" {
		return nil
	}

	var value int
	if i, err := strconv.Atoi(raw); err == nil {
		value = i
	} else if f, err := strconv.ParseFloat(raw, 64); err == nil {
		value = int(math.Round(f)) // math.Round rounds half away from zero
	} else {
		return nil
	}

	switch {
	case value >= 0 && value <= 10:
		return &value
	case value > 10 && value <= 100:
		scaled := int(math.Round(float64(value) / 10))
		if scaled > 10 {
			scaled = 10
		}
		return &scaled
	default:
		return nil
	}
}
