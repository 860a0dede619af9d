package parser

import "testing"

func TestParse_WellFormedBlock(t *testing.T) {
	raw := "Here is my assessment of the role.\n" +
		"<<<RESULTS>>>\n" +
		"companyName: Acme\n" +
		"location: Warsaw\n" +
		"remote: yes\n" +
		"seniority: Medium\n" +
		"techKeywords: go, postgres, , kubernetes\n" +
		"matchScore: 8\n" +
		"score=7\n" +
		"<<<END>>>\n" +
		"Good luck!"

	f := Parse(raw)
	if f.CompanyName != "Acme" {
		t.Fatalf("companyName = %q, want Acme", f.CompanyName)
	}
	if f.Location != "Warsaw" {
		t.Fatalf("location = %q, want Warsaw", f.Location)
	}
	if f.Seniority != "medium" {
		t.Fatalf("seniority = %q, want medium (lowercased)", f.Seniority)
	}
	if len(f.TechKeywords) != 3 || f.TechKeywords[0] != "go" || f.TechKeywords[2] != "kubernetes" {
		t.Fatalf("techKeywords = %v, want [go postgres kubernetes]", f.TechKeywords)
	}
	if f.MatchScore == nil || *f.MatchScore != 8 {
		t.Fatalf("matchScore = %v, want 8", f.MatchScore)
	}
	if f.Score == nil || *f.Score != 7 {
		t.Fatalf("score = %v, want 7", f.Score)
	}
}

func TestParse_MissingMarkersUsesWholeInput(t *testing.T) {
	f := Parse("companyName: Globex\nnotes: fine")
	if f.CompanyName != "Globex" {
		t.Fatalf("companyName = %q, want Globex", f.CompanyName)
	}
	if f.Notes != "fine" {
		t.Fatalf("notes = %q, want fine", f.Notes)
	}
}

func TestParse_TotalOnGarbage(t *testing.T) {
	inputs := []string{
		"",
		"   \n\t\n",
		"\x00\x01\xffbinary garbage::==",
		"<<<RESULTS>>>",
		"<<<RESULTS>>><<<END>>>",
		"no delimiters here at all",
		": leading delimiter\n= another",
	}
	for _, in := range inputs {
		f := Parse(in)
		if f.MatchScore != nil || f.Score != nil || f.CompanyName != "" {
			t.Fatalf("Parse(%q) produced unexpected fields: %+v", in, f)
		}
	}
}

func TestParse_ScoreNormalization(t *testing.T) {
	cases := []struct {
		raw  string
		want *int
	}{
		{"score: 7", intp(7)},
		{"score: 0", intp(0)},
		{"score: 10", intp(10)},
		{"score: 85", intp(9)}, // 85/10 rounded away from zero
		{"score: 100", intp(10)},
		{"score: 250", nil},
		{"score: -3", nil},
		{"score: abc", nil},
		{"score: 7.5", intp(8)},
		{"score:", nil},
		{"score: null", nil},
	}
	for _, c := range cases {
		got := Parse(c.raw).Score
		switch {
		case c.want == nil && got != nil:
			t.Fatalf("Parse(%q).Score = %d, want absent", c.raw, *got)
		case c.want != nil && got == nil:
			t.Fatalf("Parse(%q).Score = absent, want %d", c.raw, *c.want)
		case c.want != nil && *got != *c.want:
			t.Fatalf("Parse(%q).Score = %d, want %d", c.raw, *got, *c.want)
		}
	}
}

func TestParse_FirstDelimiterSplit(t *testing.T) {
	f := Parse("notes: a: b: c")
	if f.Notes != "a: b: c" {
		t.Fatalf("notes = %q, want %q", f.Notes, "a: b: c")
	}

	f = Parse("notes=key: value")
	if f.Notes != "key: value" {
		t.Fatalf("notes = %q, want %q", f.Notes, "key: value")
	}

	// ':' before '=' wins even when both are present.
	f = Parse("summary: a=b")
	if f.Summary != "a=b" {
		t.Fatalf("summary = %q, want %q", f.Summary, "a=b")
	}
}

func TestParse_DuplicateKeyFirstWins(t *testing.T) {
	f := Parse("remote: yes\nnotes: n\nremote: no")
	if f.Remote != "yes" {
		t.Fatalf("remote = %q, want yes (first occurrence)", f.Remote)
	}
}

func TestParse_NullAndEmptyValuesAbsent(t *testing.T) {
	f := Parse("companyName: NULL\nlocation:\nremote: Null")
	if f.CompanyName != "" || f.Location != "" || f.Remote != "" {
		t.Fatalf("null/empty values should be absent, got %+v", f)
	}
}

func TestParse_UnknownKeysDropped(t *testing.T) {
	f := Parse("frobnicate: yes\ncompanyName: Acme")
	if f.CompanyName != "Acme" {
		t.Fatalf("companyName = %q, want Acme", f.CompanyName)
	}
}

func TestParse_KeysCaseInsensitive(t *testing.T) {
	f := Parse("COMPANYNAME: Acme\nSeniorityFit: high")
	if f.CompanyName != "Acme" {
		t.Fatalf("companyName = %q, want Acme", f.CompanyName)
	}
	if f.Seniority != "high" {
		t.Fatalf("seniority = %q, want high", f.Seniority)
	}
}

func TestParse_SeniorityOutsideSetAbsent(t *testing.T) {
	f := Parse("seniority: principal")
	if f.Seniority != "" {
		t.Fatalf("seniority = %q, want absent for out-of-set value", f.Seniority)
	}
}

func intp(v int) *int { return &v }
