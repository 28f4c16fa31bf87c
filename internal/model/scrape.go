package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NotFound stands in for a tracked field that no strategy could resolve.
const NotFound = "not found"

type ScrapeMechanism int

const (
	Curl ScrapeMechanism = iota
	HeadlessBrowser
)

func (sm ScrapeMechanism) String() string {
	if sm < Curl || sm > HeadlessBrowser {
		return "unknown"
	}
	return [...]string{"curl", "headless browser"}[sm]
}

// ProgramSummary is a single search hit as rendered on the results page.
type ProgramSummary struct {
	Keyword     string `json:"keyword"`
	ProgramName string `json:"program_name"`
	University  string `json:"university"`
	Faculty     string `json:"faculty"`
	RawText     string `json:"raw_text"`
	DetailURL   string `json:"detail_url"`
}

// NewProgramSummary splits rawText into non-empty trimmed lines and assigns them positionally:
// line 1 is the program name, line 2 the faculty, line 3 the university.
func NewProgramSummary(keyword, rawText, detailURL string) ProgramSummary {
	lines := make([]string, 0, 3)
	for _, l := range strings.Split(rawText, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	at := func(i int) string {
		if i < len(lines) {
			return lines[i]
		}
		return ""
	}

	return ProgramSummary{
		Keyword:     keyword,
		ProgramName: at(0),
		Faculty:     at(1),
		University:  at(2),
		RawText:     rawText,
		DetailURL:   detailURL,
	}
}

// DetailFields are the values resolved from a program's detail page.
type DetailFields struct {
	ProgramType string `json:"program_type"`
	TuitionCost string `json:"tuition_cost"`
}

type ProgramRecord struct {
	ProgramSummary
	DetailFields
	ScrapedAt time.Time `json:"scraped_at"`
}

// NewProgramRecord starts a record from its summary with both tracked fields set to NotFound.
func NewProgramRecord(s ProgramSummary) ProgramRecord {
	return ProgramRecord{
		ProgramSummary: s,
		DetailFields:   DetailFields{ProgramType: NotFound, TuitionCost: NotFound},
		ScrapedAt:      time.Now().UTC(),
	}
}

// RecordColumns is the column order of every tabular output.
var RecordColumns = []string{
	"keyword",
	"program_name",
	"university",
	"faculty",
	"program_type",
	"tuition_cost",
	"detail_url",
	"raw_text",
	"scraped_at",
}

// Row returns the record's values in RecordColumns order.
func (r *ProgramRecord) Row() []string {
	return []string{
		r.Keyword,
		r.ProgramName,
		r.University,
		r.Faculty,
		r.ProgramType,
		r.TuitionCost,
		r.DetailURL,
		r.RawText,
		r.ScrapedAt.Format(time.RFC3339),
	}
}

type Phase string

const (
	PhaseCollect Phase = "collect"
	PhaseFetch   Phase = "fetch"
)

// ItemFailure describes one skipped keyword or summary.
type ItemFailure struct {
	Phase  Phase  `json:"phase"`
	Index  int    `json:"index"`
	Target string `json:"target"`
	Reason string `json:"reason"`
}

// ScrapeBatch accumulates the records of one run. Records are only ever appended.
type ScrapeBatch struct {
	RunID        string          `json:"run_id"`
	Keywords     []string        `json:"keywords"`
	Mechanism    string          `json:"scrape_mechanism"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
	SummaryCount int             `json:"summary_count"`
	Records      []ProgramRecord `json:"records"`
	Failures     []ItemFailure   `json:"failures"`
}

func NewScrapeBatch(keywords []string, mechanism ScrapeMechanism) *ScrapeBatch {
	return &ScrapeBatch{
		RunID:     uuid.NewString(),
		Keywords:  append([]string(nil), keywords...),
		Mechanism: mechanism.String(),
		StartedAt: time.Now().UTC(),
	}
}

func (b *ScrapeBatch) Append(r ProgramRecord) {
	b.Records = append(b.Records, r)
}

func (b *ScrapeBatch) Fail(f ItemFailure) {
	b.Failures = append(b.Failures, f)
}

func (b *ScrapeBatch) Len() int {
	return len(b.Records)
}

type Stats struct {
	Summaries       int
	Records         int
	Failures        int
	WithProgramType int
	WithTuitionCost int
}

// Stats reports totals and how many records resolved each tracked field.
func (b *ScrapeBatch) Stats() Stats {
	s := Stats{
		Summaries: b.SummaryCount,
		Records:   len(b.Records),
		Failures:  len(b.Failures),
	}
	for i := range b.Records {
		if b.Records[i].ProgramType != NotFound {
			s.WithProgramType++
		}
		if b.Records[i].TuitionCost != NotFound {
			s.WithTuitionCost++
		}
	}
	return s
}
