package scraper

import (
	"fmt"
	"strings"

	"github.com/IliaW/program-scraper/config"
	"github.com/IliaW/program-scraper/internal/browser"
)

// Table header synonyms. Specific ones name the field outright, generic ones also appear in unrelated
// headers such as "Fee type" and only count when the other field does not match equally well.
var (
	programTypeSynonyms = synonyms{
		specific: []string{"ประเภทหลักสูตร", "program type", "type of program"},
		generic:  []string{"ประเภท", "type"},
	}
	costSynonyms = synonyms{
		specific: []string{"ค่าใช้จ่าย", "ค่าธรรมเนียม", "ค่าเล่าเรียน", "ค่าเทอม", "tuition"},
		generic:  []string{"cost", "fee"},
	}
)

var defaultSearchInput = []browser.Selector{
	browser.CSS(`input[placeholder*="ค้นหา"]`),
	browser.CSS(`input[type="search"]`),
	browser.CSS(`input.search-input`),
	browser.CSS(`#search`),
}

var defaultResultCard = []browser.Selector{
	browser.CSS(`ul.t-programs > li`),
	browser.CSS(`div[data-cy="program-card"]`),
	browser.CSS(`.program-card`),
	browser.CSS(`.search-results li`),
	browser.CSS(`.result-item`),
}

var (
	defaultProgramType = detailSelectors([]string{"ประเภทหลักสูตร"}, "program-type", "program_type")
	defaultTuitionCost = detailSelectors([]string{"ค่าใช้จ่าย", "ค่าธรรมเนียม", "ค่าเล่าเรียน"},
		"tuition-fee", "tuition-cost", "tuition_fee")
)

// detailSelectors builds the lookup order for a detail field: a label element followed by its value,
// then class names, then data attributes. Names must be specific to the field, a bare "type" matches
// buttons and inputs all over a page.
func detailSelectors(labels []string, names ...string) []browser.Selector {
	var out []browser.Selector
	for _, l := range labels {
		out = append(out,
			browser.XPath(fmt.Sprintf(`//dt[contains(normalize-space(.), "%s")]/following-sibling::dd[1]`, l)),
			browser.XPath(fmt.Sprintf(`//th[contains(normalize-space(.), "%s")]/following-sibling::td[1]`, l)),
			browser.XPath(fmt.Sprintf(`//*[self::label or self::strong or self::b or self::span][contains(normalize-space(.), "%s")]/following-sibling::*[1]`, l)),
		)
	}
	for _, n := range names {
		out = append(out, browser.CSS("."+n), browser.CSS(fmt.Sprintf(`[class*="%s"] .value`, n)))
	}
	for _, n := range names {
		out = append(out, browser.CSS(fmt.Sprintf(`[data-field="%s"]`, n)), browser.CSS(fmt.Sprintf(`[data-%s]`, n)))
	}
	return out
}

// Selectors holds the ordered selector lists the scraper tries for each lookup.
type Selectors struct {
	SearchInput []browser.Selector
	ResultCard  []browser.Selector
	ProgramType []browser.Selector
	TuitionCost []browser.Selector
}

// DefaultSelectors returns the built-in lists. Lists present in cfg replace the matching default.
func DefaultSelectors(cfg *config.SelectorConfig) *Selectors {
	s := &Selectors{
		SearchInput: defaultSearchInput,
		ResultCard:  defaultResultCard,
		ProgramType: defaultProgramType,
		TuitionCost: defaultTuitionCost,
	}
	if cfg == nil {
		return s
	}
	override := func(dst *[]browser.Selector, src []string) {
		if parsed := browser.ParseSelectors(src); len(parsed) > 0 {
			*dst = parsed
		}
	}
	override(&s.SearchInput, cfg.SearchInput)
	override(&s.ResultCard, cfg.ResultCard)
	override(&s.ProgramType, cfg.ProgramType)
	override(&s.TuitionCost, cfg.TuitionCost)

	return s
}

type synonyms struct {
	specific []string
	generic  []string
}

type matchStrength int

const (
	noMatch matchStrength = iota
	genericMatch
	specificMatch
)

func (s synonyms) match(header string) matchStrength {
	header = strings.ToLower(header)
	for _, w := range s.specific {
		if strings.Contains(header, w) {
			return specificMatch
		}
	}
	for _, w := range s.generic {
		if strings.Contains(header, w) {
			return genericMatch
		}
	}
	return noMatch
}

type detailField int

const (
	noField detailField = iota
	programTypeField
	tuitionCostField
)

// classifyHeader decides which field a table header labels. A header matching both fields goes to the
// stronger match, a tie labels neither.
func classifyHeader(header string) (detailField, matchStrength) {
	t, c := programTypeSynonyms.match(header), costSynonyms.match(header)
	switch {
	case t > c:
		return programTypeField, t
	case c > t:
		return tuitionCostField, c
	default:
		return noField, noMatch
	}
}
