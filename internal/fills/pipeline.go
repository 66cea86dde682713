package fills

import (
	"strings"

	"github.com/quantdesk/position-engine/internal/model"
	"github.com/quantdesk/position-engine/internal/scenario"
)

// statusFilled is the only status representing a completed fill.
const statusFilled = "Filled"

// Tagged couples a fill with its parsed scenario tag. Only tagged fills
// survive into aggregation.
type Tagged struct {
	Fill model.FillRecord
	Tag  scenario.Tag
}

// ClassifyLeg normalizes a free-text leg role. Anything containing "MAIN"
// (case-insensitive) is a main leg; everything else hedges.
func ClassifyLeg(raw string) model.LegRole {
	if strings.Contains(strings.ToUpper(raw), string(model.LegMain)) {
		return model.LegMain
	}
	return model.LegHedge
}

// Completed retains only records representing completed fills: status,
// after trimming whitespace, equals "Filled".
func Completed(records []model.FillRecord) []model.FillRecord {
	out := make([]model.FillRecord, 0, len(records))
	for _, rec := range records {
		if strings.TrimSpace(rec.Status) == statusFilled {
			out = append(out, rec)
		}
	}
	return out
}

// TagAll parses scenario tags and drops records without a usable tag.
// It returns the surviving tagged fills and the count of dropped records.
func TagAll(records []model.FillRecord) ([]Tagged, int) {
	tagged := make([]Tagged, 0, len(records))
	dropped := 0
	for _, rec := range records {
		tag, err := scenario.Parse(rec.OrderID)
		if err != nil {
			dropped++
			continue
		}
		tagged = append(tagged, Tagged{Fill: rec, Tag: tag})
	}
	return tagged, dropped
}

// Filter applies the caller's selection. Nil axes pass everything.
func Filter(tagged []Tagged, sel model.Selection) []Tagged {
	out := make([]Tagged, 0, len(tagged))
	for _, tf := range tagged {
		if sel.Leg != nil && tf.Fill.LegRole != *sel.Leg {
			continue
		}
		if sel.ScenarioNum != nil && tf.Tag.Number != *sel.ScenarioNum {
			continue
		}
		if sel.ScenarioLetter != nil && tf.Tag.Letter != *sel.ScenarioLetter {
			continue
		}
		out = append(out, tf)
	}
	return out
}
