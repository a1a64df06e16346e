package storage

import (
	"fmt"

	"ammPool/internal/model"
)

// Layout is the ordered field list of one stored record type.
// Later logic may append fields; it must never reorder, rename or drop them.
type Layout struct {
	Record string   `json:"record" mapstructure:"record"`
	Fields []string `json:"fields" mapstructure:"fields"`
}

// Layouts is the record layout written by this version of the logic.
var Layouts = []Layout{
	{Record: "pool", Fields: []string{"reserve0", "reserve1", "total_shares"}},
	{Record: "position", Fields: []string{"shares"}},
	{Record: "role_member", Fields: []string{"member"}},
	{Record: "instance", Fields: []string{"initialized"}},
}

// CheckAppendOnly verifies that every record in current is still present in candidate
// with its existing fields as an unchanged prefix.
func CheckAppendOnly(current, candidate []Layout) error {
	byRecord := make(map[string]Layout, len(candidate))
	for _, layout := range candidate {
		byRecord[layout.Record] = layout
	}

	for _, cur := range current {
		next, ok := byRecord[cur.Record]
		if !ok {
			return &model.ValidationError{
				Reason: model.ReasonIncompatibleLayout,
				Detail: fmt.Sprintf("record %s dropped", cur.Record),
			}
		}
		if len(next.Fields) < len(cur.Fields) {
			return &model.ValidationError{
				Reason: model.ReasonIncompatibleLayout,
				Detail: fmt.Sprintf("record %s drops fields", cur.Record),
			}
		}
		for i, field := range cur.Fields {
			if next.Fields[i] != field {
				return &model.ValidationError{
					Reason: model.ReasonIncompatibleLayout,
					Detail: fmt.Sprintf("record %s field %d is %s, want %s", cur.Record, i, next.Fields[i], field),
				}
			}
		}
	}
	return nil
}
