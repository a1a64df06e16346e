package storage

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"ammPool/internal/model"
)

func TestPoolStructMatchesLayout(t *testing.T) {
	typ := reflect.TypeOf(model.Pool{})
	var poolLayout Layout
	for _, layout := range Layouts {
		if layout.Record == "pool" {
			poolLayout = layout
		}
	}
	if typ.NumField() < len(poolLayout.Fields) {
		t.Fatalf("pool struct has fewer fields than its layout")
	}
	for i, want := range poolLayout.Fields {
		tag := strings.Split(typ.Field(i).Tag.Get("json"), ",")[0]
		if tag != want {
			t.Fatalf("pool field %d is %s, layout says %s", i, tag, want)
		}
	}
}

func TestCheckAppendOnly(t *testing.T) {
	extended := []Layout{
		{Record: "pool", Fields: []string{"reserve0", "reserve1", "total_shares", "fee_bps"}},
		{Record: "position", Fields: []string{"shares"}},
		{Record: "role_member", Fields: []string{"member"}},
		{Record: "instance", Fields: []string{"initialized"}},
		{Record: "oracle", Fields: []string{"price"}},
	}
	if err := CheckAppendOnly(Layouts, extended); err != nil {
		t.Fatalf("append should be allowed: %v", err)
	}

	cases := map[string][]Layout{
		"reordered": {
			{Record: "pool", Fields: []string{"reserve1", "reserve0", "total_shares"}},
			{Record: "position", Fields: []string{"shares"}},
			{Record: "role_member", Fields: []string{"member"}},
			{Record: "instance", Fields: []string{"initialized"}},
		},
		"dropped field": {
			{Record: "pool", Fields: []string{"reserve0", "reserve1"}},
			{Record: "position", Fields: []string{"shares"}},
			{Record: "role_member", Fields: []string{"member"}},
			{Record: "instance", Fields: []string{"initialized"}},
		},
		"dropped record": {
			{Record: "pool", Fields: []string{"reserve0", "reserve1", "total_shares"}},
		},
	}
	for name, candidate := range cases {
		err := CheckAppendOnly(Layouts, candidate)
		var validation *model.ValidationError
		if !errors.As(err, &validation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
		if validation.Reason != model.ReasonIncompatibleLayout {
			t.Fatalf("%s: reason mismatch: %s", name, validation.Reason)
		}
	}
}
