package upgrade

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"ammPool/internal/access"
	"ammPool/internal/model"
	"ammPool/internal/storage"
	"ammPool/internal/storage/memory"
)

func appendField(layouts []storage.Layout, record, field string) []storage.Layout {
	out := make([]storage.Layout, 0, len(layouts))
	for _, layout := range layouts {
		fields := append([]string(nil), layout.Fields...)
		if layout.Record == record {
			fields = append(fields, field)
		}
		out = append(out, storage.Layout{Record: layout.Record, Fields: fields})
	}
	return out
}

func TestGateAuthorize(t *testing.T) {
	ctx := context.Background()
	admin := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	stranger := common.HexToAddress("0x00000000000000000000000000000000000000c3")

	control := access.New(memory.NewStore(), nil, nil)
	if err := control.Initialize(ctx, admin); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	gate := NewGate(control, nil, nil)

	reordered := appendField(storage.Layouts, "position", "updated_at")
	for i := range reordered {
		if reordered[i].Record == "pool" {
			reordered[i].Fields = []string{"reserve1", "reserve0", "total_shares"}
		}
	}

	cases := []struct {
		name      string
		principal common.Address
		candidate Candidate
		wantKind  string
	}{
		{"same layout", admin, Candidate{Name: "v2", Layouts: storage.Layouts}, ""},
		{"appended field", admin, Candidate{Name: "v2", Layouts: appendField(storage.Layouts, "pool", "fee_bps")}, ""},
		{"no upgrader role", stranger, Candidate{Name: "v2", Layouts: storage.Layouts}, "authorization"},
		{"reordered fields", admin, Candidate{Name: "v2", Layouts: reordered}, "validation"},
		{"dropped record", admin, Candidate{Name: "v2", Layouts: storage.Layouts[:1]}, "validation"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := gate.Authorize(ctx, tc.principal, tc.candidate)
			if got := model.ErrorKind(err); got != tc.wantKind {
				t.Fatalf("error kind %q, want %q (err %v)", got, tc.wantKind, err)
			}
		})
	}
}

func TestGateFollowsRoleChanges(t *testing.T) {
	ctx := context.Background()
	admin := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	operator := common.HexToAddress("0x00000000000000000000000000000000000000b2")

	control := access.New(memory.NewStore(), nil, nil)
	if err := control.Initialize(ctx, admin); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	gate := NewGate(control, storage.Layouts, nil)
	candidate := Candidate{Name: "v2", Layouts: storage.Layouts}

	var authErr *model.AuthorizationError
	if err := gate.Authorize(ctx, operator, candidate); !errors.As(err, &authErr) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if err := control.GrantRole(ctx, admin, model.UpgraderRole, operator); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := gate.Authorize(ctx, operator, candidate); err != nil {
		t.Fatalf("authorize after grant: %v", err)
	}
}
