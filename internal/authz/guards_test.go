package authz

import (
	"testing"

	"github.com/bwmarrin/snowflake"
)

func TestCheckSelfAction(t *testing.T) {
	if err := CheckSelfAction(snowflake.ID(7), snowflake.ID(7)); err != ErrSelfAction {
		t.Fatalf("expected ErrSelfAction, got %v", err)
	}
	if err := CheckSelfAction(snowflake.ID(7), snowflake.ID(8)); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	// Zero actor happens only outside an authenticated path; never self.
	if err := CheckSelfAction(0, 0); err != nil {
		t.Fatalf("expected nil for zero ids, got %v", err)
	}
}

func TestCheckLastAdmin(t *testing.T) {
	cases := []struct {
		name      string
		isAdmin   bool
		remaining int64
		want      error
	}{
		{"last active admin", true, 0, ErrLastAdminProtected},
		{"other admins remain", true, 2, nil},
		{"target not admin", false, 0, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := CheckLastAdmin(tc.isAdmin, tc.remaining); err != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
