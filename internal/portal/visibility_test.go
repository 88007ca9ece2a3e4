package portal

import (
	"context"
	"testing"

	"brokerportal/internal/models"
)

// fakeMembershipSource serves family facts from maps, mirroring the
// active-rows-only contract of the real store.
type fakeMembershipSource struct {
	memberships map[uint]*Membership   // customerID -> active membership
	groups      map[uint]map[uint]bool // groupID -> customerID -> active
	groupActive map[uint]bool
}

func (f *fakeMembershipSource) MembershipOf(_ context.Context, customerID uint) (*Membership, error) {
	return f.memberships[customerID], nil
}

func (f *fakeMembershipSource) IsActiveMember(_ context.Context, groupID, customerID uint) (bool, error) {
	if !f.groupActive[groupID] {
		return false, nil
	}
	return f.groups[groupID][customerID], nil
}

// smithFamily builds group 1 with head Alice (10) and members Bob (11) and
// Carol (12); Dave (99) is independent.
func smithFamily() *fakeMembershipSource {
	return &fakeMembershipSource{
		memberships: map[uint]*Membership{
			10: {GroupID: 1, IsHead: true, GroupActive: true},
			11: {GroupID: 1, IsHead: false, GroupActive: true},
			12: {GroupID: 1, IsHead: false, GroupActive: true},
		},
		groups:      map[uint]map[uint]bool{1: {10: true, 11: true, 12: true}},
		groupActive: map[uint]bool{1: true},
	}
}

func customer(id uint) models.Customer { return models.Customer{ID: id} }

func policy(id, ownerID uint) models.CustomerInsurance {
	return models.CustomerInsurance{ID: id, CustomerID: ownerID}
}

func TestCanViewPolicy_Owner(t *testing.T) {
	r := NewResolver(smithFamily())
	ctx := context.Background()

	for _, id := range []uint{10, 11, 99} {
		d, err := r.CanViewPolicy(ctx, customer(id), policy(100, id))
		if err != nil {
			t.Fatalf("CanViewPolicy: %v", err)
		}
		if !d.Allow || d.Reason != ReasonOwner {
			t.Errorf("owner %d: got %+v, want allow/%s", id, d, ReasonOwner)
		}
	}
}

func TestCanViewPolicy_HeadOversight(t *testing.T) {
	r := NewResolver(smithFamily())

	d, err := r.CanViewPolicy(context.Background(), customer(10), policy(100, 11))
	if err != nil {
		t.Fatalf("CanViewPolicy: %v", err)
	}
	if !d.Allow || d.Reason != ReasonHeadOversight {
		t.Errorf("head over member: got %+v, want allow/%s", d, ReasonHeadOversight)
	}
}

func TestCanViewPolicy_NoLateralAccess(t *testing.T) {
	r := NewResolver(smithFamily())

	// Bob and Carol share a group but neither is head.
	d, err := r.CanViewPolicy(context.Background(), customer(11), policy(200, 12))
	if err != nil {
		t.Fatalf("CanViewPolicy: %v", err)
	}
	if d.Allow {
		t.Errorf("non-head lateral access allowed: %+v", d)
	}
	if d.Reason != ReasonUnauthorized {
		t.Errorf("reason = %q, want %q", d.Reason, ReasonUnauthorized)
	}
}

func TestCanViewPolicy_MemberCannotSeeHead(t *testing.T) {
	r := NewResolver(smithFamily())

	d, err := r.CanViewPolicy(context.Background(), customer(11), policy(300, 10))
	if err != nil {
		t.Fatalf("CanViewPolicy: %v", err)
	}
	if d.Allow {
		t.Errorf("member saw head's policy: %+v", d)
	}
}

func TestCanViewPolicy_IndependentDenied(t *testing.T) {
	r := NewResolver(smithFamily())

	d, err := r.CanViewPolicy(context.Background(), customer(99), policy(100, 11))
	if err != nil {
		t.Fatalf("CanViewPolicy: %v", err)
	}
	if d.Allow {
		t.Errorf("independent customer allowed: %+v", d)
	}
}

func TestCanViewPolicy_InactiveGroupBlocksHead(t *testing.T) {
	src := smithFamily()
	src.groupActive[1] = false
	for _, m := range src.memberships {
		m.GroupActive = false
	}
	r := NewResolver(src)

	d, err := r.CanViewPolicy(context.Background(), customer(10), policy(100, 11))
	if err != nil {
		t.Fatalf("CanViewPolicy: %v", err)
	}
	if d.Allow {
		t.Errorf("inactive group still granted oversight: %+v", d)
	}

	// Own policies stay visible regardless of group status.
	d, err = r.CanViewPolicy(context.Background(), customer(10), policy(300, 10))
	if err != nil {
		t.Fatalf("CanViewPolicy: %v", err)
	}
	if !d.Allow {
		t.Errorf("owner blocked by inactive group: %+v", d)
	}
}

func TestCanViewPolicy_HeadCannotSeeOutsideGroup(t *testing.T) {
	src := smithFamily()
	// Eve (20) heads a different group.
	src.memberships[20] = &Membership{GroupID: 2, IsHead: true, GroupActive: true}
	src.groups[2] = map[uint]bool{20: true}
	src.groupActive[2] = true
	r := NewResolver(src)

	d, err := r.CanViewPolicy(context.Background(), customer(20), policy(100, 11))
	if err != nil {
		t.Fatalf("CanViewPolicy: %v", err)
	}
	if d.Allow {
		t.Errorf("head crossed group boundary: %+v", d)
	}
	if d.Reason != ReasonOutsideFamily {
		t.Errorf("reason = %q, want %q", d.Reason, ReasonOutsideFamily)
	}
}

func TestCanViewPolicy_DeactivatedMemberInvisibleToHead(t *testing.T) {
	src := smithFamily()
	src.groups[1][11] = false // Bob's membership deactivated
	r := NewResolver(src)

	d, err := r.CanViewPolicy(context.Background(), customer(10), policy(100, 11))
	if err != nil {
		t.Fatalf("CanViewPolicy: %v", err)
	}
	if d.Allow {
		t.Errorf("head saw deactivated member's policy: %+v", d)
	}
}

func TestCanViewPolicy_Idempotent(t *testing.T) {
	r := NewResolver(smithFamily())
	ctx := context.Background()

	first, err := r.CanViewPolicy(ctx, customer(10), policy(100, 11))
	if err != nil {
		t.Fatalf("CanViewPolicy: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := r.CanViewPolicy(ctx, customer(10), policy(100, 11))
		if err != nil {
			t.Fatalf("CanViewPolicy: %v", err)
		}
		if again != first {
			t.Fatalf("decision changed on repeat: %+v vs %+v", again, first)
		}
	}
}

func TestCanListFamilyPolicies(t *testing.T) {
	src := smithFamily()
	r := NewResolver(src)
	ctx := context.Background()

	cases := []struct {
		name string
		id   uint
		want bool
	}{
		{"active head", 10, true},
		{"non-head member", 11, false},
		{"independent", 99, false},
	}
	for _, tc := range cases {
		got, err := r.CanListFamilyPolicies(ctx, customer(tc.id))
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}

	src.memberships[10].GroupActive = false
	got, err := r.CanListFamilyPolicies(ctx, customer(10))
	if err != nil {
		t.Fatalf("inactive group head: %v", err)
	}
	if got {
		t.Error("head of inactive group may not list family policies")
	}
}

func TestCanViewCustomer(t *testing.T) {
	r := NewResolver(smithFamily())
	ctx := context.Background()

	d, _ := r.CanViewCustomer(ctx, customer(11), customer(11))
	if !d.Allow || d.Reason != ReasonOwner {
		t.Errorf("self view: %+v", d)
	}
	d, _ = r.CanViewCustomer(ctx, customer(10), customer(12))
	if !d.Allow || d.Reason != ReasonHeadOversight {
		t.Errorf("head views member: %+v", d)
	}
	d, _ = r.CanViewCustomer(ctx, customer(12), customer(11))
	if d.Allow {
		t.Errorf("lateral customer view allowed: %+v", d)
	}
}
