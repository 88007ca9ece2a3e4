package portal

import (
	"context"

	"brokerportal/internal/models"
)

// Decision reasons. Reason strings end up in audit rows and must stay stable.
const (
	ReasonOwner         = "owner"
	ReasonHeadOversight = "family-head oversight"
	ReasonOutsideFamily = "outside family"
	ReasonUnauthorized  = "unauthorized access attempt"
)

// Decision is the allow/deny outcome of a visibility check.
type Decision struct {
	Allow  bool
	Reason string
}

func allow(reason string) Decision { return Decision{Allow: true, Reason: reason} }
func deny(reason string) Decision  { return Decision{Allow: false, Reason: reason} }

// Membership is the family standing of one customer: the group they belong
// to, whether they are its head, and whether the group itself is active.
// Only active memberships are ever reported.
type Membership struct {
	GroupID     uint
	IsHead      bool
	GroupActive bool
}

// MembershipSource supplies the family facts the resolver consumes. All
// lookups see only active rows; a deactivated group or membership must be
// reported as absent.
type MembershipSource interface {
	// MembershipOf returns the principal's active membership, or nil if the
	// customer is independent or their membership has been deactivated.
	MembershipOf(ctx context.Context, customerID uint) (*Membership, error)
	// IsActiveMember reports whether the customer holds an active membership
	// in the given group and the group itself is active.
	IsActiveMember(ctx context.Context, groupID, customerID uint) (bool, error)
}

// Resolver decides which customers and policies a principal may see.
// It holds no state beyond the membership source, so repeated calls with
// unchanged data yield identical decisions.
type Resolver struct {
	source MembershipSource
}

func NewResolver(source MembershipSource) *Resolver {
	return &Resolver{source: source}
}

// CanViewPolicy applies the visibility rules in order: ownership first, then
// family-head oversight. Non-head members and independent customers can only
// satisfy the ownership rule.
func (r *Resolver) CanViewPolicy(ctx context.Context, principal models.Customer, policy models.CustomerInsurance) (Decision, error) {
	if policy.CustomerID == principal.ID {
		return allow(ReasonOwner), nil
	}
	return r.oversees(ctx, principal, policy.CustomerID)
}

// CanViewCustomer mirrors CanViewPolicy for customer records: self first,
// then head oversight over active co-members.
func (r *Resolver) CanViewCustomer(ctx context.Context, principal, target models.Customer) (Decision, error) {
	if target.ID == principal.ID {
		return allow(ReasonOwner), nil
	}
	return r.oversees(ctx, principal, target.ID)
}

// CanListFamilyPolicies reports whether the principal may list every policy
// in their family group. True only for the active head of an active group;
// everyone else sees their own records only.
func (r *Resolver) CanListFamilyPolicies(ctx context.Context, principal models.Customer) (bool, error) {
	m, err := r.source.MembershipOf(ctx, principal.ID)
	if err != nil {
		return false, err
	}
	return m != nil && m.IsHead && m.GroupActive, nil
}

func (r *Resolver) oversees(ctx context.Context, principal models.Customer, ownerID uint) (Decision, error) {
	m, err := r.source.MembershipOf(ctx, principal.ID)
	if err != nil {
		return Decision{}, err
	}
	if m == nil {
		return deny(ReasonUnauthorized), nil
	}
	if !m.IsHead || !m.GroupActive {
		return deny(ReasonUnauthorized), nil
	}
	sameGroup, err := r.source.IsActiveMember(ctx, m.GroupID, ownerID)
	if err != nil {
		return Decision{}, err
	}
	if !sameGroup {
		return deny(ReasonOutsideFamily), nil
	}
	return allow(ReasonHeadOversight), nil
}
