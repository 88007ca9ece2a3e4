package portal

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"gorm.io/gorm"

	"brokerportal/internal/metrics"
	"brokerportal/internal/models"
)

// RequestMeta is the per-request context carried into audit rows.
type RequestMeta struct {
	IPAddress string
	SessionID string
}

// Service runs the portal read paths: lookup, visibility decision, audit,
// response data. Every branch, allow and deny alike, writes one audit row.
type Service struct {
	db       *gorm.DB
	resolver *Resolver
	family   *FamilyStore
	gate     *Gate
	audit    *Recorder
}

func NewService(db *gorm.DB, family *FamilyStore, gate *Gate, audit *Recorder) *Service {
	return &Service{
		db:       db,
		resolver: NewResolver(family),
		family:   family,
		gate:     gate,
		audit:    audit,
	}
}

func (s *Service) Resolver() *Resolver { return s.resolver }

func (s *Service) Family() *FamilyStore { return s.family }

// Policies lists the principal's own policies, plus every active family
// member's policies when the principal is an active head and asked for the
// family view. Non-heads asking for the family view get their own records.
func (s *Service) Policies(ctx context.Context, principal models.Customer, includeFamily bool, meta RequestMeta) ([]models.CustomerInsurance, error) {
	ownerIDs := []uint{principal.ID}
	familyView := false
	if includeFamily {
		head, err := s.resolver.CanListFamilyPolicies(ctx, principal)
		if err != nil {
			return nil, err
		}
		if head {
			m, err := s.family.MembershipOf(ctx, principal.ID)
			if err != nil {
				return nil, err
			}
			members, err := s.family.ActiveMembers(ctx, MustGroupID(m.GroupID))
			if err != nil {
				return nil, err
			}
			ownerIDs = ownerIDs[:0]
			for _, c := range members {
				ownerIDs = append(ownerIDs, c.ID)
			}
			familyView = true
		}
	}
	var policies []models.CustomerInsurance
	if err := s.db.WithContext(ctx).
		Where("customer_id IN ?", ownerIDs).
		Order("expired_date desc").
		Find(&policies).Error; err != nil {
		return nil, fmt.Errorf("policy list: %w", err)
	}
	metrics.AccessDecisions.WithLabelValues(ActionListPolicies, "allow").Inc()
	s.audit.Record(ctx, Entry{
		CustomerID:  &principal.ID,
		Action:      ActionListPolicies,
		Description: "listed policies",
		Success:     true,
		IPAddress:   meta.IPAddress,
		SessionID:   meta.SessionID,
		Metadata:    models.Metadata{"family_view": familyView, "count": len(policies)},
	})
	return policies, nil
}

// PolicyDetail returns one policy if the principal may see it. A deny is
// audited with the resolver's reason and a security_violation tag, and comes
// back as ErrUnauthorized regardless of whether the policy exists.
func (s *Service) PolicyDetail(ctx context.Context, principal models.Customer, policyID uint, meta RequestMeta) (*models.CustomerInsurance, error) {
	return s.authorizePolicy(ctx, principal, policyID, ActionViewPolicyDetail, meta)
}

// DownloadPolicy authorizes the policy, then runs its stored document path
// through the safety gate. The returned absolute path is streamed by the
// handler as an opaque octet-stream; the filename is the stored base name.
func (s *Service) DownloadPolicy(ctx context.Context, principal models.Customer, policyID uint, meta RequestMeta) (string, string, error) {
	policy, err := s.authorizePolicy(ctx, principal, policyID, ActionDownloadPolicy, meta)
	if err != nil {
		return "", "", err
	}
	if policy.PolicyDocumentPath == nil || *policy.PolicyDocumentPath == "" {
		return "", "", ErrNotFound
	}
	resolved, err := s.gate.Resolve(*policy.PolicyDocumentPath)
	if err != nil {
		var gateErr *GateError
		if errors.As(err, &gateErr) {
			metrics.PathGateRejections.WithLabelValues(gateErr.Tag).Inc()
			s.audit.Record(ctx, Entry{
				CustomerID:    &principal.ID,
				Action:        ActionPathTraversal,
				Description:   "policy document path rejected",
				Success:       false,
				FailureReason: gateErr.Tag,
				ResourceType:  "customer_insurance",
				ResourceID:    &policy.ID,
				IPAddress:     meta.IPAddress,
				SessionID:     meta.SessionID,
				Metadata: models.Metadata{
					"security_violation": gateErr.Tag,
					"attempted_path":     gateErr.Attempted,
				},
			})
		}
		return "", "", err
	}
	return resolved, filepath.Base(resolved), nil
}

// MemberDetail returns a customer profile visible to the principal: their
// own, or an active co-member's when the principal is the head.
func (s *Service) MemberDetail(ctx context.Context, principal models.Customer, customerID uint, meta RequestMeta) (*models.Customer, error) {
	var target models.Customer
	err := s.db.WithContext(ctx).First(&target, customerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("customer lookup: %w", err)
	}
	decision, err := s.resolver.CanViewCustomer(ctx, principal, target)
	if err != nil {
		return nil, err
	}
	if !decision.Allow {
		metrics.AccessDecisions.WithLabelValues(ActionViewFamily, "deny").Inc()
		s.audit.Record(ctx, Entry{
			CustomerID:    &principal.ID,
			Action:        ActionViewFamily,
			Description:   "customer profile access denied",
			Success:       false,
			FailureReason: decision.Reason,
			ResourceType:  "customer",
			ResourceID:    &target.ID,
			IPAddress:     meta.IPAddress,
			SessionID:     meta.SessionID,
			Metadata:      models.Metadata{"security_violation": true},
		})
		return nil, ErrUnauthorized
	}
	metrics.AccessDecisions.WithLabelValues(ActionViewFamily, "allow").Inc()
	return &target, nil
}

// FamilyOverview returns the principal's group and its active roster, or
// ErrNotFound for independent customers.
func (s *Service) FamilyOverview(ctx context.Context, principal models.Customer, meta RequestMeta) (*models.FamilyGroup, []models.FamilyMembership, error) {
	m, err := s.family.MembershipOf(ctx, principal.ID)
	if err != nil {
		return nil, nil, err
	}
	if m == nil || !m.GroupActive {
		return nil, nil, ErrNotFound
	}
	var group models.FamilyGroup
	if err := s.db.WithContext(ctx).First(&group, m.GroupID).Error; err != nil {
		return nil, nil, fmt.Errorf("group lookup: %w", err)
	}
	roster, err := s.family.Memberships(ctx, MustGroupID(m.GroupID))
	if err != nil {
		return nil, nil, err
	}
	s.audit.Record(ctx, Entry{
		CustomerID:  &principal.ID,
		Action:      ActionViewFamily,
		Description: "viewed family overview",
		Success:     true,
		IPAddress:   meta.IPAddress,
		SessionID:   meta.SessionID,
	})
	return &group, roster, nil
}

func (s *Service) authorizePolicy(ctx context.Context, principal models.Customer, policyID uint, action string, meta RequestMeta) (*models.CustomerInsurance, error) {
	var policy models.CustomerInsurance
	err := s.db.WithContext(ctx).First(&policy, policyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.audit.Record(ctx, Entry{
			CustomerID:    &principal.ID,
			Action:        action,
			Description:   "policy not found",
			Success:       false,
			FailureReason: "policy not found",
			ResourceType:  "customer_insurance",
			ResourceID:    &policyID,
			IPAddress:     meta.IPAddress,
			SessionID:     meta.SessionID,
		})
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("policy lookup: %w", err)
	}
	decision, err := s.resolver.CanViewPolicy(ctx, principal, policy)
	if err != nil {
		return nil, err
	}
	if !decision.Allow {
		metrics.AccessDecisions.WithLabelValues(action, "deny").Inc()
		s.audit.Record(ctx, Entry{
			CustomerID:    &principal.ID,
			Action:        action,
			Description:   "policy access denied",
			Success:       false,
			FailureReason: "Unauthorized access attempt",
			ResourceType:  "customer_insurance",
			ResourceID:    &policy.ID,
			IPAddress:     meta.IPAddress,
			SessionID:     meta.SessionID,
			Metadata: models.Metadata{
				"security_violation": true,
				"deny_reason":        decision.Reason,
			},
		})
		return nil, ErrUnauthorized
	}
	metrics.AccessDecisions.WithLabelValues(action, "allow").Inc()
	s.audit.Record(ctx, Entry{
		CustomerID:   &principal.ID,
		Action:       action,
		Description:  "policy " + policy.PolicyNo,
		Success:      true,
		ResourceType: "customer_insurance",
		ResourceID:   &policy.ID,
		IPAddress:    meta.IPAddress,
		SessionID:    meta.SessionID,
		Metadata:     models.Metadata{"grant_reason": decision.Reason},
	})
	return &policy, nil
}
