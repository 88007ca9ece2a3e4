package portal

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"brokerportal/internal/models"
)

// FamilyStore reads and mutates family groups and memberships. Every read
// filters on active status for both the group and the membership row; a
// deactivated group or membership is invisible to all queries.
type FamilyStore struct {
	db *gorm.DB
}

func NewFamilyStore(db *gorm.DB) *FamilyStore {
	return &FamilyStore{db: db}
}

// MembershipOf implements MembershipSource.
func (s *FamilyStore) MembershipOf(ctx context.Context, customerID uint) (*Membership, error) {
	var row models.FamilyMembership
	err := s.db.WithContext(ctx).
		Where("customer_id = ? AND status = ?", customerID, true).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("membership lookup: %w", err)
	}
	var group models.FamilyGroup
	if err := s.db.WithContext(ctx).First(&group, row.FamilyGroupID).Error; err != nil {
		return nil, fmt.Errorf("group lookup: %w", err)
	}
	return &Membership{GroupID: row.FamilyGroupID, IsHead: row.IsHead, GroupActive: group.Status}, nil
}

// IsActiveMember implements MembershipSource.
func (s *FamilyStore) IsActiveMember(ctx context.Context, groupID, customerID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.FamilyMembership{}).
		Joins("JOIN family_groups ON family_groups.id = family_memberships.family_group_id").
		Where("family_memberships.family_group_id = ? AND family_memberships.customer_id = ?", groupID, customerID).
		Where("family_memberships.status = ? AND family_groups.status = ?", true, true).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("member check: %w", err)
	}
	return count > 0, nil
}

// Head returns the customer holding the active head membership of an active
// group.
func (s *FamilyStore) Head(ctx context.Context, groupID GroupID) (*models.Customer, error) {
	var row models.FamilyMembership
	err := s.db.WithContext(ctx).
		Joins("JOIN family_groups ON family_groups.id = family_memberships.family_group_id").
		Where("family_memberships.family_group_id = ? AND family_memberships.is_head = ?", groupID.Value(), true).
		Where("family_memberships.status = ? AND family_groups.status = ?", true, true).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("head lookup: %w", err)
	}
	var head models.Customer
	if err := s.db.WithContext(ctx).First(&head, row.CustomerID).Error; err != nil {
		return nil, fmt.Errorf("head customer lookup: %w", err)
	}
	return &head, nil
}

// ActiveMembers lists the customers with an active membership in an active
// group, heads included.
func (s *FamilyStore) ActiveMembers(ctx context.Context, groupID GroupID) ([]models.Customer, error) {
	var customers []models.Customer
	err := s.db.WithContext(ctx).
		Joins("JOIN family_memberships ON family_memberships.customer_id = customers.id").
		Joins("JOIN family_groups ON family_groups.id = family_memberships.family_group_id").
		Where("family_memberships.family_group_id = ? AND family_memberships.status = ?", groupID.Value(), true).
		Where("family_groups.status = ?", true).
		Find(&customers).Error
	if err != nil {
		return nil, fmt.Errorf("member list: %w", err)
	}
	return customers, nil
}

// Memberships returns the active membership rows of a group, for rosters.
func (s *FamilyStore) Memberships(ctx context.Context, groupID GroupID) ([]models.FamilyMembership, error) {
	var rows []models.FamilyMembership
	err := s.db.WithContext(ctx).
		Where("family_group_id = ? AND status = ?", groupID.Value(), true).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("membership list: %w", err)
	}
	return rows, nil
}

// AddMember creates an active membership and points the customer at the
// group. A customer belongs to at most one group, so an existing active
// membership anywhere rejects the add.
func (s *FamilyStore) AddMember(ctx context.Context, groupID GroupID, customerID uint, relationship string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.FamilyMembership{}).
			Where("customer_id = ? AND status = ?", customerID, true).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("customer %d already has an active membership", customerID)
		}
		gid := groupID.Value()
		m := models.FamilyMembership{
			FamilyGroupID: gid,
			CustomerID:    customerID,
			Relationship:  relationship,
			Status:        true,
		}
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		return tx.Model(&models.Customer{}).
			Where("id = ?", customerID).
			Update("family_group_id", gid).Error
	})
}

// DeactivateMember flips the membership row inactive, preserving it for
// audit history, and detaches the customer from the group.
func (s *FamilyStore) DeactivateMember(ctx context.Context, groupID GroupID, customerID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.FamilyMembership{}).
			Where("family_group_id = ? AND customer_id = ? AND status = ?", groupID.Value(), customerID, true).
			Update("status", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Model(&models.Customer{}).
			Where("id = ?", customerID).
			Update("family_group_id", nil).Error
	})
}

// TransferHead moves headship to an active member of the group. The clear
// and set happen in one transaction so the group never shows zero or two
// active heads.
func (s *FamilyStore) TransferHead(ctx context.Context, groupID GroupID, newHeadID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		gid := groupID.Value()
		var target models.FamilyMembership
		err := tx.Where("family_group_id = ? AND customer_id = ? AND status = ?", gid, newHeadID, true).
			First(&target).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := tx.Model(&models.FamilyMembership{}).
			Where("family_group_id = ? AND is_head = ?", gid, true).
			Update("is_head", false).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.FamilyMembership{}).
			Where("id = ?", target.ID).
			Update("is_head", true).Error; err != nil {
			return err
		}
		return tx.Model(&models.FamilyGroup{}).
			Where("id = ?", gid).
			Update("family_head_id", newHeadID).Error
	})
}
