package services

import (
	"errors"
	"fmt"
	"sort"

	"collections-backend/model"

	"gorm.io/gorm"
)

type GroupService struct {
	DB *gorm.DB
}

// CreateGroupWithUsers creates a group and assigns the initial member set in
// one transaction. Membership is fixed at creation; there is no
// remove-member operation.
func (s *GroupService) CreateGroupWithUsers(name string, userIDs []uint) (*model.Group, error) {
	group := &model.Group{Name: name, Status: model.StatusPending}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(group).Error; err != nil {
			return err
		}

		if len(userIDs) == 0 {
			return nil
		}

		var users []model.User
		if err := tx.Where("id IN ?", userIDs).Find(&users).Error; err != nil {
			return err
		}

		found := make(map[uint]bool, len(users))
		for _, u := range users {
			found[u.ID] = true
		}
		var missing []uint
		for _, id := range userIDs {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
			return fmt.Errorf("user IDs not found: %v", missing)
		}

		return tx.Model(&model.User{}).Where("id IN ?", userIDs).Update("group_id", group.ID).Error
	})
	if err != nil {
		return nil, err
	}

	return s.GetGroupByID(group.ID)
}

func (s *GroupService) GetGroupByID(id uint) (*model.Group, error) {
	var group model.Group
	err := s.DB.Preload("Users").First(&group, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (s *GroupService) ListGroups(status string) ([]model.Group, error) {
	var groups []model.Group
	query := s.DB.Preload("Users").Order("id")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	return groups, query.Find(&groups).Error
}

func (s *GroupService) UpdateGroupStatus(group *model.Group, status string) error {
	if !model.ValidStatus(status) {
		return fmt.Errorf("invalid status %q", status)
	}
	if err := s.DB.Model(&model.Group{}).Where("id = ?", group.ID).Update("status", status).Error; err != nil {
		return err
	}
	group.Status = status
	return nil
}

// IsNotFound reports whether err is gorm's record-not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
