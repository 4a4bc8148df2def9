package services

import (
	"encoding/json"
	"errors"
	"fmt"

	"collections-backend/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type UserService struct {
	DB *gorm.DB
}

func (s *UserService) CreateUser(name string, details map[string]any) (*model.User, error) {
	blob, err := marshalDetails(details)
	if err != nil {
		return nil, err
	}
	user := &model.User{Name: name, Details: blob, Status: model.StatusPending}
	if err := s.DB.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) GetUserByID(id uint) (*model.User, error) {
	var user model.User
	err := s.DB.Preload("Documents").First(&user, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindUserByName matches case-insensitively, the way spreadsheet rows
// reference existing debtors.
func (s *UserService) FindUserByName(name string) (*model.User, error) {
	var user model.User
	err := s.DB.First(&user, "LOWER(name) = LOWER(?)", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserService) ListUsers(status string) ([]model.User, error) {
	var users []model.User
	query := s.DB.Order("id")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	return users, query.Find(&users).Error
}

func (s *UserService) UpdateUserStatus(user *model.User, status string) error {
	if !model.ValidStatus(status) {
		return fmt.Errorf("invalid status %q", status)
	}
	if err := s.DB.Model(&model.User{}).Where("id = ?", user.ID).Update("status", status).Error; err != nil {
		return err
	}
	user.Status = status
	return nil
}

// UpsertUserFromDetails replaces the named user's details when userID is
// given, otherwise creates a new user.
func (s *UserService) UpsertUserFromDetails(userID *uint, name string, details map[string]any) (*model.User, error) {
	if userID == nil {
		return s.CreateUser(name, details)
	}

	existing, err := s.GetUserByID(*userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user with id %d not found", *userID)
	}
	if err != nil {
		return nil, err
	}

	blob, err := marshalDetails(details)
	if err != nil {
		return nil, err
	}

	err = s.DB.Model(&model.User{}).Where("id = ?", existing.ID).
		Updates(map[string]interface{}{
			"name":    name,
			"details": blob,
		}).Error
	if err != nil {
		return nil, err
	}
	existing.Name = name
	existing.Details = blob
	return existing, nil
}

// MergeUserDetails overlays new detail keys onto the user's existing blob.
func (s *UserService) MergeUserDetails(user *model.User, updates map[string]any) (*model.User, error) {
	merged, err := model.MergeDetails(user.Details, updates)
	if err != nil {
		return nil, err
	}
	err = s.DB.Model(&model.User{}).Where("id = ?", user.ID).Update("details", merged).Error
	if err != nil {
		return nil, err
	}
	user.Details = merged
	return user, nil
}

func marshalDetails(details map[string]any) (datatypes.JSON, error) {
	if details == nil {
		details = map[string]any{}
	}
	out, err := json.Marshal(details)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(out), nil
}
