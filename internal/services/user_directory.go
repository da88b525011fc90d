package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/zenebedagim/dental-clinic-sub002/internal/models"
	"github.com/zenebedagim/dental-clinic-sub002/internal/realtime"
)

// UserDirectory reads staff records for authentication and fan-out.
type UserDirectory struct {
	db *gorm.DB
}

// NewUserDirectory constructs a UserDirectory.
func NewUserDirectory(db *gorm.DB) (*UserDirectory, error) {
	if db == nil {
		return nil, errors.New("user directory: db is required")
	}
	return &UserDirectory{db: db}, nil
}

// Get loads an active, non-deleted user.
func (d *UserDirectory) Get(ctx context.Context, userID string) (*models.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, realtime.ErrUnknownUser
	}

	var user models.User
	err := d.db.WithContext(ensureContext(ctx)).
		Where("id = ? AND is_active = ?", userID, true).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", realtime.ErrUnknownUser, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("user directory: load user: %w", err)
	}
	return &user, nil
}

// ResolveIdentity implements realtime.IdentityResolver.
func (d *UserDirectory) ResolveIdentity(ctx context.Context, userID string) (realtime.Identity, error) {
	user, err := d.Get(ctx, userID)
	if err != nil {
		return realtime.Identity{}, err
	}
	return realtime.Identity{
		UserID:   user.ID,
		Name:     user.Name,
		Role:     user.Role,
		BranchID: user.BranchID,
	}, nil
}

// RecipientsFor lists the ids of active users addressed by ch.
func (d *UserDirectory) RecipientsFor(ctx context.Context, ch realtime.Channel) ([]string, error) {
	if !ch.Valid() {
		return nil, realtime.ErrInvalidChannel
	}

	query := d.db.WithContext(ensureContext(ctx)).
		Model(&models.User{}).
		Where("is_active = ?", true)

	switch ch.Kind {
	case realtime.KindUser:
		query = query.Where("id = ?", ch.UserID)
	case realtime.KindRole:
		query = query.Where("role = ?", ch.Role)
	case realtime.KindRoleBranch:
		query = query.Where("role = ? AND branch_id = ?", ch.Role, ch.BranchID)
	case realtime.KindBranch:
		query = query.Where("branch_id = ?", ch.BranchID)
	}

	var ids []string
	if err := query.Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("user directory: recipients for %s: %w", ch, err)
	}
	return ids, nil
}
