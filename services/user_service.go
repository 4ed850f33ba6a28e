package services

import (
	"context"
	"fmt"
	"strings"

	"survey-voice-api/models"

	"gorm.io/gorm"
)

// UserService manages accounts. Listing and role changes are admin only;
// users may read and edit their own profile.
type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

type UserUpdate struct {
	FullName     *string          `json:"full_name"`
	Organization *string          `json:"organization"`
	PhoneNumber  *string          `json:"phone_number"`
	Password     *string          `json:"password"`
	Role         *models.UserRole `json:"role"`
	IsSuperuser  *bool            `json:"is_superuser"`
}

type CreateUserRequest struct {
	RegisterRequest
	Role        models.UserRole `json:"role"`
	IsSuperuser bool            `json:"is_superuser"`
}

func requireAdmin(actor *models.User) error {
	if actor != nil && !actor.IsAdmin() {
		return fmt.Errorf("admin role required: %w", models.ErrForbidden)
	}
	return nil
}

func canManage(actor *models.User, id uint) error {
	if actor != nil && !actor.IsAdmin() && actor.ID != id {
		return fmt.Errorf("user %d: %w", id, models.ErrForbidden)
	}
	return nil
}

// Create adds an account with an explicit role
func (s *UserService) Create(ctx context.Context, actor *models.User, req *CreateUserRequest) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if req.Role == "" {
		req.Role = models.RoleSurveyor
	}
	if !req.Role.IsValid() {
		return nil, models.NewValidationError("role", "unknown role "+string(req.Role))
	}
	user, err := NewAuthService(s.db, nil).Register(ctx, &req.RegisterRequest)
	if err != nil {
		return nil, err
	}
	user.Role = req.Role
	user.IsSuperuser = req.IsSuperuser
	if err := s.db.WithContext(ctx).Model(user).Select("role", "is_superuser").Updates(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) Get(ctx context.Context, actor *models.User, id uint) (*models.User, error) {
	if err := canManage(actor, id); err != nil {
		return nil, err
	}
	return findByID[models.User](ctx, s.db, id, "user")
}

func (s *UserService) List(ctx context.Context, actor *models.User, page Page) ([]models.User, int64, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, 0, err
	}
	q := s.db.WithContext(ctx).Model(&models.User{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []models.User
	if err := page.apply(q).Order("id ASC").Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (s *UserService) Update(ctx context.Context, actor *models.User, id uint, in UserUpdate) (*models.User, error) {
	if err := canManage(actor, id); err != nil {
		return nil, err
	}
	if (in.Role != nil || in.IsSuperuser != nil) && requireAdmin(actor) != nil {
		return nil, fmt.Errorf("only admins change roles: %w", models.ErrForbidden)
	}
	user, err := findByID[models.User](ctx, s.db, id, "user")
	if err != nil {
		return nil, err
	}
	if in.FullName != nil {
		user.FullName = strings.TrimSpace(*in.FullName)
	}
	if in.Organization != nil {
		user.Organization = *in.Organization
	}
	if in.PhoneNumber != nil {
		user.PhoneNumber = *in.PhoneNumber
	}
	if in.Role != nil {
		if !in.Role.IsValid() {
			return nil, models.NewValidationError("role", "unknown role "+string(*in.Role))
		}
		user.Role = *in.Role
	}
	if in.IsSuperuser != nil {
		user.IsSuperuser = *in.IsSuperuser
	}
	if in.Password != nil {
		if err := validateCredentials(user.Email, *in.Password); err != nil {
			return nil, err
		}
		if user.HashedPassword, err = HashPassword(*in.Password); err != nil {
			return nil, err
		}
	}
	if err := s.db.WithContext(ctx).Select("*").Omit("created_at").Save(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes an account that owns no surveys
func (s *UserService) Delete(ctx context.Context, actor *models.User, id uint) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if actor != nil && actor.ID == id {
		return fmt.Errorf("cannot delete yourself: %w", models.ErrConflict)
	}
	user, err := findByID[models.User](ctx, s.db, id, "user")
	if err != nil {
		return err
	}
	var owned int64
	if err := s.db.WithContext(ctx).Model(&models.Survey{}).Where("created_by = ?", id).Count(&owned).Error; err != nil {
		return err
	}
	if owned > 0 {
		return fmt.Errorf("user %d owns %d surveys: %w", id, owned, models.ErrConflict)
	}
	return s.db.WithContext(ctx).Delete(user).Error
}

func (s *UserService) Activate(ctx context.Context, actor *models.User, id uint) (*models.User, error) {
	return s.setActive(ctx, actor, id, true)
}

func (s *UserService) Deactivate(ctx context.Context, actor *models.User, id uint) (*models.User, error) {
	if actor != nil && actor.ID == id {
		return nil, fmt.Errorf("cannot deactivate yourself: %w", models.ErrConflict)
	}
	return s.setActive(ctx, actor, id, false)
}

func (s *UserService) setActive(ctx context.Context, actor *models.User, id uint, active bool) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	user, err := findByID[models.User](ctx, s.db, id, "user")
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("is_active", active).Error; err != nil {
		return nil, err
	}
	user.IsActive = active
	return user, nil
}
