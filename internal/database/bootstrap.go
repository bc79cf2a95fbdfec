package database

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"control-advisor/internal/apperr"
	"control-advisor/internal/models"
)

// UserStore: то, что нужно для заведения стартовых учёток.
type UserStore interface {
	CountUsersByRole(ctx context.Context, role models.UserRole) (int, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
}

const defaultAdminPassword = "Admin123!"

// EnsureAdmin создаёт администратора, если в системе нет ни одного.
func EnsureAdmin(ctx context.Context, users UserStore, username, password string, log *zap.Logger) error {
	count, err := users.CountUsersByRole(ctx, models.RoleAdmin)
	if err != nil {
		return err
	}
	if count > 0 {
		// админ уже есть — ничего не делаем
		return nil
	}

	generated := password == ""
	if generated {
		password = defaultAdminPassword
	}

	if err := createUser(ctx, users, username, password, models.RoleAdmin); err != nil {
		return err
	}

	if generated {
		log.Warn("created default admin with built-in password, change it", zap.String("username", username))
	} else {
		log.Info("created default admin user", zap.String("username", username))
	}
	return nil
}

// пара демо-аккаунтов, включается SEED_DEMO_USERS=true
var demoUsers = []struct {
	Username string
	Password string
	Role     models.UserRole
}{
	{Username: "owner@controls.local", Password: "Owner123!", Role: models.RoleControlOwner},
	{Username: "analyst@controls.local", Password: "Analyst123!", Role: models.RoleAnalyst},
	{Username: "viewer@controls.local", Password: "Viewer123!", Role: models.RoleViewer},
}

func SeedDemoUsers(ctx context.Context, users UserStore, log *zap.Logger) {
	for _, u := range demoUsers {
		_, err := users.FindUserByUsername(ctx, u.Username)
		if err == nil {
			// уже есть — пропускаем
			continue
		}
		if !errors.Is(err, apperr.ErrRecordNotFound) {
			log.Warn("failed to check seed user", zap.String("username", u.Username), zap.Error(err))
			continue
		}

		if err := createUser(ctx, users, u.Username, u.Password, u.Role); err != nil {
			log.Warn("failed to create seed user", zap.String("username", u.Username), zap.Error(err))
			continue
		}
		log.Info("created seed user", zap.String("username", u.Username), zap.String("role", string(u.Role)))
	}
}

func createUser(ctx context.Context, users UserStore, username, password string, role models.UserRole) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return users.CreateUser(ctx, &models.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
	})
}
