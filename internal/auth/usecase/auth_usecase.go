package usecase

import (
	"errors"

	userdomain "voicebox-backend/internal/user/domain"
	userrepo "voicebox-backend/internal/user/repository"
	"voicebox-backend/pkg/config"

	"github.com/golang-jwt/jwt/v5"
)

// AuthUsecase validates access tokens issued by the auth service.
// Token issuance and refresh live outside this backend.
type AuthUsecase interface {
	ValidateToken(tokenString string) (*userdomain.User, error)
}

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	userRepo userrepo.UserRepository
	config   *config.Config
}

// NewAuthUsecase creates a new instance of authUsecase
func NewAuthUsecase(userRepo userrepo.UserRepository, cfg *config.Config) AuthUsecase {
	return &authUsecase{
		userRepo: userRepo,
		config:   cfg,
	}
}

func (u *authUsecase) ValidateToken(tokenString string) (*userdomain.User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(u.config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.New("user not found")
	}
	return user, nil
}
