package credentials

import (
	"errors"
	"strings"

	"github.com/tech-arch1tect/loginguard/services/logging"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrPasswordHashingFailed = errors.New("failed to hash password")
)

// dummyHash is compared against when the email does not resolve to an
// account, so a missing user and a wrong password cost the same.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMye1VdLCkG6WKgWkXmContJyfLewdBs1H2"

type Store struct {
	db     *gorm.DB
	logger *logging.Service
}

func NewStore(db *gorm.DB, logger *logging.Service) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

// Verify resolves the email and checks the password. Every failure mode
// (unknown email, disabled account, wrong password) returns the same
// ErrInvalidCredentials so callers cannot enumerate accounts.
func (s *Store) Verify(email, password string) (*AdminUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user AdminUser
	err := s.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Burn the same bcrypt work as the found path.
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			s.logger.Warn("login attempt for unknown email")
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("credential lookup failed", zap.Error(err))
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("password verification failed", zap.Uint("user_id", user.ID))
		return nil, ErrInvalidCredentials
	}

	if user.Disabled {
		s.logger.Warn("login attempt for disabled account", zap.Uint("user_id", user.ID))
		return nil, ErrInvalidCredentials
	}

	return &user, nil
}

// GetByID loads an account without touching the password hash comparison
// path. Used by handlers that already hold an authenticated user id.
func (s *Store) GetByID(id uint) (*AdminUser, error) {
	var user AdminUser
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("password hashing failed", zap.Error(err))
		return "", ErrPasswordHashingFailed
	}
	return string(hash), nil
}

// Create registers an account with a freshly hashed password. Exists for
// provisioning tooling and tests.
func (s *Store) Create(email, password string) (*AdminUser, error) {
	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := AdminUser{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
	}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
