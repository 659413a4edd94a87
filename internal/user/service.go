package user

import (
	"context"
	"database/sql"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-tasklist/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-tasklist/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-tasklist/pkg/database"
)

// PasswordHasher hashes and checks user passwords.
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
	NeedsRehash(hash string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) cost() int {
	if b.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return b.Cost
}

func (b BcryptHasher) Hash(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), b.cost())
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// NeedsRehash reports hashes created with a lower cost than configured.
func (b BcryptHasher) NeedsRehash(hash string) bool {
	c, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return false
	}
	return c < b.cost()
}

// Store is the credential store the service works against. Lookups return
// sql.ErrNoRows for absent rows.
type Store interface {
	FindByID(ctx context.Context, id int64) (*entity.User, error)
	FindByUsername(ctx context.Context, username string) (*entity.User, error)
	CreateWithRole(ctx context.Context, u *entity.User, role entity.Role) (int64, error)
	Update(ctx context.Context, u *entity.User) error
	Delete(ctx context.Context, id int64) error
	InsertRole(ctx context.Context, userID int64, role entity.Role) error
	IsTaskOwner(ctx context.Context, userID, taskID int64) (bool, error)
}

var (
	ErrUserNotFound     = apperr.NotFound("User not found.")
	ErrUserExists       = apperr.Conflict("User already exists.")
	ErrBadCredentials   = apperr.Unauthorized("Bad credentials.")
	errPasswordMismatch = apperr.Validation(map[string]string{
		"passwordConfirmation": "Password and password confirmation do not match.",
	})
)

var tracer = otel.Tracer("tasklist/user")

// UserService implements registration, profile management and password
// authentication on top of a Store.
type UserService struct {
	store  Store
	hasher PasswordHasher
	logger *zap.SugaredLogger
}

func NewUserService(store Store, hasher PasswordHasher, logger *zap.SugaredLogger) *UserService {
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &UserService{store: store, hasher: hasher, logger: logger}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	return err
}

func (s *UserService) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	ctx, span := tracer.Start(ctx, "user.GetByID")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", id))

	u, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	ctx, span := tracer.Start(ctx, "user.GetByUsername")
	defer span.End()

	u, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// AuthenticatePassword looks the user up by username and checks the password.
// An unknown username is NotFound, a wrong password is Unauthorized. Hashes
// below the configured cost are upgraded on success.
func (s *UserService) AuthenticatePassword(ctx context.Context, username, password string) (*entity.User, error) {
	ctx, span := tracer.Start(ctx, "user.AuthenticatePassword")
	defer span.End()

	u, err := s.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(u.Password, password) {
		return nil, ErrBadCredentials
	}
	if s.hasher.NeedsRehash(u.Password) {
		if h, err := s.hasher.Hash(password); err == nil {
			u.Password = h
			if err := s.store.Update(ctx, u); err != nil {
				s.logger.Warnw("password rehash failed", "user_id", u.ID, "err", err)
			}
		}
	}
	return u, nil
}

// Create registers a new user with role USER.
func (s *UserService) Create(ctx context.Context, u *entity.User, confirmation string) (*entity.User, error) {
	ctx, span := tracer.Start(ctx, "user.Create")
	defer span.End()

	if _, err := s.store.FindByUsername(ctx, u.Username); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if u.Password != confirmation {
		return nil, errPasswordMismatch
	}
	hash, err := s.hasher.Hash(u.Password)
	if err != nil {
		return nil, err
	}
	u.Password = hash
	if _, err := s.store.CreateWithRole(ctx, u, entity.RoleUser); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	u.Roles = []entity.Role{entity.RoleUser}
	s.logger.Infow("user registered", "user_id", u.ID, "username", u.Username)
	return u, nil
}

// Update rewrites name, username and password of an existing user. The new
// password is hashed before it is stored.
func (s *UserService) Update(ctx context.Context, u *entity.User, confirmation string) (*entity.User, error) {
	ctx, span := tracer.Start(ctx, "user.Update")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", u.ID))

	if u.Password != confirmation {
		return nil, errPasswordMismatch
	}
	if other, err := s.store.FindByUsername(ctx, u.Username); err == nil && other.ID != u.ID {
		return nil, ErrUserExists
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	hash, err := s.hasher.Hash(u.Password)
	if err != nil {
		return nil, err
	}
	u.Password = hash
	if err := s.store.Update(ctx, u); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrUserExists
		}
		return nil, notFound(err)
	}
	return s.GetByID(ctx, u.ID)
}

// Delete removes the user and the tasks it owns.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	ctx, span := tracer.Start(ctx, "user.Delete")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", id))

	if err := s.store.Delete(ctx, id); err != nil {
		return notFound(err)
	}
	s.logger.Infow("user deleted", "user_id", id)
	return nil
}

func (s *UserService) IsTaskOwner(ctx context.Context, userID, taskID int64) (bool, error) {
	return s.store.IsTaskOwner(ctx, userID, taskID)
}

// GrantRole adds role to the user's role set. Granting a role the user
// already holds is a no-op.
func (s *UserService) GrantRole(ctx context.Context, id int64, role entity.Role) (*entity.User, error) {
	ctx, span := tracer.Start(ctx, "user.GrantRole")
	defer span.End()

	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.HasRole(role) {
		return u, nil
	}
	if err := s.store.InsertRole(ctx, id, role); err != nil {
		return nil, err
	}
	u.Roles = entity.NormalizeRoles(append(u.Roles, role))
	s.logger.Infow("role granted", "user_id", id, "role", role)
	return u, nil
}
