package service

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/sproutcrm/tenantcore/internal/access/domain"
	"github.com/sproutcrm/tenantcore/internal/access/store"
	"github.com/sproutcrm/tenantcore/pkg/cryptox"
	"github.com/sproutcrm/tenantcore/pkg/idx"
	"github.com/sproutcrm/tenantcore/pkg/slogx"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrSlugTaken          = errors.New("organization slug already taken")
	ErrInvalidAccount     = errors.New("invalid account request")
	ErrWeakPassword       = errors.New("password does not meet minimum length")
	ErrOrganizationExists = errors.New("organization already exists")
)

const minPasswordLength = 10

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// AccountService covers user registration and organization creation.
// These sit upstream of the invite and authorization flows: accounts
// must exist before invites can be redeemed into them.
type AccountService struct {
	Store store.Store
}

// Register creates a user account with an argon2id password hash.
func (s *AccountService) Register(ctx context.Context, email, fullName, password string) (domain.User, error) {
	log := slogx.FromContext(ctx)
	now := time.Now().UTC()

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, ErrInvalidAccount
	}
	if len(password) < minPasswordLength {
		return domain.User{}, ErrWeakPassword
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		log.Error("failed to hash password", slog.Any("error", err))
		return domain.User{}, err
	}

	user := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrEmailTaken
		}
		log.Error("failed to create user", slog.Any("error", err))
		return domain.User{}, err
	}

	log.Info("user registered", slog.String("user_id", user.ID))
	return user, nil
}

// CreateOrganization creates an organization and makes the creator its
// first admin, atomically. An organization without an admin would be
// unmanageable, so the two writes commit together.
func (s *AccountService) CreateOrganization(ctx context.Context, name, slug, createdBy string) (domain.Organization, error) {
	log := slogx.FromContext(ctx)
	now := time.Now().UTC()

	name = strings.TrimSpace(name)
	slug = strings.ToLower(strings.TrimSpace(slug))
	if name == "" || createdBy == "" || !slugPattern.MatchString(slug) {
		return domain.Organization{}, ErrInvalidAccount
	}

	org := domain.Organization{
		ID:        idx.New().String(),
		Name:      name,
		Slug:      slug,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Organizations().CreateOrganization(ctx, org); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrSlugTaken
			}
			return err
		}
		admin := domain.Membership{
			ID:             idx.New().String(),
			UserID:         createdBy,
			OrganizationID: org.ID,
			Role:           domain.RoleAdmin,
			Status:         domain.MembershipActive,
			JoinedAt:       now,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		return tx.Memberships().CreateMembership(ctx, admin)
	})
	if err != nil {
		if !errors.Is(err, ErrSlugTaken) {
			log.Error("failed to create organization", slog.Any("error", err))
		}
		return domain.Organization{}, err
	}

	log.Info("organization created",
		slog.String("organization_id", org.ID),
		slog.String("slug", slug),
		slog.String("created_by", createdBy),
	)
	return org, nil
}

// GetOrganization fetches an organization by ID.
func (s *AccountService) GetOrganization(ctx context.Context, id string) (domain.Organization, error) {
	org, err := s.Store.Organizations().GetOrganizationByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Organization{}, ErrInvalidAccount
		}
		return domain.Organization{}, err
	}
	return org, nil
}
