package application

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/barterx-accounts/internal/domain/entity"
	repo "github.com/oksasatya/barterx-accounts/internal/domain/repository"
)

// ProfilePatch carries onboarding fields. Nil slices and empty strings mean
// "leave unchanged"; a non-nil empty slice clears the list.
type ProfilePatch struct {
	Interests      []string
	Modes          []string
	UserType       string
	ContactNumber  string
	City           string
	State          string
	Country        string
	ProfilePicture string
}

func (p ProfilePatch) validate() error {
	if p.UserType != "" && p.UserType != entity.UserTypeIndividual && p.UserType != entity.UserTypeSeller {
		return &ValidationError{Fields: map[string]string{"userType": "must be one of: individual, seller"}}
	}
	return nil
}

func (p ProfilePatch) apply(dst *entity.Profile) {
	if p.Interests != nil {
		dst.Interests = append([]string{}, p.Interests...)
	}
	if p.Modes != nil {
		dst.Modes = append([]string{}, p.Modes...)
	}
	setIfPresent(&dst.UserType, p.UserType)
	setIfPresent(&dst.ContactNumber, p.ContactNumber)
	setIfPresent(&dst.City, p.City)
	setIfPresent(&dst.State, p.State)
	setIfPresent(&dst.Country, p.Country)
	setIfPresent(&dst.ProfilePicture, p.ProfilePicture)
}

func setIfPresent(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

type ProfileService struct {
	Repo     repo.AccountRepository
	Index    ProfileIndex
	Pictures PictureStore
	Logger   *logrus.Logger
}

func NewProfileService(r repo.AccountRepository, index ProfileIndex, pictures PictureStore, logger *logrus.Logger) *ProfileService {
	return &ProfileService{Repo: r, Index: index, Pictures: pictures, Logger: logger}
}

// UpdateProfile merges patch into the account's profile.
func (s *ProfileService) UpdateProfile(ctx context.Context, email string, patch ProfilePatch) (*entity.Account, error) {
	if err := requireFields(map[string]string{"email": email}); err != nil {
		return nil, err
	}
	if err := patch.validate(); err != nil {
		return nil, err
	}
	a, err := s.Repo.Mutate(ctx, email, func(cur *entity.Account) (*entity.Account, error) {
		if cur == nil {
			return nil, ErrNotFound
		}
		patch.apply(&cur.Profile)
		return cur, nil
	})
	if err != nil {
		return nil, s.storeErr("update profile", err)
	}
	indexProfile(ctx, s.Index, s.Logger, a)
	return a, nil
}

func (s *ProfileService) GetProfile(ctx context.Context, email string) (*entity.Account, error) {
	if err := requireFields(map[string]string{"email": email}); err != nil {
		return nil, err
	}
	a, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, s.storeErr("get profile", err)
	}
	return a, nil
}

// SaveInterests replaces the interests of the account with the given id.
func (s *ProfileService) SaveInterests(ctx context.Context, accountID string, interests []string) (*entity.Account, error) {
	if err := requireFields(map[string]string{"userId": accountID}); err != nil {
		return nil, err
	}
	cur, err := s.Repo.GetByID(ctx, accountID)
	if err != nil {
		return nil, s.storeErr("save interests", err)
	}
	if interests == nil {
		interests = []string{}
	}
	return s.UpdateProfile(ctx, cur.Email, ProfilePatch{Interests: interests})
}

// SearchProfiles runs a free-text query over indexed profiles.
func (s *ProfileService) SearchProfiles(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.Index == nil {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	res, err := s.Index.Search(ctx, q, size)
	if err != nil {
		return nil, s.storeErr("search profiles", err)
	}
	return res, nil
}

// UploadPicture stores an image and records its URL on the profile.
func (s *ProfileService) UploadPicture(ctx context.Context, email string, r io.Reader, filename, contentType string) (*entity.Account, error) {
	if err := requireFields(map[string]string{"email": email}); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, &ValidationError{Fields: map[string]string{"file": "must be an image"}}
	}
	if s.Pictures == nil {
		return nil, dependency("upload picture", errors.New("picture storage not configured"))
	}
	a, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, s.storeErr("upload picture", err)
	}
	ext := strings.ToLower(path.Ext(filename))
	objectPath := path.Join("profile-pictures", a.ID, uuid.NewString()+ext)
	url, err := s.Pictures.Upload(ctx, objectPath, contentType, r)
	if err != nil {
		return nil, s.storeErr("upload picture", err)
	}
	return s.UpdateProfile(ctx, email, ProfilePatch{ProfilePicture: url})
}

func (s *ProfileService) storeErr(op string, err error) error {
	switch {
	case errors.Is(err, repo.ErrAccountNotFound):
		return ErrNotFound
	case isBusiness(err):
		return err
	}
	if s.Logger != nil {
		s.Logger.WithError(err).Error(op + " failed")
	}
	return dependency(op, err)
}
