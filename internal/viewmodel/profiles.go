package viewmodel

import (
	"context"
	"net/mail"
	"strings"

	"waselni/internal/domain"
	"waselni/internal/repository"
	"waselni/internal/store"
)

// ProfileRequest creates the profile row of a newly signed-up user.
type ProfileRequest struct {
	Email        string
	FullName     string
	FullNameAr   *string
	Phone        *string
	University   *string
	UniversityAr *string
	StudentID    *string
	UserType     domain.UserType
}

// ProfilePatch edits a profile. Nil fields are left unchanged.
type ProfilePatch struct {
	FullName     *string
	FullNameAr   *string
	Phone        *string
	University   *string
	UniversityAr *string
	StudentID    *string
	AvatarURL    *string
}

// Profiles reads and writes the signed-in user's profile. Ratings and trip
// counts are maintained by the backend and are not writable here.
type Profiles struct {
	userID string
	repo   *repository.ProfileRepository
}

func NewProfiles(userID string, client store.Client) *Profiles {
	return &Profiles{userID: userID, repo: repository.NewProfileRepository(client)}
}

func (p *Profiles) Get(ctx context.Context) (domain.Profile, error) {
	if err := requireUser(p.userID, "id"); err != nil {
		return domain.Profile{}, err
	}
	return p.repo.Get(ctx, p.userID)
}

// Create inserts the profile row keyed by the identity provider's user id.
func (p *Profiles) Create(ctx context.Context, req ProfileRequest) (domain.Profile, error) {
	if err := requireUser(p.userID, "id"); err != nil {
		return domain.Profile{}, err
	}
	email := strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.Profile{}, store.Invalid("email", "invalid address")
	}
	name := strings.TrimSpace(req.FullName)
	if name == "" {
		return domain.Profile{}, store.Invalid("full_name", "required")
	}
	userType := req.UserType
	if userType == "" {
		userType = domain.UserTypeStudent
	}
	if !userType.Valid() {
		return domain.Profile{}, store.Invalid("user_type", "must be student or driver")
	}

	v := store.Values{
		"id":        p.userID,
		"email":     email,
		"full_name": name,
		"user_type": userType,
	}
	setOptional(v, "full_name_ar", req.FullNameAr)
	setOptional(v, "phone", req.Phone)
	setOptional(v, "university", req.University)
	setOptional(v, "university_ar", req.UniversityAr)
	setOptional(v, "student_id", req.StudentID)

	return p.repo.Insert(ctx, v)
}

func (p *Profiles) Update(ctx context.Context, patch ProfilePatch) (domain.Profile, error) {
	if err := requireUser(p.userID, "id"); err != nil {
		return domain.Profile{}, err
	}
	if patch.FullName != nil && strings.TrimSpace(*patch.FullName) == "" {
		return domain.Profile{}, store.Invalid("full_name", "must not be empty")
	}

	v := store.Values{}
	setOptional(v, "full_name", patch.FullName)
	setOptional(v, "full_name_ar", patch.FullNameAr)
	setOptional(v, "phone", patch.Phone)
	setOptional(v, "university", patch.University)
	setOptional(v, "university_ar", patch.UniversityAr)
	setOptional(v, "student_id", patch.StudentID)
	setOptional(v, "avatar_url", patch.AvatarURL)
	if len(v) == 0 {
		return domain.Profile{}, store.Invalid("", "nothing to update")
	}

	return p.repo.Update(ctx, p.userID, v)
}

// setOptional sets col when s is given; an empty string clears it.
func setOptional(v store.Values, col string, s *string) {
	if s == nil {
		return
	}
	if trimmed := strings.TrimSpace(*s); trimmed != "" {
		v[col] = trimmed
		return
	}
	v[col] = nil
}
