package domain

import "time"

// UserType is the role tag of a profile.
type UserType string

const (
	UserTypeStudent UserType = "student"
	UserTypeDriver  UserType = "driver"
)

// Valid reports whether u is a known user type.
func (u UserType) Valid() bool {
	return u == UserTypeStudent || u == UserTypeDriver
}

// Profile is the person record of a passenger or driver.
type Profile struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	FullNameAr   *string   `json:"full_name_ar"`
	Phone        *string   `json:"phone"`
	University   *string   `json:"university"`
	UniversityAr *string   `json:"university_ar"`
	StudentID    *string   `json:"student_id"`
	AvatarURL    *string   `json:"avatar_url"`
	UserType     UserType  `json:"user_type"`
	IsVerified   bool      `json:"is_verified"`
	Rating       float64   `json:"rating"`
	TotalTrips   int       `json:"total_trips"`
	MemberSince  time.Time `json:"member_since"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DisplayName returns the name in the requested language.
func (p Profile) DisplayName(lang Language) string {
	ar := ""
	if p.FullNameAr != nil {
		ar = *p.FullNameAr
	}
	return Localize(lang, p.FullName, ar)
}

// RunningAverage folds one more rating into an average over count ratings.
// Profile.Rating is the fold of every rating the profile received.
func RunningAverage(current float64, count int, rating int) float64 {
	if count <= 0 {
		return float64(rating)
	}
	return (current*float64(count) + float64(rating)) / float64(count+1)
}
