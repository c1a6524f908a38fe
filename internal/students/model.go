package students

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrStudentNotFound = errors.New("student not found")
	ErrInvalidProfile  = errors.New("invalid student profile")
)

// Profile is the public card of one student persona.
type Profile struct {
	StudentName string `gorm:"type:varchar(128);primaryKey" json:"student_name"`
	Sex         string `gorm:"type:varchar(16);not null" json:"student_sex"`
	Age         int    `gorm:"not null" json:"student_age"`
	State       string `gorm:"type:varchar(64);not null" json:"student_state"`
	Image       string `gorm:"type:varchar(512)" json:"student_image"`
}

func (Profile) TableName() string { return "student_profiles" }

var validSexes = []string{"male", "female"}

var validStates = []string{
	"andhra-pradesh", "arunachal-pradesh", "assam", "bihar", "chhattisgarh",
	"goa", "gujarat", "haryana", "himachal-pradesh", "jammu-kashmir",
	"jharkhand", "karnataka", "kerala", "madhya-pradesh", "maharashtra",
	"manipur", "meghalaya", "mizoram", "nagaland", "odisha", "punjab",
	"rajasthan", "sikkim", "tamil-nadu", "telangana", "tripura",
	"uttar-pradesh", "uttarakhand", "west-bengal",
}

// Normalize lower-cases the enumerated fields and slugs the state.
func (p *Profile) Normalize() {
	p.StudentName = strings.TrimSpace(p.StudentName)
	p.Sex = strings.ToLower(strings.TrimSpace(p.Sex))
	p.State = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(p.State)), " ", "-")
}

// Validate checks a normalized profile.
func (p Profile) Validate() error {
	if p.StudentName == "" {
		return fmt.Errorf("%w: student_name is required", ErrInvalidProfile)
	}
	if !slices.Contains(validSexes, p.Sex) {
		return fmt.Errorf("%w: sex %q for %s, must be one of %s",
			ErrInvalidProfile, p.Sex, p.StudentName, strings.Join(validSexes, ", "))
	}
	if p.Age < 1 || p.Age > 25 {
		return fmt.Errorf("%w: age %d for %s, must be between 1 and 25", ErrInvalidProfile, p.Age, p.StudentName)
	}
	if !slices.Contains(validStates, p.State) {
		return fmt.Errorf("%w: state %q for %s", ErrInvalidProfile, p.State, p.StudentName)
	}
	return nil
}
