package students

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultProfileCount = 8

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Get(ctx context.Context, studentName string) (*Profile, error) {
	var p Profile
	if err := r.db.WithContext(ctx).
		Where("student_name = ?", studentName).
		First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrStudentNotFound, studentName)
		}
		return nil, err
	}
	return &p, nil
}

// Random returns up to count profiles in shuffled order.
func (r *Repo) Random(ctx context.Context, count int) ([]Profile, error) {
	if count <= 0 {
		count = DefaultProfileCount
	}
	var all []Profile
	if err := r.db.WithContext(ctx).Find(&all).Error; err != nil {
		return nil, err
	}
	rand.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	if len(all) > count {
		all = all[:count]
	}
	return all, nil
}

// Upsert validates and stores a profile, replacing an existing one.
func (r *Repo) Upsert(ctx context.Context, p Profile) error {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&p).Error
}

// LoadProfiles reads a JSON array of profiles, as used by -seed-students.
func LoadProfiles(r io.Reader) ([]Profile, error) {
	var out []Profile
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	return out, nil
}

// Seed upserts every profile and reports how many were stored. Invalid
// profiles are skipped and returned joined.
func (r *Repo) Seed(ctx context.Context, profiles []Profile) (int, error) {
	var (
		stored int
		errs   []error
	)
	for _, p := range profiles {
		if err := r.Upsert(ctx, p); err != nil {
			if errors.Is(err, ErrInvalidProfile) {
				errs = append(errs, err)
				continue
			}
			return stored, err
		}
		stored++
	}
	return stored, errors.Join(errs...)
}
