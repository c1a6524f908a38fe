package students

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/persona-chat/internal/db"
)

func newRepo(t *testing.T) *Repo {
	t.Helper()
	gdb, err := db.Connect(fmt.Sprintf("sqlite:file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb, &Profile{}))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewRepo(gdb)
}

func TestValidate(t *testing.T) {
	valid := Profile{StudentName: "asha-kumar", Sex: "Female", Age: 12, State: "Tamil Nadu"}
	valid.Normalize()
	require.NoError(t, valid.Validate())
	assert.Equal(t, "tamil-nadu", valid.State)
	assert.Equal(t, "female", valid.Sex)

	cases := map[string]Profile{
		"sex":   {StudentName: "a", Sex: "other", Age: 12, State: "goa"},
		"age":   {StudentName: "a", Sex: "male", Age: 0, State: "goa"},
		"old":   {StudentName: "a", Sex: "male", Age: 26, State: "goa"},
		"state": {StudentName: "a", Sex: "male", Age: 12, State: "atlantis"},
		"name":  {Sex: "male", Age: 12, State: "goa"},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, p.Validate(), ErrInvalidProfile)
		})
	}
}

func TestRepo_GetAndUpsert(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	_, err := repo.Get(ctx, "asha-kumar")
	assert.ErrorIs(t, err, ErrStudentNotFound)

	require.NoError(t, repo.Upsert(ctx, Profile{StudentName: "asha-kumar", Sex: "female", Age: 12, State: "karnataka", Image: "a.png"}))
	require.NoError(t, repo.Upsert(ctx, Profile{StudentName: "asha-kumar", Sex: "female", Age: 13, State: "karnataka", Image: "b.png"}))

	p, err := repo.Get(ctx, "asha-kumar")
	require.NoError(t, err)
	assert.Equal(t, 13, p.Age)
	assert.Equal(t, "b.png", p.Image)

	err = repo.Upsert(ctx, Profile{StudentName: "x", Sex: "male", Age: 40, State: "goa"})
	assert.ErrorIs(t, err, ErrInvalidProfile)
}

func TestRepo_Random(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, repo.Upsert(ctx, Profile{StudentName: fmt.Sprintf("student-%d", i), Sex: "male", Age: 10, State: "goa"}))
	}

	got, err := repo.Random(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = repo.Random(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, got, DefaultProfileCount)

	got, err = repo.Random(ctx, 50)
	require.NoError(t, err)
	assert.Len(t, got, 10)
}

func TestSeed(t *testing.T) {
	repo := newRepo(t)
	profiles, err := LoadProfiles(strings.NewReader(`[
		{"student_name":"asha-kumar","student_sex":"female","student_age":12,"student_state":"karnataka"},
		{"student_name":"ravi-gowda","student_sex":"male","student_age":99,"student_state":"karnataka"}
	]`))
	require.NoError(t, err)

	n, err := repo.Seed(context.Background(), profiles)
	assert.Equal(t, 1, n)
	assert.ErrorIs(t, err, ErrInvalidProfile)

	_, err = LoadProfiles(strings.NewReader("not json"))
	assert.ErrorIs(t, err, ErrInvalidProfile)
}
