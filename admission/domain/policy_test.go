package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_NormalizeFieldByField(t *testing.T) {
	p := Policy{
		CooldownEnabled:         true,
		CooldownWindow:          -time.Hour,
		MaxSubmissionsPerWindow: 3,
		AllowedCategories:       []Category{"Olahraga", CategoryFacilities, CategoryFacilities},
	}.Normalize()

	assert.Equal(t, DefaultCooldown, p.CooldownWindow)
	assert.Equal(t, 3, p.MaxSubmissionsPerWindow)
	assert.Equal(t, []Category{CategoryFacilities}, p.AllowedCategories)
}

func TestPolicy_NormalizeEmptyCategories(t *testing.T) {
	p := Policy{CooldownWindow: Day, MaxSubmissionsPerWindow: 0}.Normalize()
	assert.Equal(t, AllCategories(), p.AllowedCategories)
	assert.Equal(t, 1, p.MaxSubmissionsPerWindow)
}

func TestPolicy_Validate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())

	bad := DefaultPolicy()
	bad.CooldownWindow = time.Hour
	assert.True(t, errors.Is(bad.Validate(), ErrInvalidPolicy))

	bad = DefaultPolicy()
	bad.AllowedCategories = []Category{"Olahraga"}
	assert.True(t, errors.Is(bad.Validate(), ErrInvalidPolicy))
}

func TestPolicyRecord_MissingEnabledMeansTrue(t *testing.T) {
	var rec PolicyRecord
	require.NoError(t, json.Unmarshal([]byte(`{"cooldownDays":3,"maxAspirationsPerPeriod":2,"allowedCategories":["Akademik"]}`), &rec))

	p := rec.Policy()
	assert.True(t, p.CooldownEnabled)
	assert.Equal(t, 3*Day, p.CooldownWindow)
	assert.Equal(t, 2, p.MaxSubmissionsPerWindow)
	assert.Equal(t, []Category{CategoryAcademic}, p.AllowedCategories)

	back := NewPolicyRecord(p)
	require.NotNil(t, back.CooldownEnabled)
	assert.Equal(t, 3, back.CooldownDays)
}

func TestVerdict_CeilingRemaining(t *testing.T) {
	v := Verdict{TimeRemaining: 3 * time.Hour}
	assert.Equal(t, 1, v.DaysRemaining())
	assert.Equal(t, 3, v.HoursRemaining())

	v = Verdict{TimeRemaining: 6*Day + time.Minute}
	assert.Equal(t, 7, v.DaysRemaining())
	assert.Equal(t, 145, v.HoursRemaining())

	assert.Zero(t, Verdict{}.DaysRemaining())
}

func TestTrackerRecord_ZeroTimesOmitted(t *testing.T) {
	rec := NewTrackerRecord(PeriodState{IPHash: "abc", IsWhitelisted: true, Version: 1})
	assert.Nil(t, rec.LastSubmissionAt)
	assert.Nil(t, rec.PeriodStartedAt)
	assert.False(t, rec.State().HasSubmission())
}
