package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedDaily() *DailyLog {
	created := time.Date(2026, 2, 5, 8, 0, 0, 0, time.UTC)
	d := &DailyLog{
		LogDate:       "2026-02-05",
		PrisonName:    "Prison A",
		InspectorName: "Inspector Li",
		StrictControl: HeadCount{NewCount: 1, TotalCount: 10, Notes: "stable"},
		Attachments:   []AttachmentRef{{ID: 1, FileName: "a.jpg"}},
	}
	Stamp(d, 4, 2, created)
	_ = d.Normalize()
	return d
}

func TestApplyPatchDeepMerges(t *testing.T) {
	now := time.Date(2026, 2, 6, 8, 0, 0, 0, time.UTC)
	orig := storedDaily()

	out, err := ApplyPatch(orig, Patch{
		"strict_control": map[string]any{"newCount": 3},
		"notes":          "updated",
	}, now)
	require.NoError(t, err)

	d := out.(*DailyLog)
	assert.Equal(t, 3, d.StrictControl.NewCount)
	assert.Equal(t, 10, d.StrictControl.TotalCount)
	assert.Equal(t, "stable", d.StrictControl.Notes)
	assert.Equal(t, "updated", d.Notes)
	assert.Equal(t, "Prison A", d.PrisonName)
	assert.Equal(t, now, d.UpdatedAt)
	assert.Equal(t, orig.CreatedAt, d.CreatedAt)
	assert.Equal(t, SyncPending, d.SyncStatus)

	// The input is left untouched.
	assert.Equal(t, 1, orig.StrictControl.NewCount)
}

func TestApplyPatchArraysReplace(t *testing.T) {
	out, err := ApplyPatch(storedDaily(), Patch{
		"attachments": []AttachmentRef{{ID: 7, FileName: "b.jpg"}, {ID: 8, FileName: "c.jpg"}},
	}, time.Now())
	require.NoError(t, err)

	d := out.(*DailyLog)
	require.Len(t, d.Attachments, 2)
	assert.Equal(t, int64(7), d.Attachments[0].ID)
}

func TestApplyPatchProtectsIdentity(t *testing.T) {
	orig := storedDaily()
	out, err := ApplyPatch(orig, Patch{
		"id":            99,
		"user_id":       99,
		"createdAt":     "2000-01-01T00:00:00Z",
		"schemaVersion": 42,
	}, time.Now())
	require.NoError(t, err)

	h := out.Head()
	assert.Equal(t, orig.ID, h.ID)
	assert.Equal(t, orig.UserID, h.UserID)
	assert.Equal(t, orig.CreatedAt, h.CreatedAt)
	assert.Equal(t, CurrentSchemaVersion, h.SchemaVersion)
}

func TestApplyPatchSyncStatus(t *testing.T) {
	out, err := ApplyPatch(storedDaily(), Patch{"syncStatus": "exported"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, SyncExported, out.Head().SyncStatus)

	_, err = ApplyPatch(storedDaily(), Patch{"syncStatus": "queued"}, time.Now())
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestApplyPatchRejectsBadInput(t *testing.T) {
	_, err := ApplyPatch(storedDaily(), Patch{"no_such_field": 1}, time.Now())
	assert.ErrorIs(t, err, ErrInvalidData)

	_, err = ApplyPatch(storedDaily(), Patch{"log_date": "someday"}, time.Now())
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestApplyPatchNormalizesDate(t *testing.T) {
	out, err := ApplyPatch(storedDaily(), Patch{"log_date": "2026/03/01"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", out.DateKey())
}

func TestSectionPatch(t *testing.T) {
	d := storedDaily()
	p, err := SectionPatch(d, "attachments", "missing")
	require.NoError(t, err)
	assert.Len(t, p, 1)
	assert.Contains(t, p, "attachments")
}
