package reconcile

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/orgpulse/pkg/apperrors"
)

func TestRecordStore_GetReturnsCopy(t *testing.T) {
	records := mixedRecords(1, 0, 0, 2)
	s := NewRecordStore(records)

	got := s.Get()
	got[0] = nil

	assert.NotNil(t, s.Get()[0])
	assert.Equal(t, 3, s.Len())
}

func TestRecordStore_Replace(t *testing.T) {
	records := mixedRecords(0, 0, 0, 3)
	s := NewRecordStore(records)

	next := records[1].Clone()
	next.Name = "renamed"
	require.NoError(t, s.Replace(next.ID, next))

	got, ok := s.Lookup(next.ID)
	require.True(t, ok)
	assert.Same(t, next, got)
	assert.Same(t, records[0], s.Get()[0])
	assert.Same(t, records[2], s.Get()[2])
}

func TestRecordStore_ReplaceUnknownID(t *testing.T) {
	s := NewRecordStore(mixedRecords(0, 0, 0, 2))
	stray := newEmployee("stray")

	err := s.Replace(stray.ID, stray)
	assert.True(t, errors.Is(err, apperrors.ErrRecordNotFound))
}

func TestRecordStore_ReplaceRejectsMismatchedID(t *testing.T) {
	records := mixedRecords(0, 0, 0, 1)
	s := NewRecordStore(records)

	err := s.Replace(uuid.New(), records[0])
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestRecordStore_ReplaceAll(t *testing.T) {
	s := NewRecordStore(mixedRecords(0, 0, 0, 3))
	fresh := mixedRecords(1, 1, 0, 0)

	s.ReplaceAll(append(fresh, nil))

	assert.Equal(t, 2, s.Len())
	_, ok := s.Lookup(fresh[1].ID)
	assert.True(t, ok)
}
