package collections

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/fittracker/internal/domain"
)

var fixedNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestService(t *testing.T, repo Repository) *Service {
	return NewService(repo, DefaultValidators(),
		WithLogger(log.New(testWriter{t}, "", 0)),
		WithClock(func() time.Time { return fixedNow }))
}

func TestCreateAssignsIDForProvisionalRecords(t *testing.T) {
	svc := newTestService(t, NewMemoryRepository())

	created, err := svc.Create(context.Background(), "user-1", "foods", Record{
		ID:      "local_1704067200000-abcdef12",
		Payload: json.RawMessage(`{"name":"Oats","calories":300,"consumedOn":"2024-01-01"}`),
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.False(t, domain.IsProvisional(created.ID))
	require.Equal(t, fixedNow, created.CreatedAt)
	require.Equal(t, fixedNow, created.UpdatedAt)

	records, err := svc.List(context.Background(), "user-1", "foods")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, created.ID, records[0].ID)

	other, err := svc.List(context.Background(), "user-2", "foods")
	require.NoError(t, err)
	require.NotNil(t, other)
	require.Empty(t, other)
}

func TestCreateWithConfirmedIDUpserts(t *testing.T) {
	repo := NewMemoryRepository()
	svc := newTestService(t, repo)
	ctx := context.Background()

	first, err := svc.Create(ctx, "user-1", "goals", Record{Payload: json.RawMessage(`{"dailyCalories":2200}`)})
	require.NoError(t, err)

	second, err := svc.Create(ctx, "user-1", "goals", Record{
		ID:        first.ID,
		Payload:   json.RawMessage(`{"dailyCalories":2000}`),
		CreatedAt: fixedNow.Add(time.Hour),
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.CreatedAt, second.CreatedAt)

	records, err := svc.List(ctx, "user-1", "goals")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.JSONEq(t, `{"dailyCalories":2000}`, string(records[0].Payload))
}

func TestCreateRejectsInvalidPayload(t *testing.T) {
	svc := newTestService(t, NewMemoryRepository())
	ctx := context.Background()

	_, err := svc.Create(ctx, "user-1", "progress", Record{Payload: json.RawMessage(`{"weight":0,"unit":"kg","measuredOn":"2024-01-01"}`)})
	require.ErrorIs(t, err, ErrInvalidRecord)

	_, err = svc.Create(ctx, "user-1", "progress", Record{Payload: json.RawMessage(`[1,2]`)})
	require.ErrorIs(t, err, ErrInvalidRecord)

	_, err = svc.Create(ctx, "user-1", "progress", Record{})
	require.ErrorIs(t, err, ErrInvalidRecord)

	_, err = svc.Create(ctx, "user-1", "sleep", Record{Payload: json.RawMessage(`{}`)})
	require.ErrorIs(t, err, ErrUnknownCollection)
}

func TestDeleteIsIdempotent(t *testing.T) {
	svc := newTestService(t, NewMemoryRepository())
	ctx := context.Background()

	rec, err := svc.Create(ctx, "user-1", "workouts", Record{Payload: json.RawMessage(`{"date":"2024-01-01","exercises":[]}`)})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "user-1", "workouts", "missing"))
	require.ErrorIs(t, svc.Delete(ctx, "user-1", "sleep", rec.ID), ErrUnknownCollection)

	require.NoError(t, svc.Delete(ctx, "user-1", "workouts", rec.ID))
	require.NoError(t, svc.Delete(ctx, "user-1", "workouts", rec.ID))

	records, err := svc.List(ctx, "user-1", "workouts")
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestRepositoryErrorsPropagate(t *testing.T) {
	boom := errors.New("db down")
	svc := newTestService(t, failingRepo{err: boom})

	_, err := svc.List(context.Background(), "u", "foods")
	require.ErrorIs(t, err, boom)
	_, err = svc.Create(context.Background(), "u", "goals", Record{Payload: json.RawMessage(`{"dailyCalories":1}`)})
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, svc.Delete(context.Background(), "u", "foods", "x"), boom)
}

func TestCollections(t *testing.T) {
	svc := newTestService(t, NewMemoryRepository())
	require.Equal(t, []string{"foods", "goals", "progress", "workouts"}, svc.Collections())
}

type failingRepo struct {
	err error
}

func (f failingRepo) List(context.Context, string, string) ([]Record, error) { return nil, f.err }
func (f failingRepo) Upsert(context.Context, string, string, Record) (Record, error) {
	return Record{}, f.err
}
func (f failingRepo) Delete(context.Context, string, string, string) (bool, error) {
	return false, f.err
}

type testWriter struct {
	t *testing.T
}

func (tw testWriter) Write(p []byte) (int, error) {
	tw.t.Log(string(p))
	return len(p), nil
}
