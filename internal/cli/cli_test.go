package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/fittracker/internal/aggregation"
	"example.com/fittracker/internal/api"
	"example.com/fittracker/internal/auth"
	"example.com/fittracker/internal/collections"
	"example.com/fittracker/internal/domain"
	"example.com/fittracker/internal/localstore"
	"example.com/fittracker/internal/syncengine"
	"example.com/fittracker/internal/tracker"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// clearEnv keeps the developer's shell configuration out of the tests.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"FITTRACKER_REMOTE_URL", "FITTRACKER_TOKEN", "FITTRACKER_DATA_DIR",
		"FITTRACKER_STORE", "FITTRACKER_REMOTE_TIMEOUT", "JWT_SECRET", "JWT_ISSUER",
	} {
		t.Setenv(key, "")
	}
}

func memoryOptions(t *testing.T) *RootOptions {
	clearEnv(t)
	return &RootOptions{KV: localstore.NewMemoryKV(), Now: func() time.Time { return fixedNow }}
}

func run(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(opts)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

type envelope[T any] struct {
	Status  string `json:"status"`
	Data    T      `json:"data"`
	Warning string `json:"warning"`
}

func runJSON[T any](t *testing.T, opts *RootOptions, args ...string) envelope[T] {
	t.Helper()
	out, err := run(t, opts, append(args, "--format", "json")...)
	require.NoError(t, err, out)
	var env envelope[T]
	require.NoError(t, json.Unmarshal([]byte(out), &env), out)
	return env
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "fittracker", cmd.Use)

	for _, name := range []string{"foods", "weight", "goals", "workouts", "stats", "sync", "dev-token"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
}

func TestHelpDescribesLocalOnlyRecords(t *testing.T) {
	cmd := NewRootCommand()
	assert.Contains(t, cmd.Long, "stays on this device under its local id")
	assert.NotContains(t, cmd.Long, "synchronised by a later command")

	syncCmd, _, err := cmd.Find([]string{"sync"})
	require.NoError(t, err)
	assert.Contains(t, syncCmd.Long, "retry deletes")
	assert.Contains(t, syncCmd.Long, "under their local id")
}

func TestInvalidFormat(t *testing.T) {
	opts := memoryOptions(t)
	_, err := run(t, opts, "foods", "list", "--format", "yaml")
	require.ErrorContains(t, err, "invalid format")
}

func TestFoodsAddWithoutRemoteStaysLocal(t *testing.T) {
	opts := memoryOptions(t)

	added := runJSON[mutation[domain.FoodEntry]](t, opts, "foods", "add", "--name", "Oats", "--calories", "300", "--protein", "10")
	require.Equal(t, "local_only", added.Status)
	require.NotEmpty(t, added.Warning)
	require.Equal(t, domain.OperationAdd, added.Data.Op)
	require.True(t, domain.IsProvisional(added.Data.Record.ID))
	require.Equal(t, "2024-03-01", added.Data.Record.Payload.ConsumedOn)

	// A later invocation reads the same device store.
	listed := runJSON[[]domain.Record[domain.FoodEntry]](t, opts, "foods", "list")
	require.Equal(t, "local_only", listed.Status)
	require.Len(t, listed.Data, 1)
	require.Equal(t, added.Data.Record.ID, listed.Data[0].ID)
	require.Equal(t, "Oats", listed.Data[0].Payload.Name)
}

func TestFoodsAddTextOutput(t *testing.T) {
	opts := memoryOptions(t)
	out, err := run(t, opts, "foods", "add", "--name", "Oats", "--calories", "300")
	require.NoError(t, err)
	require.Contains(t, out, "saved locally")
	require.Contains(t, out, "offline:")
}

func TestFoodsAddRejectsInvalidInput(t *testing.T) {
	opts := memoryOptions(t)
	_, err := run(t, opts, "foods", "add", "--name", "Oats", "--calories=-5")
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	listed := runJSON[[]domain.Record[domain.FoodEntry]](t, opts, "foods", "list")
	require.Empty(t, listed.Data)
}

func TestFoodsTotalsAgainstGoals(t *testing.T) {
	opts := memoryOptions(t)
	_, err := run(t, opts, "goals", "save", "--calories", "2000", "--protein", "150")
	require.NoError(t, err)
	_, err = run(t, opts, "foods", "add", "--name", "Oats", "--calories", "300", "--protein", "10", "--servings", "2")
	require.NoError(t, err)
	_, err = run(t, opts, "foods", "add", "--name", "Apple", "--calories", "95")
	require.NoError(t, err)
	_, err = run(t, opts, "foods", "add", "--name", "Pizza", "--calories", "900", "--date", "2024-02-29")
	require.NoError(t, err)

	totals := runJSON[tracker.DayTotals](t, opts, "foods", "totals")
	require.Equal(t, "2024-03-01", totals.Data.Day)
	require.Equal(t, 2, totals.Data.Entries)
	require.InDelta(t, 695, totals.Data.Calories, 0.001)
	require.InDelta(t, 20, totals.Data.ProteinG, 0.001)
	require.InDelta(t, 1305, totals.Data.Remaining, 0.001)

	onDay := runJSON[[]domain.Record[domain.FoodEntry]](t, opts, "foods", "list", "--date", "2024-02-29")
	require.Len(t, onDay.Data, 1)
	require.Equal(t, "Pizza", onDay.Data[0].Payload.Name)
}

func TestGoalsSaveReplacesCurrent(t *testing.T) {
	opts := memoryOptions(t)
	_, err := run(t, opts, "goals", "save", "--calories", "2000")
	require.NoError(t, err)
	_, err = run(t, opts, "goals", "save", "--calories", "2400", "--target-weight", "75")
	require.NoError(t, err)

	shown := runJSON[domain.Record[domain.Goals]](t, opts, "goals", "show")
	require.InDelta(t, 2400, shown.Data.Payload.DailyCalories, 0.001)
	require.InDelta(t, 75, shown.Data.Payload.TargetWeight, 0.001)

	_, err = run(t, opts, "goals", "save")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestWeightAddAndDelete(t *testing.T) {
	opts := memoryOptions(t)
	added := runJSON[mutation[domain.WeightEntry]](t, opts, "weight", "add", "81.5", "--note", "morning")
	require.Equal(t, domain.UnitKilograms, added.Data.Record.Payload.Unit)

	deleted := runJSON[mutation[domain.WeightEntry]](t, opts, "weight", "delete", added.Data.Record.ID)
	// Provisional records never reached the remote, so the delete is complete.
	require.Equal(t, "ok", deleted.Status)
	require.Equal(t, domain.Applied.String(), deleted.Data.Result)

	listed := runJSON[[]domain.Record[domain.WeightEntry]](t, opts, "weight", "list")
	require.Empty(t, listed.Data)

	_, err := run(t, opts, "weight", "add", "heavy")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDeleteUnknownRecord(t *testing.T) {
	opts := memoryOptions(t)
	_, err := run(t, opts, "workouts", "delete", "missing")
	require.ErrorIs(t, err, syncengine.ErrRecordNotFound)
}

func TestWorkoutStats(t *testing.T) {
	opts := memoryOptions(t)
	_, err := run(t, opts, "workouts", "add", "--date", "2024-02-27", "--set", "Bench=100x5", "--set", "Bench=100x5")
	require.NoError(t, err)
	_, err = run(t, opts, "workouts", "add", "--set", "bench=110x5", "--set", "Squat=140x3:skip")
	require.NoError(t, err)

	summary := runJSON[aggregation.Summary](t, opts, "stats", "Bench", "--metric", "volume")
	require.Len(t, summary.Data.Points, 2)
	require.InDelta(t, 1000, summary.Data.Points[0].Value, 0.001)
	require.InDelta(t, 550, summary.Data.Points[1].Value, 0.001)
	require.InDelta(t, 1000, summary.Data.PersonalBest, 0.001)
	require.InDelta(t, 550, summary.Data.Current, 0.001)
	require.Equal(t, 3, summary.Data.TotalSets)
	require.Equal(t, 15, summary.Data.TotalReps)

	// The skipped squat set keeps the exercise listed but produces no points.
	names := runJSON[[]string](t, opts, "stats")
	require.Equal(t, []string{"Bench", "Squat"}, names.Data)
	squat := runJSON[aggregation.Summary](t, opts, "stats", "Squat")
	require.Empty(t, squat.Data.Points)

	_, err = run(t, opts, "stats", "Bench", "--metric", "speed")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestParseSets(t *testing.T) {
	exercises, err := ParseSets([]string{"Bench=100x5", "Squat = 140X3", "Bench=105x3:skip"})
	require.NoError(t, err)
	require.Len(t, exercises, 2)
	require.Equal(t, "Bench", exercises[0].Name)
	require.Len(t, exercises[0].Sets, 2)
	require.True(t, exercises[0].Sets[0].IsCompleted())
	require.False(t, exercises[0].Sets[1].IsCompleted())
	require.Equal(t, domain.SetLog{Weight: 140, Reps: 3}, exercises[1].Sets[0])

	for _, bad := range []string{"Bench", "=100x5", "Bench=100", "Bench=axb", "Bench=100x5:later"} {
		_, err := ParseSets([]string{bad})
		require.ErrorIs(t, err, domain.ErrInvalidInput, bad)
	}
}

func TestPersistentStores(t *testing.T) {
	for _, store := range []string{"sqlite", "badger"} {
		t.Run(store, func(t *testing.T) {
			clearEnv(t)
			dir := t.TempDir()
			opts := &RootOptions{Now: func() time.Time { return fixedNow }}

			_, err := run(t, opts, "weight", "add", "80", "--store", store, "--data-dir", dir)
			require.NoError(t, err)

			listed := runJSON[[]domain.Record[domain.WeightEntry]](t, opts, "weight", "list", "--store", store, "--data-dir", dir)
			require.Len(t, listed.Data, 1)
			require.InDelta(t, 80, listed.Data[0].Payload.Weight, 0.001)
		})
	}
}

func TestUnknownStore(t *testing.T) {
	clearEnv(t)
	_, err := run(t, &RootOptions{}, "foods", "list", "--store", "floppy")
	require.ErrorContains(t, err, "store must be")
}

func newRecordsServer(t *testing.T, authCfg auth.Config) *httptest.Server {
	t.Helper()
	service := collections.NewService(collections.NewMemoryRepository(), collections.DefaultValidators(),
		collections.WithLogger(log.New(io.Discard, "", 0)))
	mux := http.NewServeMux()
	api.NewHandler(service).RegisterRoutes(mux)
	srv := httptest.NewServer(auth.NewMiddleware(authCfg, auth.SkipPaths("/healthz")).Wrap(mux))
	t.Cleanup(srv.Close)
	return srv
}

func TestSyncWithRecordsAPI(t *testing.T) {
	opts := memoryOptions(t)
	authCfg := auth.Config{Secret: "test-secret", Issuer: "fittracker.identity"}
	srv := newRecordsServer(t, authCfg)

	token, err := auth.Sign(authCfg, "alice", []string{auth.ScopeRecordsRead, auth.ScopeRecordsWrite}, time.Hour)
	require.NoError(t, err)
	t.Setenv("FITTRACKER_REMOTE_URL", srv.URL)
	t.Setenv("FITTRACKER_TOKEN", token)

	added := runJSON[mutation[domain.FoodEntry]](t, opts, "foods", "add", "--name", "Oats", "--calories", "300")
	require.Equal(t, "ok", added.Status)
	require.True(t, domain.IsProvisional(added.Data.LocalID))
	require.False(t, domain.IsProvisional(added.Data.Record.ID))

	listed := runJSON[[]domain.Record[domain.FoodEntry]](t, opts, "foods", "list")
	require.Equal(t, "ok", listed.Status)
	require.Len(t, listed.Data, 1)
	require.Equal(t, added.Data.Record.ID, listed.Data[0].ID)

	statuses := runJSON[[]CollectionStatus](t, opts, "sync")
	require.Len(t, statuses.Data, 4)
	require.Equal(t, CollectionStatus{Collection: tracker.CollectionFoods, Records: 1}, statuses.Data[0])
	for _, st := range statuses.Data {
		require.Empty(t, st.Error, st.Collection)
	}

	deleted := runJSON[mutation[domain.FoodEntry]](t, opts, "foods", "delete", added.Data.Record.ID)
	require.Equal(t, "ok", deleted.Status)
	listed = runJSON[[]domain.Record[domain.FoodEntry]](t, opts, "foods", "list")
	require.Empty(t, listed.Data)
}

func TestSyncOfflineReportsEveryCollection(t *testing.T) {
	opts := memoryOptions(t)
	_, err := run(t, opts, "foods", "add", "--name", "Oats", "--calories", "300")
	require.NoError(t, err)

	out, err := run(t, opts, "sync")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	require.Contains(t, lines[0], "foods")
	require.Contains(t, lines[0], "1 local")
	require.Contains(t, lines[0], "offline:")
}

func TestDevToken(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "cli-secret")

	out := runJSON[map[string]string](t, &RootOptions{}, "dev-token", "bob", "--ttl", "1h")
	token := out.Data["token"]
	require.NotEmpty(t, token)

	claims, err := auth.Parse(token, auth.Config{Secret: "cli-secret", Issuer: "fittracker.identity"})
	require.NoError(t, err)
	require.Equal(t, "bob", claims.Subject)
	require.True(t, claims.HasScope(auth.ScopeRecordsWrite))
}
