package scoring

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospitalops/admission-api/internal/model"
	"github.com/hospitalops/admission-api/internal/repository"
	"github.com/hospitalops/admission-api/pkg/logger"
)

type predictionStore struct {
	known   map[int64]bool
	updates map[int64]struct {
		label int
		proba float64
	}
}

func newPredictionStore(codes ...int64) *predictionStore {
	s := &predictionStore{
		known: map[int64]bool{},
		updates: map[int64]struct {
			label int
			proba float64
		}{},
	}
	for _, c := range codes {
		s.known[c] = true
	}
	return s
}

func (s *predictionStore) Create(context.Context, *model.Episode) error { return nil }
func (s *predictionStore) Get(context.Context, uuid.UUID) (*model.Episode, error) {
	return nil, repository.ErrNotFound
}
func (s *predictionStore) GetByCode(context.Context, int64) (*model.Episode, error) {
	return nil, repository.ErrNotFound
}
func (s *predictionStore) Update(context.Context, *model.Episode) error { return nil }

func (s *predictionStore) UpdatePrediction(_ context.Context, code int64, label int, proba float64) (bool, error) {
	if !s.known[code] {
		return false, nil
	}
	s.updates[code] = struct {
		label int
		proba float64
	}{label, proba}
	return true, nil
}

// testArtifact weighs age alone so probabilities are easy to reason
// about: old patients score high, young ones low.
func testArtifact() *Artifact {
	coeffs := map[string]float64{}
	for _, c := range featureColumns {
		coeffs[c] = 0
	}
	coeffs[featAge] = 0.1
	return &Artifact{
		FeatureColumns: featureColumns,
		Threshold:      0.5,
		Encoders: map[string][]string{
			featPayer:        {"FON", "ISA"},
			featEntryService: {"MED", "URG"},
			featDiagnosis:    {"J18.9"},
			featGRDCode:      {"GRD-1442"},
		},
		Coefficients: coeffs,
		Intercept:    -6,
	}
}

func scoringLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

func TestRunnerScoreAndWriteBack(t *testing.T) {
	// Episode 1001 (age 74, z=1.4) crosses the threshold, 1002 (age 20,
	// z=-4) does not, 1003 is unknown to the store and skipped.
	store := newPredictionStore(1001, 1002)
	runner := NewRunner(store, testArtifact(), scoringLogger())

	tbl := grdTable(
		[]string{"Edad en años"},
		[][]string{{"74"}, {"20"}, {"33"}},
		[]string{"1001", "1002", "1003"},
	)

	updated, flagged, err := runner.Score(context.Background(), tbl, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, updated)
	assert.Equal(t, 1, flagged)

	assert.Equal(t, 1, store.updates[1001].label)
	assert.Greater(t, store.updates[1001].proba, 0.5)
	assert.Equal(t, 0, store.updates[1002].label)
	assert.Less(t, store.updates[1002].proba, 0.5)
	_, scored := store.updates[1003]
	assert.False(t, scored)
}

func TestRunnerThresholdOverride(t *testing.T) {
	store := newPredictionStore(1001)
	runner := NewRunner(store, testArtifact(), scoringLogger())

	tbl := grdTable([]string{"Edad en años"}, [][]string{{"74"}}, []string{"1001"})

	th := 0.99
	_, flagged, err := runner.Score(context.Background(), tbl, &th)
	require.NoError(t, err)
	assert.Equal(t, 0, flagged)
	assert.Equal(t, 0, store.updates[1001].label)
}

func TestRunnerContractMismatch(t *testing.T) {
	a := testArtifact()
	a.FeatureColumns = append(a.FeatureColumns, "columna_futura")
	a.Coefficients["columna_futura"] = 1
	runner := NewRunner(newPredictionStore(), a, scoringLogger())

	tbl := grdTable([]string{"Edad en años"}, [][]string{{"74"}}, []string{"1001"})

	_, _, err := runner.Score(context.Background(), tbl, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "columna_futura")
}

func TestRunnerUnseenCategoryEncodesToMinusOne(t *testing.T) {
	a := testArtifact()
	assert.Equal(t, 1.0, a.Encode(featPayer, "ISA"))
	assert.Equal(t, -1.0, a.Encode(featPayer, "NUNCA_VISTO"))
	assert.Equal(t, -1.0, a.Encode("sin_encoder", "x"))
}

func TestLoadArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"feature_columns": ["edad", "sexo"],
		"threshold": 0.6,
		"encoders": {},
		"coefficients": {"edad": 0.1, "sexo": -0.2},
		"intercept": -3.5
	}`), 0o644))

	a, err := LoadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, 0.6, a.Threshold)
	assert.Equal(t, []string{"edad", "sexo"}, a.FeatureColumns)

	// Missing coefficient for a declared column is rejected.
	require.NoError(t, os.WriteFile(path, []byte(`{
		"feature_columns": ["edad", "peso"],
		"coefficients": {"edad": 0.1}
	}`), 0o644))
	_, err = LoadArtifact(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "peso")

	_, err = LoadArtifact(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestShippedModelMatchesFeatureContract(t *testing.T) {
	a, err := LoadArtifact(filepath.Join("..", "..", "config", "extended_stay_model.json"))
	require.NoError(t, err)

	assert.Equal(t, featureColumns, a.FeatureColumns)
	for col := range categoricalColumns {
		assert.NotEmpty(t, a.Encoders[col], col)
	}
}
