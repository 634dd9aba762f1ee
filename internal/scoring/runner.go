package scoring

import (
	"context"
	"fmt"

	"github.com/hospitalops/admission-api/internal/ingest"
	"github.com/hospitalops/admission-api/internal/repository"
	"github.com/hospitalops/admission-api/pkg/logger"
)

// Prediction is one scored episode.
type Prediction struct {
	Episode     int64
	Label       int
	Probability float64
}

// Runner builds features from the stay-statistics table, validates
// them against the model's feature contract, runs inference and writes
// the results back onto the matching episodes.
type Runner struct {
	episodes repository.EpisodeRepository
	builder  *Builder
	artifact *Artifact
	log      *logger.Logger
}

func NewRunner(episodes repository.EpisodeRepository, artifact *Artifact, log *logger.Logger) *Runner {
	return &Runner{
		episodes: episodes,
		builder:  NewBuilder(),
		artifact: artifact,
		log:      log,
	}
}

// Score runs the full pass. A nil threshold uses the model's own.
// Episodes the store does not know are skipped, since scoring may see
// rows the import run rejected. Returns the number of episodes updated
// and how many of those were flagged for an extended stay.
func (r *Runner) Score(ctx context.Context, grd *ingest.Table, threshold *float64) (int, int, error) {
	frame, err := r.builder.Build(grd)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to build features: %w", err)
	}
	if err := r.validateContract(frame); err != nil {
		return 0, 0, err
	}

	th := r.artifact.Threshold
	if threshold != nil {
		th = *threshold
	}

	predictions := r.predict(frame, th)

	updated, flagged := 0, 0
	for _, p := range predictions {
		ok, err := r.episodes.UpdatePrediction(ctx, p.Episode, p.Label, p.Probability)
		if err != nil {
			return updated, flagged, fmt.Errorf("failed to store prediction for episode %d: %w", p.Episode, err)
		}
		if !ok {
			r.log.Debug("scored episode not in store, skipped", "episode", p.Episode)
			continue
		}
		if p.Label == 1 {
			r.log.Info("extended stay predicted", "episode", p.Episode, "probability", p.Probability)
			flagged++
		}
		updated++
	}
	r.log.Info("scoring complete", "scored", len(predictions), "updated", updated, "flagged", flagged, "threshold", th)
	return updated, flagged, nil
}

// validateContract reports by name what the built frame is missing and
// what it carries beyond the model's declared columns.
func (r *Runner) validateContract(frame *Frame) error {
	have := make(map[string]bool, len(frame.Columns))
	for _, c := range frame.Columns {
		have[c] = true
	}
	want := make(map[string]bool, len(r.artifact.FeatureColumns))
	for _, c := range r.artifact.FeatureColumns {
		want[c] = true
	}

	var missing, extra []string
	for _, c := range r.artifact.FeatureColumns {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	for _, c := range frame.Columns {
		if !want[c] {
			extra = append(extra, c)
		}
	}
	if len(missing) > 0 || len(extra) > 0 {
		return fmt.Errorf("feature contract mismatch: missing %v, extra %v", missing, extra)
	}
	return nil
}

func (r *Runner) predict(frame *Frame, threshold float64) []Prediction {
	predictions := make([]Prediction, 0, len(frame.Rows))
	for _, row := range frame.Rows {
		values := make(map[string]float64, len(r.artifact.FeatureColumns))
		for _, col := range r.artifact.FeatureColumns {
			if categoricalColumns[col] {
				values[col] = r.artifact.Encode(col, row.Categorical[col])
			} else {
				values[col] = row.Numeric[col]
			}
		}
		proba := r.artifact.PredictProba(values)
		label := 0
		if proba >= threshold {
			label = 1
		}
		predictions = append(predictions, Prediction{
			Episode:     row.Episode,
			Label:       label,
			Probability: proba,
		})
	}
	return predictions
}
