package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/i474232898/wildfire-risk-assessment/internal/assessment"
	"github.com/i474232898/wildfire-risk-assessment/internal/common"
)

const schema = `
CREATE TABLE IF NOT EXISTS risk_assessments (
	id              UUID PRIMARY KEY,
	assessed_at     TIMESTAMPTZ NOT NULL,
	outcome         TEXT NOT NULL,
	risk_level      TEXT NOT NULL,
	probability     DOUBLE PRECISION NOT NULL,
	spread_index    DOUBLE PRECISION NOT NULL,
	reasoning       TEXT NOT NULL,
	recommendations JSONB NOT NULL,
	parameters      JSONB NOT NULL,
	latency_ms      BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS risk_assessments_assessed_at_idx ON risk_assessments (assessed_at DESC);`

// assessmentRow is the persisted form of an assessment. JSON columns travel
// as text; lib/pq would encode []byte as bytea.
type assessmentRow struct {
	ID              string    `db:"id"`
	AssessedAt      time.Time `db:"assessed_at"`
	Outcome         string    `db:"outcome"`
	RiskLevel       string    `db:"risk_level"`
	Probability     float64   `db:"probability"`
	SpreadIndex     float64   `db:"spread_index"`
	Reasoning       string    `db:"reasoning"`
	Recommendations string    `db:"recommendations"`
	Parameters      string    `db:"parameters"`
	LatencyMS       int64     `db:"latency_ms"`
}

func toRow(a assessment.Assessment) (assessmentRow, error) {
	recs := a.Result.Recommendations
	if recs == nil {
		recs = []string{}
	}
	recsJSON, err := json.Marshal(recs)
	if err != nil {
		return assessmentRow{}, fmt.Errorf("failed to marshal recommendations: %w", err)
	}
	paramsJSON, err := json.Marshal(a.Parameters)
	if err != nil {
		return assessmentRow{}, fmt.Errorf("failed to marshal parameters: %w", err)
	}

	return assessmentRow{
		ID:              a.ID,
		AssessedAt:      a.AssessedAt.UTC(),
		Outcome:         string(a.Outcome),
		RiskLevel:       string(a.Result.RiskLevel),
		Probability:     a.Result.Probability,
		SpreadIndex:     a.Result.SpreadIndex,
		Reasoning:       a.Result.Reasoning,
		Recommendations: string(recsJSON),
		Parameters:      string(paramsJSON),
		LatencyMS:       a.Latency.Milliseconds(),
	}, nil
}

func (r assessmentRow) toAssessment() (assessment.Assessment, error) {
	a := assessment.Assessment{
		ID:         r.ID,
		AssessedAt: r.AssessedAt.UTC(),
		Outcome:    assessment.Outcome(r.Outcome),
		Latency:    time.Duration(r.LatencyMS) * time.Millisecond,
		Result: assessment.PredictionResult{
			RiskLevel:   assessment.RiskLevel(r.RiskLevel),
			Probability: r.Probability,
			SpreadIndex: r.SpreadIndex,
			Reasoning:   r.Reasoning,
		},
	}
	if !a.Result.RiskLevel.Valid() {
		return a, fmt.Errorf("assessment %s has unknown risk level %q", r.ID, r.RiskLevel)
	}
	if err := json.Unmarshal([]byte(r.Recommendations), &a.Result.Recommendations); err != nil {
		return a, fmt.Errorf("failed to unmarshal recommendations: %w", err)
	}
	if err := json.Unmarshal([]byte(r.Parameters), &a.Parameters); err != nil {
		return a, fmt.Errorf("failed to unmarshal parameters: %w", err)
	}
	return a, nil
}

// PostgresRecorder persists every completed assessment and serves the most
// recent ones as a trend.
type PostgresRecorder struct {
	db         *sqlx.DB
	trendLimit int
}

// OpenPostgres connects and verifies the connection.
func OpenPostgres(ctx context.Context, connStr string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}

func NewPostgresRecorder(db *sqlx.DB, trendLimit int) *PostgresRecorder {
	if trendLimit <= 0 {
		trendLimit = 7
	}
	return &PostgresRecorder{db: db, trendLimit: trendLimit}
}

// EnsureSchema creates the assessments table if it does not exist.
func (r *PostgresRecorder) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (r *PostgresRecorder) Record(ctx context.Context, a assessment.Assessment) error {
	const query = `
		INSERT INTO risk_assessments (
			id, assessed_at, outcome, risk_level, probability, spread_index,
			reasoning, recommendations, parameters, latency_ms
		) VALUES (
			:id, :assessed_at, :outcome, :risk_level, :probability, :spread_index,
			:reasoning, :recommendations, :parameters, :latency_ms
		)
		ON CONFLICT (id) DO NOTHING`

	row, err := toRow(a)
	if err != nil {
		return err
	}
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to insert assessment %s: %w", a.ID, err)
	}
	return nil
}

// Recent returns up to limit assessments, oldest first.
func (r *PostgresRecorder) Recent(ctx context.Context, limit int) ([]assessment.Assessment, error) {
	const query = `
		SELECT * FROM (
			SELECT id, assessed_at, outcome, risk_level, probability, spread_index,
			       reasoning, recommendations, parameters, latency_ms
			FROM risk_assessments
			ORDER BY assessed_at DESC
			LIMIT $1
		) recent
		ORDER BY assessed_at ASC`

	var rows []assessmentRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query assessments: %w", err)
	}

	out := make([]assessment.Assessment, 0, len(rows))
	for _, row := range rows {
		a, err := row.toAssessment()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *PostgresRecorder) Trend(ctx context.Context) ([]assessment.HistoricalDataPoint, error) {
	recent, err := r.Recent(ctx, r.trendLimit)
	if err != nil {
		return nil, err
	}

	points := make([]assessment.HistoricalDataPoint, 0, len(recent))
	for _, a := range recent {
		points = append(points, assessment.HistoricalDataPoint{
			Label:     a.AssessedAt.Format(time.RFC3339),
			RiskValue: common.Clamp(a.Result.Probability, 0, 100),
		})
	}
	return points, nil
}
