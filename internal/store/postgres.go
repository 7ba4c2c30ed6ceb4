package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/pantrybase/insight-cli/internal/db"
	"github.com/pantrybase/insight-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const insightColumns = `id, barcode, flavor, type, value, value_tag, data, source_image,
	annotation, n_votes, username, automatic_processing, process_after, completed_at,
	predictor, predictor_version, lc, created_at, updated_at`

const predictionColumns = `id, barcode, flavor, type, value, value_tag, data, confidence,
	predictor, predictor_version, automatic_processing, source_image, created_at`

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot processing-loop operations.
var preparedStatements = map[string]string{
	"list_due_insights": `SELECT ` + insightColumns + ` FROM product_insights
		WHERE annotation IS NULL AND automatic_processing AND process_after <= $1
		ORDER BY created_at, id LIMIT $2`,
	"lock_insight": `SELECT ` + insightColumns + ` FROM product_insights WHERE id = $1 FOR UPDATE`,
	"save_annotation": `UPDATE product_insights
		SET annotation = $1, completed_at = $2, value = $3, value_tag = $4, data = $5,
		    n_votes = $6, username = $7, updated_at = $8
		WHERE id = $9`,
	"latest_prediction": `SELECT ` + predictionColumns + ` FROM predictions
		WHERE type = $1 AND source_image = $2 ORDER BY created_at DESC, id DESC LIMIT 1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS predictions (
	id                   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	barcode              TEXT NOT NULL,
	flavor               TEXT NOT NULL DEFAULT 'food',
	type                 TEXT NOT NULL,
	value                TEXT NOT NULL DEFAULT '',
	value_tag            TEXT NOT NULL DEFAULT '',
	data                 JSONB,
	confidence           DOUBLE PRECISION,
	predictor            TEXT NOT NULL DEFAULT '',
	predictor_version    TEXT NOT NULL DEFAULT '',
	automatic_processing BOOLEAN NOT NULL DEFAULT false,
	source_image         TEXT NOT NULL DEFAULT '',
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS product_insights (
	id                   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	barcode              TEXT NOT NULL,
	flavor               TEXT NOT NULL DEFAULT 'food',
	type                 TEXT NOT NULL,
	value                TEXT NOT NULL DEFAULT '',
	value_tag            TEXT NOT NULL DEFAULT '',
	data                 JSONB,
	source_image         TEXT NOT NULL DEFAULT '',
	annotation           INTEGER,
	n_votes              INTEGER NOT NULL DEFAULT 0,
	username             TEXT NOT NULL DEFAULT '',
	automatic_processing BOOLEAN NOT NULL DEFAULT false,
	process_after        TIMESTAMPTZ,
	completed_at         TIMESTAMPTZ,
	predictor            TEXT NOT NULL DEFAULT '',
	predictor_version    TEXT NOT NULL DEFAULT '',
	lc                   TEXT[],
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_predictions_barcode ON predictions(barcode);
CREATE INDEX IF NOT EXISTS idx_predictions_type_image ON predictions(type, source_image, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_insights_barcode_type ON product_insights(barcode, type);
CREATE INDEX IF NOT EXISTS idx_insights_type ON product_insights(type);
CREATE INDEX IF NOT EXISTS idx_insights_due ON product_insights(automatic_processing, process_after)
	WHERE annotation IS NULL;
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreatePredictions(ctx context.Context, preds []model.Prediction) (int, error) {
	if len(preds) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(preds))
	for i := range preds {
		p := &preds[i]
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now().UTC()
		}

		var dataJSON any
		if p.Data != nil {
			b, err := json.Marshal(p.Data)
			if err != nil {
				return 0, eris.Wrap(err, "postgres: marshal prediction data")
			}
			dataJSON = string(b)
		}

		rows = append(rows, []any{
			p.ID, p.Barcode, string(p.Flavor), string(p.Type), p.Value, p.ValueTag,
			dataJSON, p.Confidence, p.Predictor, p.PredictorVersion,
			p.AutomaticProcessing, p.SourceImage, p.CreatedAt,
		})
	}

	n, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"predictions"},
		[]string{"id", "barcode", "flavor", "type", "value", "value_tag", "data", "confidence",
			"predictor", "predictor_version", "automatic_processing", "source_image", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: copy predictions")
	}
	return int(n), nil
}

func (s *PostgresStore) LatestPrediction(ctx context.Context, ptype model.PredictionType, sourceImage string) (*model.Prediction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+predictionColumns+` FROM predictions
		 WHERE type = $1 AND source_image = $2 ORDER BY created_at DESC, id DESC LIMIT 1`,
		string(ptype), sourceImage,
	)

	p, err := scanPrediction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: latest prediction")
	}
	return p, nil
}

func (s *PostgresStore) CreateInsight(ctx context.Context, insight *model.ProductInsight) error {
	if insight.ID == "" {
		insight.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if insight.CreatedAt.IsZero() {
		insight.CreatedAt = now
	}
	insight.UpdatedAt = now

	var dataJSON any
	if insight.Data != nil {
		b, err := json.Marshal(insight.Data)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal insight data")
		}
		dataJSON = string(b)
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO product_insights (`+insightColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		insight.ID, insight.Barcode, string(insight.Flavor), string(insight.Type),
		insight.Value, insight.ValueTag, dataJSON, insight.SourceImage,
		insight.Annotation, insight.NVotes, insight.Username, insight.AutomaticProcessing,
		insight.ProcessAfter, insight.CompletedAt, insight.Predictor, insight.PredictorVersion,
		insight.Lc, insight.CreatedAt, insight.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert insight")
}

func (s *PostgresStore) GetInsight(ctx context.Context, id string) (*model.ProductInsight, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+insightColumns+` FROM product_insights WHERE id = $1`, id)

	insight, err := scanInsight(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get insight %s", id)
	}
	return insight, nil
}

// insightWhere builds the WHERE clause shared by ListInsights and
// CountInsights.
func insightWhere(filter InsightFilter) (string, []any) {
	query := ` WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Barcode != "" {
		query += fmt.Sprintf(` AND barcode = $%d`, argIdx)
		args = append(args, filter.Barcode)
		argIdx++
	}
	if filter.Flavor != "" {
		query += fmt.Sprintf(` AND flavor = $%d`, argIdx)
		args = append(args, string(filter.Flavor))
		argIdx++
	}
	if filter.Type != "" {
		query += fmt.Sprintf(` AND type = $%d`, argIdx)
		args = append(args, string(filter.Type))
		argIdx++
	}
	if filter.Annotated != nil {
		if *filter.Annotated {
			query += ` AND annotation IS NOT NULL`
		} else {
			query += ` AND annotation IS NULL`
		}
	}
	if filter.Lc != "" {
		query += fmt.Sprintf(` AND $%d = ANY(lc)`, argIdx)
		args = append(args, filter.Lc)
		argIdx++
	}
	return query, args
}

func (s *PostgresStore) ListInsights(ctx context.Context, filter InsightFilter) ([]model.ProductInsight, error) {
	where, args := insightWhere(filter)
	query := `SELECT ` + insightColumns + ` FROM product_insights` + where + ` ORDER BY created_at DESC`
	argIdx := len(args) + 1

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list insights")
	}
	defer rows.Close()

	var insights []model.ProductInsight
	for rows.Next() {
		insight, err := scanInsight(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan insight")
		}
		insights = append(insights, *insight)
	}
	return insights, eris.Wrap(rows.Err(), "postgres: list insights iterate")
}

func (s *PostgresStore) CountInsights(ctx context.Context, filter InsightFilter) (int, error) {
	where, args := insightWhere(filter)

	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM product_insights`+where, args...).Scan(&count)
	return count, eris.Wrap(err, "postgres: count insights")
}

func (s *PostgresStore) ListDueInsights(ctx context.Context, now time.Time, limit int) ([]model.ProductInsight, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+insightColumns+` FROM product_insights
		 WHERE annotation IS NULL AND automatic_processing AND process_after <= $1
		 ORDER BY created_at, id LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list due insights")
	}
	defer rows.Close()

	var insights []model.ProductInsight
	for rows.Next() {
		insight, err := scanInsight(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan due insight")
		}
		insights = append(insights, *insight)
	}
	return insights, eris.Wrap(rows.Err(), "postgres: list due insights iterate")
}

func (s *PostgresStore) PendingInsightExists(ctx context.Context, barcode string, flavor model.Flavor, itype model.InsightType, valueTag string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM product_insights
		 WHERE barcode = $1 AND flavor = $2 AND type = $3 AND value_tag = $4 AND annotation IS NULL
		 LIMIT 1`,
		barcode, string(flavor), string(itype), valueTag,
	).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, eris.Wrap(err, "postgres: pending insight exists")
	}
	return true, nil
}

func (s *PostgresStore) DeleteStaleInsights(ctx context.Context, barcode string, flavor model.Flavor, itype model.InsightType, keepVersion string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM product_insights
		 WHERE barcode = $1 AND flavor = $2 AND type = $3
		   AND annotation IS NULL AND n_votes = 0
		   AND predictor_version IS DISTINCT FROM $4`,
		barcode, string(flavor), string(itype), keepVersion,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete stale insights")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin")
	}
	return &postgresTx{tx: tx}, nil
}

// postgresTx implements Tx over a pgx transaction.
type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) LockInsight(ctx context.Context, id string) (*model.ProductInsight, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+insightColumns+` FROM product_insights WHERE id = $1 FOR UPDATE`, id)

	insight, err := scanInsight(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: lock insight %s", id)
	}
	return insight, nil
}

func (t *postgresTx) SaveAnnotation(ctx context.Context, insight *model.ProductInsight) error {
	var dataJSON any
	if insight.Data != nil {
		b, err := json.Marshal(insight.Data)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal insight data")
		}
		dataJSON = string(b)
	}

	tag, err := t.tx.Exec(ctx,
		`UPDATE product_insights
		 SET annotation = $1, completed_at = $2, value = $3, value_tag = $4, data = $5,
		     n_votes = $6, username = $7, updated_at = $8
		 WHERE id = $9`,
		insight.Annotation, insight.CompletedAt, insight.Value, insight.ValueTag, dataJSON,
		insight.NVotes, insight.Username, time.Now().UTC(), insight.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save annotation %s", insight.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("insight not found: %s", insight.ID)
	}
	return nil
}

func (t *postgresTx) Commit(ctx context.Context) error {
	return eris.Wrap(t.tx.Commit(ctx), "postgres: commit")
}

func (t *postgresTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return eris.Wrap(err, "postgres: rollback")
	}
	return nil
}

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanInsight(row rowScanner) (*model.ProductInsight, error) {
	var i model.ProductInsight
	var flavor, itype string
	var dataJSON *[]byte

	if err := row.Scan(
		&i.ID, &i.Barcode, &flavor, &itype, &i.Value, &i.ValueTag, &dataJSON, &i.SourceImage,
		&i.Annotation, &i.NVotes, &i.Username, &i.AutomaticProcessing, &i.ProcessAfter, &i.CompletedAt,
		&i.Predictor, &i.PredictorVersion, &i.Lc, &i.CreatedAt, &i.UpdatedAt,
	); err != nil {
		return nil, err
	}

	i.Flavor = model.Flavor(flavor)
	i.Type = model.InsightType(itype)
	if dataJSON != nil {
		if err := json.Unmarshal(*dataJSON, &i.Data); err != nil {
			return nil, eris.Wrap(err, "unmarshal insight data")
		}
	}
	return &i, nil
}

func scanPrediction(row rowScanner) (*model.Prediction, error) {
	var p model.Prediction
	var flavor, ptype string
	var dataJSON *[]byte

	if err := row.Scan(
		&p.ID, &p.Barcode, &flavor, &ptype, &p.Value, &p.ValueTag, &dataJSON, &p.Confidence,
		&p.Predictor, &p.PredictorVersion, &p.AutomaticProcessing, &p.SourceImage, &p.CreatedAt,
	); err != nil {
		return nil, err
	}

	p.Flavor = model.Flavor(flavor)
	p.Type = model.PredictionType(ptype)
	if dataJSON != nil {
		if err := json.Unmarshal(*dataJSON, &p.Data); err != nil {
			return nil, eris.Wrap(err, "unmarshal prediction data")
		}
	}
	return &p, nil
}
