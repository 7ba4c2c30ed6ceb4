package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/pantrybase/insight-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS predictions (
	id                   TEXT PRIMARY KEY,
	barcode              TEXT NOT NULL,
	flavor               TEXT NOT NULL DEFAULT 'food',
	type                 TEXT NOT NULL,
	value                TEXT NOT NULL DEFAULT '',
	value_tag            TEXT NOT NULL DEFAULT '',
	data                 TEXT,
	confidence           REAL,
	predictor            TEXT NOT NULL DEFAULT '',
	predictor_version    TEXT NOT NULL DEFAULT '',
	automatic_processing INTEGER NOT NULL DEFAULT 0,
	source_image         TEXT NOT NULL DEFAULT '',
	created_at           DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS product_insights (
	id                   TEXT PRIMARY KEY,
	barcode              TEXT NOT NULL,
	flavor               TEXT NOT NULL DEFAULT 'food',
	type                 TEXT NOT NULL,
	value                TEXT NOT NULL DEFAULT '',
	value_tag            TEXT NOT NULL DEFAULT '',
	data                 TEXT,
	source_image         TEXT NOT NULL DEFAULT '',
	annotation           INTEGER,
	n_votes              INTEGER NOT NULL DEFAULT 0,
	username             TEXT NOT NULL DEFAULT '',
	automatic_processing INTEGER NOT NULL DEFAULT 0,
	process_after        DATETIME,
	completed_at         DATETIME,
	predictor            TEXT NOT NULL DEFAULT '',
	predictor_version    TEXT NOT NULL DEFAULT '',
	lc                   TEXT,
	created_at           DATETIME NOT NULL,
	updated_at           DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_predictions_barcode ON predictions(barcode);
CREATE INDEX IF NOT EXISTS idx_predictions_type_image ON predictions(type, source_image, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_insights_barcode_type ON product_insights(barcode, type);
CREATE INDEX IF NOT EXISTS idx_insights_type ON product_insights(type);
CREATE INDEX IF NOT EXISTS idx_insights_due ON product_insights(automatic_processing, process_after)
	WHERE annotation IS NULL;
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreatePredictions(ctx context.Context, preds []model.Prediction) (int, error) {
	if len(preds) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin predictions")
	}
	defer tx.Rollback() //nolint:errcheck

	created := 0
	for i := range preds {
		p := &preds[i]
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now().UTC()
		}

		dataJSON, err := marshalJSONColumn(p.Data)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: marshal prediction data")
		}

		var confidence sql.NullFloat64
		if p.Confidence != nil {
			confidence = sql.NullFloat64{Float64: *p.Confidence, Valid: true}
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO predictions (id, barcode, flavor, type, value, value_tag, data, confidence,
			   predictor, predictor_version, automatic_processing, source_image, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Barcode, string(p.Flavor), string(p.Type), p.Value, p.ValueTag, dataJSON,
			confidence, p.Predictor, p.PredictorVersion, p.AutomaticProcessing, p.SourceImage, p.CreatedAt,
		)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: insert prediction")
		}
		created++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit predictions")
	}
	return created, nil
}

func (s *SQLiteStore) LatestPrediction(ctx context.Context, ptype model.PredictionType, sourceImage string) (*model.Prediction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, barcode, flavor, type, value, value_tag, data, confidence,
		        predictor, predictor_version, automatic_processing, source_image, created_at
		 FROM predictions
		 WHERE type = ? AND source_image = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		string(ptype), sourceImage,
	)

	p, err := scanSQLitePrediction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: latest prediction")
	}
	return p, nil
}

func (s *SQLiteStore) CreateInsight(ctx context.Context, insight *model.ProductInsight) error {
	if insight.ID == "" {
		insight.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if insight.CreatedAt.IsZero() {
		insight.CreatedAt = now
	}
	insight.UpdatedAt = now

	dataJSON, err := marshalJSONColumn(insight.Data)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal insight data")
	}
	lcJSON, err := marshalJSONColumn(insight.Lc)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal insight lc")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO product_insights (id, barcode, flavor, type, value, value_tag, data, source_image,
		   annotation, n_votes, username, automatic_processing, process_after, completed_at,
		   predictor, predictor_version, lc, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		insight.ID, insight.Barcode, string(insight.Flavor), string(insight.Type),
		insight.Value, insight.ValueTag, dataJSON, insight.SourceImage,
		nullableInt(insight.Annotation), insight.NVotes, insight.Username, insight.AutomaticProcessing,
		nullableTime(insight.ProcessAfter), nullableTime(insight.CompletedAt),
		insight.Predictor, insight.PredictorVersion, lcJSON, insight.CreatedAt, insight.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert insight")
}

func (s *SQLiteStore) GetInsight(ctx context.Context, id string) (*model.ProductInsight, error) {
	row := s.db.QueryRowContext(ctx, selectInsightSQLite+` WHERE id = ?`, id)

	insight, err := scanSQLiteInsight(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get insight %s", id)
	}
	return insight, nil
}

const selectInsightSQLite = `SELECT id, barcode, flavor, type, value, value_tag, data, source_image,
	annotation, n_votes, username, automatic_processing, process_after, completed_at,
	predictor, predictor_version, lc, created_at, updated_at
 FROM product_insights`

// sqliteInsightWhere builds the WHERE clause shared by ListInsights and
// CountInsights. The lc filter matches the JSON-encoded language array.
func sqliteInsightWhere(filter InsightFilter) (string, []any) {
	query := ` WHERE 1=1`
	args := []any{}

	if filter.Barcode != "" {
		query += ` AND barcode = ?`
		args = append(args, filter.Barcode)
	}
	if filter.Flavor != "" {
		query += ` AND flavor = ?`
		args = append(args, string(filter.Flavor))
	}
	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(filter.Type))
	}
	if filter.Annotated != nil {
		if *filter.Annotated {
			query += ` AND annotation IS NOT NULL`
		} else {
			query += ` AND annotation IS NULL`
		}
	}
	if filter.Lc != "" {
		query += ` AND lc LIKE ?`
		args = append(args, fmt.Sprintf(`%%"%s"%%`, filter.Lc))
	}
	return query, args
}

func (s *SQLiteStore) ListInsights(ctx context.Context, filter InsightFilter) ([]model.ProductInsight, error) {
	where, args := sqliteInsightWhere(filter)
	query := selectInsightSQLite + where + ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list insights")
	}
	defer rows.Close()

	var insights []model.ProductInsight
	for rows.Next() {
		insight, err := scanSQLiteInsight(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan insight")
		}
		insights = append(insights, *insight)
	}
	return insights, eris.Wrap(rows.Err(), "sqlite: list insights iterate")
}

func (s *SQLiteStore) CountInsights(ctx context.Context, filter InsightFilter) (int, error) {
	where, args := sqliteInsightWhere(filter)

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM product_insights`+where, args...).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count insights")
}

func (s *SQLiteStore) ListDueInsights(ctx context.Context, now time.Time, limit int) ([]model.ProductInsight, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		selectInsightSQLite+`
		 WHERE annotation IS NULL AND automatic_processing = 1 AND process_after <= ?
		 ORDER BY created_at, id LIMIT ?`,
		now.UTC(), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list due insights")
	}
	defer rows.Close()

	var insights []model.ProductInsight
	for rows.Next() {
		insight, err := scanSQLiteInsight(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan due insight")
		}
		insights = append(insights, *insight)
	}
	return insights, eris.Wrap(rows.Err(), "sqlite: list due insights iterate")
}

func (s *SQLiteStore) PendingInsightExists(ctx context.Context, barcode string, flavor model.Flavor, itype model.InsightType, valueTag string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM product_insights
		 WHERE barcode = ? AND flavor = ? AND type = ? AND value_tag = ? AND annotation IS NULL
		 LIMIT 1`,
		barcode, string(flavor), string(itype), valueTag,
	).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, eris.Wrap(err, "sqlite: pending insight exists")
	}
	return true, nil
}

func (s *SQLiteStore) DeleteStaleInsights(ctx context.Context, barcode string, flavor model.Flavor, itype model.InsightType, keepVersion string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM product_insights
		 WHERE barcode = ? AND flavor = ? AND type = ?
		   AND annotation IS NULL AND n_votes = 0
		   AND predictor_version IS NOT ?`,
		barcode, string(flavor), string(itype), keepVersion,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete stale insights")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete stale insights rows affected")
	}
	return int(n), nil
}

func (s *SQLiteStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin")
	}
	return &sqliteTx{tx: tx}, nil
}

// sqliteTx implements Tx over a database/sql transaction. SQLite locks
// the whole database on write, so LockInsight is a plain re-read.
type sqliteTx struct {
	tx   *sql.Tx
	done bool
}

func (t *sqliteTx) LockInsight(ctx context.Context, id string) (*model.ProductInsight, error) {
	row := t.tx.QueryRowContext(ctx, selectInsightSQLite+` WHERE id = ?`, id)

	insight, err := scanSQLiteInsight(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: lock insight %s", id)
	}
	return insight, nil
}

func (t *sqliteTx) SaveAnnotation(ctx context.Context, insight *model.ProductInsight) error {
	dataJSON, err := marshalJSONColumn(insight.Data)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal insight data")
	}

	res, err := t.tx.ExecContext(ctx,
		`UPDATE product_insights
		 SET annotation = ?, completed_at = ?, value = ?, value_tag = ?, data = ?,
		     n_votes = ?, username = ?, updated_at = ?
		 WHERE id = ?`,
		nullableInt(insight.Annotation), nullableTime(insight.CompletedAt),
		insight.Value, insight.ValueTag, dataJSON,
		insight.NVotes, insight.Username, time.Now().UTC(), insight.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save annotation %s", insight.ID)
	}
	return checkRowsAffected(res, "insight", insight.ID)
}

func (t *sqliteTx) Commit(ctx context.Context) error {
	t.done = true
	return eris.Wrap(t.tx.Commit(), "sqlite: commit")
}

func (t *sqliteTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	return eris.Wrap(t.tx.Rollback(), "sqlite: rollback")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s", id)
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

// marshalJSONColumn encodes v for a nullable TEXT column; nil stays NULL.
func marshalJSONColumn(v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		if val == nil {
			return nil, nil
		}
	case []string:
		if val == nil {
			return nil, nil
		}
	case nil:
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func scanSQLiteInsight(row interface{ Scan(dest ...any) error }) (*model.ProductInsight, error) {
	var i model.ProductInsight
	var flavor, itype string
	var dataJSON, lcJSON sql.NullString
	var annotation sql.NullInt64
	var processAfter, completedAt sql.NullTime

	if err := row.Scan(
		&i.ID, &i.Barcode, &flavor, &itype, &i.Value, &i.ValueTag, &dataJSON, &i.SourceImage,
		&annotation, &i.NVotes, &i.Username, &i.AutomaticProcessing, &processAfter, &completedAt,
		&i.Predictor, &i.PredictorVersion, &lcJSON, &i.CreatedAt, &i.UpdatedAt,
	); err != nil {
		return nil, err
	}

	i.Flavor = model.Flavor(flavor)
	i.Type = model.InsightType(itype)
	if annotation.Valid {
		v := int(annotation.Int64)
		i.Annotation = &v
	}
	if processAfter.Valid {
		t := processAfter.Time
		i.ProcessAfter = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		i.CompletedAt = &t
	}
	if dataJSON.Valid {
		if err := json.Unmarshal([]byte(dataJSON.String), &i.Data); err != nil {
			return nil, eris.Wrap(err, "unmarshal insight data")
		}
	}
	if lcJSON.Valid {
		if err := json.Unmarshal([]byte(lcJSON.String), &i.Lc); err != nil {
			return nil, eris.Wrap(err, "unmarshal insight lc")
		}
	}
	return &i, nil
}

func scanSQLitePrediction(row interface{ Scan(dest ...any) error }) (*model.Prediction, error) {
	var p model.Prediction
	var flavor, ptype string
	var dataJSON sql.NullString
	var confidence sql.NullFloat64

	if err := row.Scan(
		&p.ID, &p.Barcode, &flavor, &ptype, &p.Value, &p.ValueTag, &dataJSON, &confidence,
		&p.Predictor, &p.PredictorVersion, &p.AutomaticProcessing, &p.SourceImage, &p.CreatedAt,
	); err != nil {
		return nil, err
	}

	p.Flavor = model.Flavor(flavor)
	p.Type = model.PredictionType(ptype)
	if confidence.Valid {
		v := confidence.Float64
		p.Confidence = &v
	}
	if dataJSON.Valid {
		if err := json.Unmarshal([]byte(dataJSON.String), &p.Data); err != nil {
			return nil, eris.Wrap(err, "unmarshal prediction data")
		}
	}
	return &p, nil
}
