// Package datasource loads the daily marketplace quote table. The on-disk
// contract is one CSV row per (date, good_id) with per-venue quote
// columns: {VENUE}_sell_price, {VENUE}_buy_price, {VENUE}_sell_num and
// {VENUE}_buy_num.
package datasource

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/marketloop/skinsim/internal/logger"
	"github.com/marketloop/skinsim/internal/types"
	"github.com/marketloop/skinsim/pkg/errors"
)

const quotesView = "quotes"

// DuckDBDataSource reads quote CSVs through an in-memory DuckDB view, so
// the date parsing and type sniffing stay inside the database.
type DuckDBDataSource struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
	venues []string
}

// NewDataSource opens an in-memory DuckDB instance for the given venues.
func NewDataSource(venues []string, logger *logger.Logger) (*DuckDBDataSource, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTableSourceNotFound, "failed to open duckdb", err)
	}

	return &DuckDBDataSource{
		db:     db,
		logger: logger,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		venues: venues,
	}, nil
}

// Initialize points the view at a CSV file and runs the schema check.
// A missing required column is fatal, not skippable.
func (d *DuckDBDataSource) Initialize(path string) error {
	d.logger.Debug("Initializing quote data source", zap.String("path", path))

	if _, err := d.db.Exec(fmt.Sprintf(`DROP VIEW IF EXISTS %s;`, quotesView)); err != nil {
		return errors.Wrap(errors.ErrCodeTableQueryFailed, "failed to drop existing view", err)
	}

	// CREATE VIEW has no placeholder support; the path is interpolated.
	query := fmt.Sprintf(`
		CREATE VIEW %s AS
		SELECT * FROM read_csv_auto('%s', header=true);
	`, quotesView, path)

	if _, err := d.db.Exec(query); err != nil {
		return errors.Wrap(errors.ErrCodeTableSourceNotFound, "failed to read csv", err)
	}

	return d.checkSchema()
}

// requiredColumns is the full set the table contract demands.
func (d *DuckDBDataSource) requiredColumns() []string {
	columns := []string{"date", "good_id"}
	for _, venue := range d.venues {
		columns = append(columns,
			venue+"_sell_price",
			venue+"_buy_price",
			venue+"_sell_num",
			venue+"_buy_num")
	}

	return columns
}

func (d *DuckDBDataSource) checkSchema() error {
	rows, err := d.sq.Select("column_name").
		From("information_schema.columns").
		Where(squirrel.Eq{"table_name": quotesView}).
		RunWith(d.db).
		Query()
	if err != nil {
		return errors.Wrap(errors.ErrCodeTableQueryFailed, "failed to inspect schema", err)
	}
	defer rows.Close()

	present := make(map[string]bool)

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return errors.Wrap(errors.ErrCodeTableQueryFailed, "failed to scan schema row", err)
		}

		present[name] = true
	}

	if err := rows.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeTableQueryFailed, "failed to iterate schema rows", err)
	}

	for _, column := range d.requiredColumns() {
		if !present[column] {
			return errors.Newf(errors.ErrCodeTableSchemaInvalid, "input table is missing required column %q", column)
		}
	}

	return nil
}

// Count returns the number of quote rows.
func (d *DuckDBDataSource) Count() (int, error) {
	var count int
	if err := d.db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %s`, quotesView)).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeTableQueryFailed, "failed to count rows", err)
	}

	return count, nil
}

// ReadAll loads every row ordered by date then item id and maps it into
// observations. Non-positive prices become absent quotes, matching the
// upstream scrapers that emit 0 for venues with no listing.
func (d *DuckDBDataSource) ReadAll() ([]types.Observation, error) {
	columns := []string{"CAST(date AS TIMESTAMP) AS date", "CAST(good_id AS VARCHAR) AS good_id"}
	for _, venue := range d.venues {
		columns = append(columns,
			venue+"_sell_price",
			venue+"_buy_price",
			venue+"_sell_num",
			venue+"_buy_num")
	}

	rows, err := d.sq.Select(columns...).
		From(quotesView).
		OrderBy("date", "good_id").
		RunWith(d.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTableQueryFailed, "failed to query quotes", err)
	}
	defer rows.Close()

	var out []types.Observation

	for rows.Next() {
		var (
			date   time.Time
			goodID string
		)

		venueVals := make([]sql.NullFloat64, 4*len(d.venues))

		dest := []any{&date, &goodID}
		for i := range venueVals {
			dest = append(dest, &venueVals[i])
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, errors.Wrap(errors.ErrCodeTableQueryFailed, "failed to scan quote row", err)
		}

		obs := types.Observation{
			ItemID: goodID,
			Date:   date.UTC().Truncate(24 * time.Hour),
			Quotes: make(map[string]types.VenueQuote, len(d.venues)),
		}

		for i, venue := range d.venues {
			base := 4 * i
			obs.Quotes[venue] = types.VenueQuote{
				SellPrice: positivePrice(venueVals[base]),
				BuyPrice:  positivePrice(venueVals[base+1]),
				SellQty:   floatOrZero(venueVals[base+2]),
				BuyQty:    floatOrZero(venueVals[base+3]),
			}
		}

		out = append(out, obs)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeTableQueryFailed, "failed to iterate quote rows", err)
	}

	if len(out) == 0 {
		return nil, errors.New(errors.ErrCodeTableEmpty, "input table has no rows")
	}

	d.logger.Info("Loaded quote table", zap.Int("rows", len(out)))

	return out, nil
}

// Close releases the database.
func (d *DuckDBDataSource) Close() error {
	return d.db.Close()
}

func positivePrice(v sql.NullFloat64) optional.Option[float64] {
	if !v.Valid || v.Float64 <= 0 {
		return optional.None[float64]()
	}

	return optional.Some(v.Float64)
}

func floatOrZero(v sql.NullFloat64) float64 {
	if !v.Valid {
		return 0
	}

	return v.Float64
}
