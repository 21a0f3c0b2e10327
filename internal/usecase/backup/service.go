package backup

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"             // also registers the postgres driver
	_ "github.com/mattn/go-sqlite3" // ensure sqlite driver available
)

const (
	defaultBatchSize = 512
	formatVersion    = 1
)

var errNoTablesSelected = errors.New("backup: no tables selected")

type ProgressReporter interface {
	StartTable(table string, total int)
	Increment(table string, delta int)
	FinishTable(table string)
}

type noopProgress struct{}

func (noopProgress) StartTable(string, int) {}
func (noopProgress) Increment(string, int)  {}
func (noopProgress) FinishTable(string)     {}

type Service struct {
	driver     string
	dsn        string
	batchSize  int
	tables     []tableSpec
	tableIndex map[string]*tableSpec
	schemaHash string
}

type Option func(*Service)

func WithBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// NewService constructs a backup service bound to the provided database driver and DSN.
func NewService(driver, dsn string, opts ...Option) (*Service, error) {
	driver = strings.TrimSpace(strings.ToLower(driver))
	if driver == "" {
		return nil, errors.New("backup: driver is required")
	}
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("backup: DSN is required")
	}

	svc := &Service{
		driver:     driver,
		dsn:        dsn,
		batchSize:  defaultBatchSize,
		tables:     backupTables,
		tableIndex: make(map[string]*tableSpec, len(backupTables)),
		schemaHash: computeSchemaHash(backupTables),
	}
	for i := range svc.tables {
		svc.tableIndex[svc.tables[i].Name] = &svc.tables[i]
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

type ExportOption func(*exportConfig)

type exportConfig struct {
	tables   []string
	reporter ProgressReporter
}

// WithTables restricts export to the provided table names (snake_case as in DB).
func WithTables(tables []string) ExportOption {
	return func(cfg *exportConfig) {
		if len(tables) == 0 {
			return
		}
		cfg.tables = append([]string{}, tables...)
	}
}

// WithProgressReporter registers a reporter that receives progress callbacks during export.
func WithProgressReporter(reporter ProgressReporter) ExportOption {
	return func(cfg *exportConfig) {
		cfg.reporter = reporter
	}
}

type ImportOption func(*importConfig)

type importConfig struct {
	tables []string
}

// WithImportTables restricts import to the provided table names.
func WithImportTables(tables []string) ImportOption {
	return func(cfg *importConfig) {
		if len(tables) == 0 {
			return
		}
		cfg.tables = append([]string{}, tables...)
	}
}

type record struct {
	Type       string         `json:"type"`
	Version    int            `json:"version,omitempty"`
	ExportedAt *time.Time     `json:"exported_at,omitempty"`
	SchemaHash string         `json:"schema_hash,omitempty"`
	Tables     []string       `json:"tables,omitempty"`
	RowCounts  map[string]int `json:"row_counts,omitempty"`
	Payload    any            `json:"payload,omitempty"`
}

type rawRecord struct {
	Type       string          `json:"type"`
	Version    int             `json:"version"`
	ExportedAt *time.Time      `json:"exported_at"`
	SchemaHash string          `json:"schema_hash"`
	Tables     []string        `json:"tables"`
	RowCounts  map[string]int  `json:"row_counts"`
	Payload    json.RawMessage `json:"payload"`
}

func (s *Service) Export(ctx context.Context, w io.Writer, opts ...ExportOption) error {
	cfg := exportConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	tables, err := s.selectTables(cfg.tables)
	if err != nil {
		return err
	}
	reporter := cfg.reporter
	if reporter == nil {
		reporter = noopProgress{}
	}

	db, err := s.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	counts := make(map[string]int, len(tables))
	for _, tbl := range tables {
		count, err := s.countTableRows(ctx, db, tbl.Name)
		if err != nil {
			return fmt.Errorf("count table %s: %w", tbl.Name, err)
		}
		counts[tbl.Name] = count
	}

	writer := bufio.NewWriter(w)
	defer writer.Flush()

	now := time.Now().UTC()
	meta := record{
		Type:       "meta",
		Version:    formatVersion,
		ExportedAt: &now,
		SchemaHash: s.schemaHash,
		Tables:     tableNames(tables),
		RowCounts:  counts,
	}
	if err := writeRecord(writer, meta); err != nil {
		return err
	}

	for _, tbl := range tables {
		total := counts[tbl.Name]
		reporter.StartTable(tbl.Name, total)
		if err := s.exportTable(ctx, db, tbl, reporter, writer); err != nil {
			return err
		}
		reporter.FinishTable(tbl.Name)
	}
	return writer.Flush()
}

func (s *Service) Import(ctx context.Context, r io.Reader, opts ...ImportOption) error {
	cfg := importConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	tables, err := s.selectTables(cfg.tables)
	if err != nil {
		return err
	}
	tableFilter := make(map[string]*tableSpec, len(tables))
	for _, tbl := range tables {
		tableFilter[tbl.Name] = tbl
	}

	db, err := s.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()

	br := bufio.NewReader(r)
	var (
		metaSeen bool
		meta     rawRecord
	)

	for {
		line, err := br.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read backup: %w", err)
		}
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			var rec rawRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				return fmt.Errorf("decode record: %w", err)
			}

			switch rec.Type {
			case "meta":
				metaSeen = true
				meta = rec
			default:
				tbl, ok := tableFilter[rec.Type]
				if !ok {
					// Skip records for tables not requested.
					break
				}
				if len(rec.Payload) == 0 {
					return fmt.Errorf("backup: missing payload for table %s", rec.Type)
				}
				if err := s.importRow(ctx, tx, tbl, rec.Payload); err != nil {
					return err
				}
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
	}

	if !metaSeen {
		return errors.New("backup: missing meta record")
	}
	if meta.Version != formatVersion {
		return fmt.Errorf("backup: unsupported format version %d", meta.Version)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	commit = true
	return nil
}

func (s *Service) exportTable(ctx context.Context, db *sql.DB, table *tableSpec, reporter ProgressReporter, w io.Writer) error {
	columns := table.columnNames()
	if len(columns) == 0 {
		return nil
	}
	orderBy := " ORDER BY " + strings.Join(table.ConflictCols, ", ")
	batch := s.batchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}

	for offset := 0; ; offset += batch {
		query := fmt.Sprintf("SELECT %s FROM %s%s LIMIT %d OFFSET %d",
			strings.Join(columns, ", "),
			table.Name,
			orderBy,
			batch,
			offset,
		)
		rows, err := db.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("query %s: %w", table.Name, err)
		}

		rowCount := 0
		for rows.Next() {
			dest := s.scanDest(table)
			if err := rows.Scan(dest...); err != nil {
				rows.Close()
				return fmt.Errorf("scan %s: %w", table.Name, err)
			}
			rowMap, err := s.convertRow(table, dest)
			if err != nil {
				rows.Close()
				return err
			}
			if err := writeRecord(w, record{Type: table.Name, Payload: rowMap}); err != nil {
				rows.Close()
				return err
			}
			reporter.Increment(table.Name, 1)
			rowCount++
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("iterate %s: %w", table.Name, err)
		}
		rows.Close()
		if rowCount < batch {
			break
		}
	}
	return nil
}

// scanDest builds scan targets for one row. String arrays need a pq
// scanner on postgres; everywhere else a generic slot suffices.
func (s *Service) scanDest(table *tableSpec) []any {
	dest := make([]any, len(table.Columns))
	for i, col := range table.Columns {
		if col.Kind == kindStrings && s.isPostgres() {
			dest[i] = new(pq.StringArray)
			continue
		}
		dest[i] = new(any)
	}
	return dest
}

func (s *Service) convertRow(table *tableSpec, dest []any) (map[string]any, error) {
	result := make(map[string]any, len(table.Columns))
	for i, col := range table.Columns {
		var value any
		switch d := dest[i].(type) {
		case *pq.StringArray:
			value = []string(*d)
		case *any:
			value = *d
		}
		converted, err := convertDBValue(&col, value)
		if err != nil {
			return nil, fmt.Errorf("convert %s.%s: %w", table.Name, col.Name, err)
		}
		result[col.Name] = converted
	}
	return result, nil
}

func convertDBValue(col *columnSpec, value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch v := value.(type) {
	case []byte:
		switch col.Kind {
		case kindJSON:
			cp := make(json.RawMessage, len(v))
			copy(cp, v)
			return cp, nil
		case kindStrings:
			// sqlite stores arrays as JSON text.
			var items []string
			if err := json.Unmarshal(v, &items); err != nil {
				return nil, err
			}
			return items, nil
		}
		return string(v), nil
	case string:
		switch col.Kind {
		case kindJSON:
			return json.RawMessage(v), nil
		case kindStrings:
			var items []string
			if err := json.Unmarshal([]byte(v), &items); err != nil {
				return nil, err
			}
			return items, nil
		}
		return v, nil
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano), nil
	}

	switch col.Kind {
	case kindBool:
		return toBool(value)
	case kindInt:
		return toInt64(value)
	case kindFloat:
		return toFloat64(value)
	default:
		return value, nil
	}
}

func (s *Service) importRow(ctx context.Context, tx *sql.Tx, table *tableSpec, payload json.RawMessage) error {
	values, err := s.decodePayload(table, payload)
	if err != nil {
		return fmt.Errorf("decode payload for %s: %w", table.Name, err)
	}
	if len(values) == 0 {
		return nil
	}

	cols := make([]string, 0, len(values))
	args := make([]any, 0, len(values))
	for _, col := range table.Columns {
		val, ok := values[col.Name]
		if !ok {
			continue
		}
		if val == nil && !col.Nullable {
			return fmt.Errorf("backup: missing required value for %s.%s", table.Name, col.Name)
		}
		cols = append(cols, col.Name)
		args = append(args, val)
	}

	if len(cols) == 0 {
		return nil
	}

	placeholder := buildPlaceholders(s.driver, len(cols))
	if len(placeholder) != len(cols) {
		return fmt.Errorf("unsupported driver %q for placeholders", s.driver)
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table.Name,
		strings.Join(cols, ", "),
		strings.Join(placeholder, ", "),
	)

	upsert, err := buildUpsertClause(s.driver, table, cols)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, insert+upsert, args...); err != nil {
		return fmt.Errorf("insert into %s: %w", table.Name, err)
	}
	return nil
}

func (s *Service) selectTables(requested []string) ([]*tableSpec, error) {
	if len(requested) == 0 {
		// Declaration order is dependency order; keep it.
		tbls := make([]*tableSpec, len(s.tables))
		for i := range s.tables {
			tbls[i] = &s.tables[i]
		}
		return tbls, nil
	}
	set := make(map[string]struct{}, len(requested))
	for _, name := range requested {
		n := strings.TrimSpace(strings.ToLower(name))
		if n == "" {
			continue
		}
		if _, ok := s.tableIndex[n]; !ok {
			return nil, fmt.Errorf("backup: unsupported table %q", name)
		}
		set[n] = struct{}{}
	}
	if len(set) == 0 {
		return nil, errNoTablesSelected
	}
	tbls := make([]*tableSpec, 0, len(set))
	for i := range s.tables {
		if _, ok := set[s.tables[i].Name]; ok {
			tbls = append(tbls, &s.tables[i])
		}
	}
	return tbls, nil
}

func (s *Service) openDB(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open(s.driver, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if s.driver == "sqlite3" || s.driver == "sqlite" {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	}
	return db, nil
}

func (s *Service) countTableRows(ctx context.Context, db *sql.DB, table string) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
	var count int
	if err := db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Service) decodePayload(table *tableSpec, payload json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	result := make(map[string]any, len(raw))
	for key, val := range raw {
		col := table.findColumn(key)
		if col == nil {
			return nil, fmt.Errorf("column %s not found in table %s", key, table.Name)
		}
		converted, err := s.convertJSONValue(col, val)
		if err != nil {
			return nil, fmt.Errorf("convert %s.%s: %w", table.Name, key, err)
		}
		result[key] = converted
	}
	return result, nil
}

func (s *Service) convertJSONValue(col *columnSpec, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch col.Kind {
	case kindBool:
		return toBool(value)
	case kindInt:
		return toInt64(value)
	case kindFloat:
		return toFloat64(value)
	case kindTime:
		str, err := toString(value)
		if err != nil {
			return nil, err
		}
		if str == "" {
			return nil, nil
		}
		t, err := time.Parse(time.RFC3339Nano, str)
		if err != nil {
			return nil, err
		}
		return t.UTC(), nil
	case kindJSON:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if s.isPostgres() {
			return []byte(b), nil
		}
		return string(b), nil
	case kindStrings:
		items, err := toStringSlice(value)
		if err != nil {
			return nil, err
		}
		if s.isPostgres() {
			return pq.Array(items), nil
		}
		b, err := json.Marshal(items)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	default:
		return toString(value)
	}
}

func (s *Service) isPostgres() bool {
	return s.driver == "postgres" || s.driver == "postgresql"
}

func buildPlaceholders(driver string, count int) []string {
	switch driver {
	case "postgres", "postgresql":
		holders := make([]string, count)
		for i := 0; i < count; i++ {
			holders[i] = fmt.Sprintf("$%d", i+1)
		}
		return holders
	case "sqlite3", "sqlite":
		holders := make([]string, count)
		for i := 0; i < count; i++ {
			holders[i] = "?"
		}
		return holders
	default:
		return nil
	}
}

func buildUpsertClause(driver string, table *tableSpec, insertCols []string) (string, error) {
	conflictCols := table.ConflictCols
	if len(conflictCols) == 0 {
		return "", nil
	}
	updateCols := difference(insertCols, conflictCols)

	switch driver {
	case "postgres", "postgresql":
		if len(updateCols) == 0 {
			return fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", strings.Join(conflictCols, ", ")), nil
		}
		assignments := make([]string, len(updateCols))
		for i, col := range updateCols {
			assignments[i] = fmt.Sprintf("%s = EXCLUDED.%s", col, col)
		}
		return fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s",
			strings.Join(conflictCols, ", "),
			strings.Join(assignments, ", "),
		), nil
	case "sqlite3", "sqlite":
		if len(updateCols) == 0 {
			return fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", strings.Join(conflictCols, ", ")), nil
		}
		assignments := make([]string, len(updateCols))
		for i, col := range updateCols {
			assignments[i] = fmt.Sprintf("%s = excluded.%s", col, col)
		}
		return fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s",
			strings.Join(conflictCols, ", "),
			strings.Join(assignments, ", "),
		), nil
	default:
		return "", fmt.Errorf("backup: unsupported driver %q for upsert", driver)
	}
}

func tableNames(tables []*tableSpec) []string {
	names := make([]string, len(tables))
	for i, tbl := range tables {
		names[i] = tbl.Name
	}
	return names
}

func difference(slice []string, exclude []string) []string {
	set := make(map[string]struct{}, len(exclude))
	for _, item := range exclude {
		set[item] = struct{}{}
	}
	result := make([]string, 0, len(slice))
	for _, item := range slice {
		if _, ok := set[item]; !ok {
			result = append(result, item)
		}
	}
	return result
}

func computeSchemaHash(tables []tableSpec) string {
	builder := &strings.Builder{}
	sortedTables := make([]tableSpec, len(tables))
	copy(sortedTables, tables)
	sort.Slice(sortedTables, func(i, j int) bool { return sortedTables[i].Name < sortedTables[j].Name })

	for _, tbl := range sortedTables {
		builder.WriteString(tbl.Name)
		builder.WriteString("|cols:")
		for _, col := range tbl.Columns {
			builder.WriteString(fmt.Sprintf("%s:%d:%t;", col.Name, col.Kind, col.Nullable))
		}
		builder.WriteString("|pk:")
		for _, pk := range tbl.ConflictCols {
			builder.WriteString(pk)
			builder.WriteByte(',')
		}
		builder.WriteByte('\n')
	}
	sum := sha256.Sum256([]byte(builder.String()))
	return fmt.Sprintf("%x", sum[:])
}

func writeRecord(w io.Writer, rec record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		return err
	}
	return nil
}

func toBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return false, err
		}
		return i != 0, nil
	case string:
		switch strings.ToLower(v) {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		default:
			return false, fmt.Errorf("invalid bool value %q", v)
		}
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	default:
		return false, fmt.Errorf("unsupported bool type %T", value)
	}
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case float64:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("unsupported int type %T", value)
	}
}

func toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("unsupported float type %T", value)
	}
}

func toString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case []byte:
		return string(v), nil
	default:
		return fmt.Sprintf("%v", value), nil
	}
}

func toStringSlice(value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			str, err := toString(item)
			if err != nil {
				return nil, err
			}
			items = append(items, str)
		}
		return items, nil
	default:
		return nil, fmt.Errorf("unsupported string array type %T", value)
	}
}
