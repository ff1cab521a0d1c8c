// Package db implements the sqlite-backed table store robot sessions record
// into. Statements name columns with {column} placeholders and the table with
// __TABLE__; values in blob columns are transparently gob-encoded, other
// column types pass through.
package db

import (
	"bytes"
	"database/sql"
	"encoding/gob"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	// sqlite driver
	_ "modernc.org/sqlite"
)

// Mode controls how Open treats an existing database file.
type Mode string

const (
	// ModeCreate opens read/write, creating the file if necessary.
	ModeCreate Mode = "c"
	// ModeRead opens read-only.
	ModeRead Mode = "r"
	// ModeTruncate opens read/write and drops all existing tables first.
	ModeTruncate Mode = "w"
	// ModeNew erases any existing database file and starts fresh.
	ModeNew Mode = "n"
)

var placeholderRe = regexp.MustCompile(`\{(\w+)\}`)

// Register makes a concrete type storable in blob columns. Slices of float64
// are registered out of the box.
func Register(value interface{}) {
	gob.Register(value)
}

func init() {
	gob.Register([]float64{})
}

// BotDB is a handle on one sqlite database and its tables.
type BotDB struct {
	filename string
	db       *sql.DB
	tables   map[string]*Table
}

// Open opens the database file in the given mode.
func Open(filename string, mode Mode) (*BotDB, error) {
	switch mode {
	case ModeCreate, ModeRead, ModeTruncate, ModeNew:
	default:
		return nil, errors.Errorf("unrecognized mode: %q", mode)
	}
	if dir := filepath.Dir(filename); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, errors.Errorf("directory does not exist: %s", dir)
		}
	}
	if mode == ModeNew {
		if err := os.Remove(filename); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrap(err, "cannot erase existing database")
		}
	}

	dsn := filename
	if mode == ModeRead {
		dsn = "file:" + filename + "?mode=ro"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open database %s", filename)
	}

	d := &BotDB{filename: filename, db: sqlDB, tables: map[string]*Table{}}
	if mode == ModeTruncate {
		if err := d.dropAll(); err != nil {
			return nil, multierr.Combine(err, sqlDB.Close())
		}
	}
	if err := d.loadTables(); err != nil {
		return nil, multierr.Combine(err, sqlDB.Close())
	}
	return d, nil
}

// Setup executes a semicolon-separated schema and reloads the table handles.
func (d *BotDB) Setup(schema string) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := d.db.Exec(stmt); err != nil {
			return errors.Wrapf(err, "cannot set up %q", stmt)
		}
	}
	return d.loadTables()
}

// Tables lists the database's table names.
func (d *BotDB) Tables() []string {
	names := make([]string, 0, len(d.tables))
	for name := range d.tables {
		names = append(names, name)
	}
	return names
}

// Table returns the handle for a named table.
func (d *BotDB) Table(name string) (*Table, error) {
	t, ok := d.tables[name]
	if !ok {
		return nil, errors.Errorf("no such table: %s", name)
	}
	return t, nil
}

// Close closes the underlying database.
func (d *BotDB) Close() error {
	return d.db.Close()
}

func (d *BotDB) dropAll() error {
	names, err := d.tableNames()
	if err != nil {
		return err
	}
	for _, name := range names {
		if _, err := d.db.Exec("DROP TABLE " + name); err != nil {
			return errors.Wrapf(err, "cannot drop table %s", name)
		}
	}
	return nil
}

func (d *BotDB) tableNames() ([]string, error) {
	rows, err := d.db.Query("SELECT name FROM sqlite_master WHERE type='table'")
	if err != nil {
		return nil, err
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, multierr.Combine(err, rows.Close())
		}
		names = append(names, name)
	}
	return names, multierr.Combine(rows.Err(), rows.Close())
}

func (d *BotDB) loadTables() error {
	names, err := d.tableNames()
	if err != nil {
		return err
	}
	d.tables = make(map[string]*Table, len(names))
	for _, name := range names {
		t, err := newTable(d.db, name)
		if err != nil {
			return err
		}
		d.tables[name] = t
	}
	return nil
}

// Table reads and writes one table with per-column-type value codecs.
type Table struct {
	db     *sql.DB
	name   string
	dtypes map[string]string
}

func newTable(db *sql.DB, name string) (*Table, error) {
	rows, err := db.Query("PRAGMA table_info(" + name + ")")
	if err != nil {
		return nil, errors.Wrapf(err, "cannot inspect table %s", name)
	}
	t := &Table{db: db, name: name, dtypes: map[string]string{}}
	for rows.Next() {
		var (
			cid       int
			col       string
			dtype     string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &col, &dtype, &notNull, &dfltValue, &pk); err != nil {
			return nil, multierr.Combine(err, rows.Close())
		}
		dtype = strings.ToLower(dtype)
		switch dtype {
		case "text", "integer", "double", "blob":
		default:
			return nil, multierr.Combine(
				errors.Errorf("no codec for column type %q in table %s", dtype, name), rows.Close())
		}
		t.dtypes[col] = dtype
	}
	return t, multierr.Combine(rows.Err(), rows.Close())
}

// Update runs a write statement once per value tuple, encoding each value for
// its {column} placeholder's type.
func (t *Table) Update(stmt string, values [][]interface{}) error {
	query, dtypes, err := t.expand(stmt)
	if err != nil {
		return err
	}
	tx, err := t.db.Begin()
	if err != nil {
		return err
	}
	prepared, err := tx.Prepare(query)
	if err != nil {
		return multierr.Combine(err, tx.Rollback())
	}
	for _, tuple := range values {
		if len(tuple) != len(dtypes) {
			return multierr.Combine(
				errors.Errorf("tuple has %d values for %d columns", len(tuple), len(dtypes)),
				tx.Rollback())
		}
		args := make([]interface{}, len(tuple))
		for i, value := range tuple {
			encoded, err := encode(dtypes[i], value)
			if err != nil {
				return multierr.Combine(err, tx.Rollback())
			}
			args[i] = encoded
		}
		if _, err := prepared.Exec(args...); err != nil {
			return multierr.Combine(err, tx.Rollback())
		}
	}
	return multierr.Combine(prepared.Close(), tx.Commit())
}

// Retrieve runs a read statement and returns a lazy row iterator that decodes
// each value per its {column} placeholder's type.
func (t *Table) Retrieve(stmt string, args ...interface{}) (*Rows, error) {
	query, dtypes, err := t.expand(stmt)
	if err != nil {
		return nil, err
	}
	rows, err := t.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	return &Rows{rows: rows, dtypes: dtypes}, nil
}

// expand resolves {column} placeholders against the table's column types and
// substitutes the table name.
func (t *Table) expand(stmt string) (string, []string, error) {
	var dtypes []string
	for _, m := range placeholderRe.FindAllStringSubmatch(stmt, -1) {
		dtype, ok := t.dtypes[m[1]]
		if !ok {
			return "", nil, errors.Errorf("unknown column %q in table %s", m[1], t.name)
		}
		dtypes = append(dtypes, dtype)
	}
	query := placeholderRe.ReplaceAllString(stmt, "$1")
	query = strings.ReplaceAll(query, "__TABLE__", t.name)
	return query, dtypes, nil
}

// Rows lazily decodes the result of Retrieve. Callers iterate with Next and
// must Close when done.
type Rows struct {
	rows    *sql.Rows
	dtypes  []string
	current []interface{}
	err     error
}

// Next advances to the next row, reporting false at the end or on error.
func (r *Rows) Next() bool {
	if !r.rows.Next() {
		return false
	}
	raw := make([]interface{}, len(r.dtypes))
	targets := make([]interface{}, len(r.dtypes))
	for i := range raw {
		targets[i] = &raw[i]
	}
	if err := r.rows.Scan(targets...); err != nil {
		r.err = err
		return false
	}
	r.current = make([]interface{}, len(raw))
	for i, value := range raw {
		decoded, err := decode(r.dtypes[i], value)
		if err != nil {
			r.err = err
			return false
		}
		r.current[i] = decoded
	}
	return true
}

// Values returns the current row's decoded values.
func (r *Rows) Values() []interface{} {
	return r.current
}

// Close releases the result and reports any iteration or decode error.
func (r *Rows) Close() error {
	return multierr.Combine(r.err, r.rows.Err(), r.rows.Close())
}

func encode(dtype string, value interface{}) (interface{}, error) {
	if dtype != "blob" {
		return value, nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&value); err != nil {
		return nil, errors.Wrap(err, "cannot encode blob value")
	}
	return buf.Bytes(), nil
}

func decode(dtype string, value interface{}) (interface{}, error) {
	if dtype != "blob" || value == nil {
		if b, ok := value.([]byte); ok && dtype == "text" {
			return string(b), nil
		}
		return value, nil
	}
	raw, ok := value.([]byte)
	if !ok {
		return nil, errors.Errorf("blob column holds %T, not bytes", value)
	}
	var out interface{}
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "cannot decode blob value")
	}
	return out, nil
}
