// Package catalog keeps the databases and tables known to the engine. The
// catalog is not stored in pages of its own: it is rebuilt from the schema
// actions of completed batches in the transaction log.
package catalog

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"

	"pagedb/pkg/catalog/schema"
	dberr "pagedb/pkg/error"
	"pagedb/pkg/log/entry"
	"pagedb/pkg/log/wal"
	"pagedb/pkg/logging"
	"pagedb/pkg/primitives"
)

const catalogComponent = "Catalog"

type tableKey struct {
	db    primitives.DatabaseID
	table primitives.TableID
}

// Catalog maps database and table names to ids and schemas.
//
// Design:
//   - Bidirectional mappings between qualified names ("db.table") and ids
//   - Database and table names are case-insensitive
//   - Thread-safe for concurrent access
type Catalog struct {
	databases   map[primitives.DatabaseID]string
	dbByName    map[string]primitives.DatabaseID
	nameToTable map[string]*schema.TableSchema
	idToTable   map[tableKey]*schema.TableSchema
	mutex       sync.RWMutex
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{
		databases:   make(map[primitives.DatabaseID]string),
		dbByName:    make(map[string]primitives.DatabaseID),
		nameToTable: make(map[string]*schema.TableSchema),
		idToTable:   make(map[tableKey]*schema.TableSchema),
	}
}

// Load rebuilds the catalog from the log at path. Only completed batches
// are applied; a missing log gives an empty catalog.
func Load(path primitives.Filepath) (*Catalog, error) {
	c := New()
	if !path.Exists() {
		return c, nil
	}

	report, err := wal.Recover(path.String())
	if err != nil {
		return nil, err
	}
	for _, b := range report.Batches {
		if !b.IsComplete() {
			continue
		}
		for _, rec := range b.Replay() {
			if err := c.Apply(rec.Entry.Action); err != nil {
				return nil, dberr.Wrap(err, dberr.CodeCorruptData, "Load", catalogComponent).
					WithDetail("batch %s sequence %d", b.ID, rec.Entry.Sequence)
			}
		}
	}

	logging.WithComponent(catalogComponent).Debug("catalog loaded",
		"databases", len(c.databases), "tables", len(c.idToTable))
	return c, nil
}

// Apply changes the catalog according to a schema action. Data actions are
// ignored.
func (c *Catalog) Apply(a entry.Action) error {
	switch a.Op {
	case entry.CreateDatabaseOp:
		return c.AddDatabase(a.Address.DatabaseID, a.Name)
	case entry.DropDatabaseOp:
		c.DropDatabase(a.Address.DatabaseID)
	case entry.CreateTableOp:
		return c.AddTable(a.Table)
	case entry.DropTableOp:
		c.DropTable(a.Address.DatabaseID, a.Address.TableID)
	}
	return nil
}

// AddDatabase registers a database. Adding the same database twice is a
// no-op; another database with the same name fails with INVALID_STATE.
func (c *Catalog) AddDatabase(id primitives.DatabaseID, name string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	key := strings.ToLower(name)
	if existing, ok := c.dbByName[key]; ok {
		if existing == id {
			return nil
		}
		return dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeInvalidState,
			"database '%s' already exists", name).In("AddDatabase", catalogComponent)
	}
	c.databases[id] = name
	c.dbByName[key] = id
	return nil
}

// DropDatabase removes a database and all of its tables.
func (c *Catalog) DropDatabase(id primitives.DatabaseID) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for key, ts := range c.idToTable {
		if key.db == id {
			c.removeTable(ts)
		}
	}
	if name, ok := c.databases[id]; ok {
		delete(c.dbByName, strings.ToLower(name))
		delete(c.databases, id)
	}
}

// AddTable registers a table schema. Its database is registered as well
// when it is not known yet. A table with the same id or qualified name
// fails with INVALID_STATE.
func (c *Catalog) AddTable(ts *schema.TableSchema) error {
	if ts == nil {
		return dberr.New(dberr.ErrCategoryValidation, dberr.CodeInvalidArgument,
			"table schema cannot be nil").In("AddTable", catalogComponent)
	}
	if err := c.AddDatabase(ts.DatabaseID, ts.DatabaseName); err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	name := qualify(ts.DatabaseName, ts.TableName)
	key := tableKey{ts.DatabaseID, ts.TableID}
	if _, ok := c.idToTable[key]; ok {
		return dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeInvalidState,
			"table id %d already exists in database '%s'", ts.TableID, ts.DatabaseName).In("AddTable", catalogComponent)
	}
	if _, ok := c.nameToTable[name]; ok {
		return dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeInvalidState,
			"table '%s' already exists", name).In("AddTable", catalogComponent)
	}

	c.nameToTable[name] = ts
	c.idToTable[key] = ts
	return nil
}

// DropTable removes a table. Unknown tables are ignored.
func (c *Catalog) DropTable(db primitives.DatabaseID, table primitives.TableID) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if ts, ok := c.idToTable[tableKey{db, table}]; ok {
		c.removeTable(ts)
	}
}

func (c *Catalog) removeTable(ts *schema.TableSchema) {
	delete(c.nameToTable, qualify(ts.DatabaseName, ts.TableName))
	delete(c.idToTable, tableKey{ts.DatabaseID, ts.TableID})
}

// Database returns the id of the named database.
func (c *Catalog) Database(name string) (primitives.DatabaseID, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	id, ok := c.dbByName[strings.ToLower(name)]
	return id, ok
}

// Table looks a table up by "database.table", or by bare table name when
// exactly one database has a table of that name.
func (c *Catalog) Table(name string) (*schema.TableSchema, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if strings.Contains(name, ".") {
		if ts, ok := c.nameToTable[strings.ToLower(name)]; ok {
			return ts, nil
		}
		return nil, tableNotFound(name)
	}

	var found []*schema.TableSchema
	for _, ts := range c.idToTable {
		if strings.EqualFold(ts.TableName, name) {
			found = append(found, ts)
		}
	}
	switch len(found) {
	case 0:
		return nil, tableNotFound(name)
	case 1:
		return found[0], nil
	default:
		return nil, dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeInvalidArgument,
			"table name '%s' is ambiguous, qualify it with the database name", name).In("Table", catalogComponent)
	}
}

// TableByID returns the schema of a table by id.
func (c *Catalog) TableByID(db primitives.DatabaseID, table primitives.TableID) (*schema.TableSchema, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	ts, ok := c.idToTable[tableKey{db, table}]
	return ts, ok
}

// Tables returns every table ordered by database name, then table name.
func (c *Catalog) Tables() []*schema.TableSchema {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	out := make([]*schema.TableSchema, 0, len(c.idToTable))
	for _, ts := range c.idToTable {
		out = append(out, ts)
	}
	slices.SortFunc(out, func(a, b *schema.TableSchema) int {
		return cmp.Or(
			cmp.Compare(strings.ToLower(a.DatabaseName), strings.ToLower(b.DatabaseName)),
			cmp.Compare(strings.ToLower(a.TableName), strings.ToLower(b.TableName)),
		)
	})
	return out
}

// NextTableID returns the lowest table id above every table of db.
func (c *Catalog) NextTableID(db primitives.DatabaseID) primitives.TableID {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	next := primitives.TableID(1)
	for key := range c.idToTable {
		if key.db == db && key.table >= next {
			next = key.table + 1
		}
	}
	return next
}

func qualify(db, table string) string {
	return strings.ToLower(fmt.Sprintf("%s.%s", db, table))
}

func tableNotFound(name string) error {
	return dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeTableNotFound,
		"table '%s' does not exist", name).In("Table", catalogComponent)
}
