// Package catalog tracks which DBFile backs each table name and exposes
// tables by numeric id so the buffer pool can route a PageID's embedded
// table id back to the file that owns it.
package catalog

import (
	"sync"

	"github.com/intellect4all/reldb/common"
	"github.com/intellect4all/reldb/storage"
)

type tableEntry struct {
	file       storage.DBFile
	name       string
	primaryKey string
}

// Catalog is the engine's table directory, analogous to the teacher's
// table-name-to-file map but keyed additionally by the numeric table id
// every PageID carries so pages can self-route without a name lookup.
type Catalog struct {
	mu      sync.RWMutex
	byID    map[uint32]*tableEntry
	byName  map[string]uint32
}

func New() *Catalog {
	return &Catalog{
		byID:   make(map[uint32]*tableEntry),
		byName: make(map[string]uint32),
	}
}

// AddTable registers file under name, recording primaryKey as the name of
// its primary-key field (returned by PrimaryKey, independent of the file's
// chosen index organization).
func (c *Catalog) AddTable(file storage.DBFile, name string, primaryKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := file.ID()
	c.byID[id] = &tableEntry{file: file, name: name, primaryKey: primaryKey}
	c.byName[name] = id
}

func (c *Catalog) GetDatabaseFile(tableID uint32) (storage.DBFile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byID[tableID]
	if !ok {
		return nil, common.NewDbError("Catalog.GetDatabaseFile", common.NewArgumentError("no table with id %d", tableID))
	}
	return e.file, nil
}

func (c *Catalog) GetTupleDesc(tableID uint32) (*common.TupleDesc, error) {
	f, err := c.GetDatabaseFile(tableID)
	if err != nil {
		return nil, err
	}
	return f.TupleDesc(), nil
}

func (c *Catalog) GetTableID(name string) (uint32, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byName[name]
	if !ok {
		return 0, common.NewDbError("Catalog.GetTableID", common.NewArgumentError("no table named %q", name))
	}
	return id, nil
}

func (c *Catalog) GetTableName(tableID uint32) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byID[tableID]
	if !ok {
		return "", common.NewDbError("Catalog.GetTableName", common.NewArgumentError("no table with id %d", tableID))
	}
	return e.name, nil
}

func (c *Catalog) PrimaryKey(tableID uint32) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byID[tableID]
	if !ok {
		return "", common.NewDbError("Catalog.PrimaryKey", common.NewArgumentError("no table with id %d", tableID))
	}
	return e.primaryKey, nil
}
