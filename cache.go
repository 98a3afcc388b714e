// Copyright 2025 The sqlrw authors
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlrw

import (
	"context"
	"database/sql"
	"runtime"
	"sync"
	"sync/atomic"
)

// dbIDCount generates unique DB identities for the statement cache.
var dbIDCount int64

type planID = int64
type dbID = int64

// stmtCache caches the sql.Stmt objects associated with each Plan. A Plan
// can correspond to multiple sql.Stmt values on different databases. The
// cache is indexed by the plan ID and the DB ID.
//
// The cache closes sql.Stmt objects with a finalizer on the Plan.
// Similarly a finalizer is set on DB objects to close all statements
// prepared on the DB, close the DB, and remove references to the DB from
// the cache.
//
// The mutex must be locked when accessing either the planDBCache or the
// dbPlanCache.
type stmtCache struct {
	planDBCache map[planID]map[dbID]*sql.Stmt
	dbPlanCache map[dbID]map[planID]bool
	mutex       sync.RWMutex
}

var cacheOnce sync.Once
var singleCache *stmtCache

// planCache is the single instance of the statement cache.
var planCache = newStmtCache()

func newStmtCache() *stmtCache {
	cacheOnce.Do(func() {
		singleCache = &stmtCache{
			planDBCache: map[planID]map[dbID]*sql.Stmt{},
			dbPlanCache: map[dbID]map[planID]bool{},
		}
	})
	return singleCache
}

// register allocates a Plan in the cache. A finalizer is set on the Plan to
// remove all sql.Stmt values associated with it from the cache and close
// them. The finalizer runs after the Plan is garbage collected.
func (sc *stmtCache) register(p *Plan) {
	sc.mutex.Lock()
	sc.planDBCache[p.cacheID] = map[dbID]*sql.Stmt{}
	sc.mutex.Unlock()
	runtime.SetFinalizer(p, sc.planFinalizer())
}

// newDB returns a new DB and allocates it in the cache. A finalizer is set
// on the DB which removes it from the cache, closes all sql.Stmt values
// prepared upon it and then closes the underlying database.
func (sc *stmtCache) newDB(sqldb *sql.DB) *DB {
	cacheID := atomic.AddInt64(&dbIDCount, 1)
	sc.mutex.Lock()
	sc.dbPlanCache[cacheID] = map[planID]bool{}
	sc.mutex.Unlock()
	db := &DB{sqldb: sqldb, cacheID: cacheID}
	runtime.SetFinalizer(db, sc.dbFinalizer())
	return db
}

// prepareSubstrate is an object that statements can be prepared on, e.g. a
// sql.DB or sql.Tx.
type prepareSubstrate interface {
	PrepareContext(context.Context, string) (*sql.Stmt, error)
}

// prepare prepares a Plan's statement on a prepareSubstrate, checking the
// cache first. The prepareSubstrate must be associated with the same DB
// that the given dbID identifies.
func (sc *stmtCache) prepare(ctx context.Context, dbID dbID, ps prepareSubstrate, p *Plan) (*sql.Stmt, error) {
	var err error
	sc.mutex.RLock()
	// The plan ID is only removed from the cache when the finalizer runs,
	// so it is always in planDBCache.
	stmt, ok := sc.planDBCache[p.cacheID][dbID]
	sc.mutex.RUnlock()
	if !ok {
		stmt, err = ps.PrepareContext(ctx, p.sql)
		if err != nil {
			return nil, err
		}
		sc.mutex.Lock()
		// Check if a statement has been inserted by someone else since we
		// last checked.
		stmtAlt, ok := sc.planDBCache[p.cacheID][dbID]
		if ok {
			stmt.Close()
			stmt = stmtAlt
		} else {
			sc.planDBCache[p.cacheID][dbID] = stmt
			sc.dbPlanCache[dbID][p.cacheID] = true
		}
		sc.mutex.Unlock()
	}
	return stmt, nil
}

// planFinalizer returns a finalizer that removes a Plan from the caches and
// closes its prepared statements.
func (sc *stmtCache) planFinalizer() func(*Plan) {
	return func(p *Plan) {
		sc.mutex.Lock()
		defer sc.mutex.Unlock()
		dbCache := sc.planDBCache[p.cacheID]
		for dbCacheID, stmt := range dbCache {
			stmt.Close()
			delete(sc.dbPlanCache[dbCacheID], p.cacheID)
		}
		delete(sc.planDBCache, p.cacheID)
	}
}

// dbFinalizer returns a finalizer that closes and removes from the cache
// all sql.Stmt values prepared on the database, removes the database from
// the cache, then closes the sql.DB.
func (sc *stmtCache) dbFinalizer() func(*DB) {
	return func(db *DB) {
		sc.mutex.Lock()
		defer sc.mutex.Unlock()
		plans := sc.dbPlanCache[db.cacheID]
		for planCacheID := range plans {
			dbCache := sc.planDBCache[planCacheID]
			dbCache[db.cacheID].Close()
			delete(dbCache, db.cacheID)
		}
		delete(sc.dbPlanCache, db.cacheID)
		db.sqldb.Close()
	}
}
