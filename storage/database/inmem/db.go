package inmemdb

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/kadi/core"
	"github.com/trezcool/kadi/core/assessment"
	"github.com/trezcool/kadi/core/fee"
	"github.com/trezcool/kadi/core/promotion"
	"github.com/trezcool/kadi/core/report"
	"github.com/trezcool/kadi/core/roster"
)

type (
	// DB is a process-local store. Transactions are serialized and rolled back by snapshot.
	DB struct {
		txMu sync.Mutex // held by the running transaction and by writes outside one
		mu   sync.RWMutex
		seq  int64
		tables
	}

	tables struct {
		order          map[string]int64 // row id -> insertion sequence
		students       map[string]roster.Student
		subjects       map[string]roster.Subject
		enrollments    map[string]roster.Enrollment
		classGroups    map[string]roster.ClassGroup
		assessments    map[string]assessment.Assessment
		reports        map[string]report.Report
		subjectReports map[string]report.SubjectReport
		payments       map[string]fee.Payment
		promotions     map[string]promotion.Promotion
	}

	txKey struct{}
)

var _ core.TxManager = (*DB)(nil)

func Open() *DB {
	return &DB{tables: tables{
		order:          make(map[string]int64),
		students:       make(map[string]roster.Student),
		subjects:       make(map[string]roster.Subject),
		enrollments:    make(map[string]roster.Enrollment),
		classGroups:    make(map[string]roster.ClassGroup),
		assessments:    make(map[string]assessment.Assessment),
		reports:        make(map[string]report.Report),
		subjectReports: make(map[string]report.SubjectReport),
		payments:       make(map[string]fee.Payment),
		promotions:     make(map[string]promotion.Promotion),
	}}
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// RunInTx runs fn with exclusive write access. Every change fn made is undone if it fails.
func (db *DB) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if inTx(ctx) {
		return fn(ctx)
	}
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.RLock()
	snap := db.tables.clone()
	db.mu.RUnlock()

	defer func() {
		if p := recover(); p != nil {
			db.restore(snap)
			panic(p)
		}
		if err != nil {
			db.restore(snap)
		}
	}()
	return fn(context.WithValue(ctx, txKey{}, true))
}

func (db *DB) restore(snap tables) {
	db.mu.Lock()
	db.tables = snap
	db.mu.Unlock()
}

// write runs fn under the write lock, waiting for any running transaction unless ctx is part of it.
func (db *DB) write(ctx context.Context, fn func() error) error {
	if !inTx(ctx) {
		db.txMu.Lock()
		defer db.txMu.Unlock()
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	return fn()
}

func (db *DB) read(fn func() error) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return fn()
}

// newID registers a new row. Caller holds mu.
func (db *DB) newID() string {
	id := uuid.New().String()
	db.seq++
	db.order[id] = db.seq
	return id
}

func (t tables) clone() tables {
	return tables{
		order:          cloneMap(t.order),
		students:       cloneMap(t.students),
		subjects:       cloneMap(t.subjects),
		enrollments:    cloneMap(t.enrollments),
		classGroups:    cloneMap(t.classGroups),
		assessments:    cloneMap(t.assessments),
		reports:        cloneMap(t.reports),
		subjectReports: cloneMap(t.subjectReports),
		payments:       cloneMap(t.payments),
		promotions:     cloneMap(t.promotions),
	}
}

func cloneMap[V any](m map[string]V) map[string]V {
	c := make(map[string]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// lessFunc compares two rows on one field; it returns <0, 0 or >0.
type lessFunc[T any] func(a, b T) int

// sortRows sorts rows by ordering on the known fields, then by insertion order.
// Unknown fields are ignored. Caller holds mu.
func sortRows[T any](db *DB, rows []T, id func(T) string, fields map[string]lessFunc[T], ordering []core.DBOrdering) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, ord := range ordering {
			cmp, ok := fields[ord.Field]
			if !ok {
				continue
			}
			if c := cmp(rows[i], rows[j]); c != 0 {
				if ord.Ascending {
					return c < 0
				}
				return c > 0
			}
		}
		return db.order[id(rows[i])] < db.order[id(rows[j])]
	})
}

func cmpString(a, b string) int { return strings.Compare(a, b) }

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
