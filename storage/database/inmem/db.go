package inmemdb

import (
	"context"
	"sync"

	"github.com/rollcall/rollcall/core/lecture"
	"github.com/rollcall/rollcall/core/record"
	"github.com/rollcall/rollcall/core/user"
)

type (
	DB struct {
		user    *userTable
		lecture *lectureTable
		record  *recordTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	lectureTable struct {
		sync.RWMutex
		table map[string]*lecture.Lecture
	}

	recordTable struct {
		sync.RWMutex
		table map[string]*record.Record
	}
)

func Open() *DB {
	return &DB{
		user:    &userTable{table: make(map[string]*user.User)},
		lecture: &lectureTable{table: make(map[string]*lecture.Lecture)},
		record:  &recordTable{table: make(map[string]*record.Record)},
	}
}

// PingContext is always successful, it lets DB stand in for a real database in health checks.
func (db *DB) PingContext(context.Context) error {
	return nil
}

// Reset empties every table.
func (db *DB) Reset() {
	db.record.Lock()
	db.record.table = make(map[string]*record.Record)
	db.record.Unlock()

	db.lecture.Lock()
	db.lecture.table = make(map[string]*lecture.Lecture)
	db.lecture.Unlock()

	db.user.Lock()
	db.user.table = make(map[string]*user.User)
	db.user.Unlock()
}
