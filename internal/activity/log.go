// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

// Package activity keeps the operator-facing activity log: a bounded,
// ordered list of human-readable lines produced by sync passes and account
// checks, plus a websocket hub that streams new lines to browsers.
package activity

import (
	"sync"
	"time"

	"github.com/tomtom215/cellarsync/internal/logging"
	"github.com/tomtom215/cellarsync/internal/models"
)

// DefaultCapacity is how many entries the log retains.
const DefaultCapacity = 1000

// Level classifies an entry for display.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Entry is one activity line.
type Entry struct {
	ID        uint64    `json:"id"`
	Message   string    `json:"message"`
	Level     Level     `json:"level"`
	AccountID string    `json:"account_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Log is a ring buffer of entries with fan-out to subscribers.
type Log struct {
	mu      sync.Mutex
	ring    []Entry
	start   int
	size    int
	nextID  uint64
	subs    map[uint64]chan Entry
	nextSub uint64
	now     func() time.Time
}

// NewLog creates a log retaining capacity entries (DefaultCapacity if <= 0).
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		ring: make([]Entry, capacity),
		subs: make(map[uint64]chan Entry),
		now:  time.Now,
	}
}

// Add appends an entry and delivers it to subscribers. Slow subscribers
// miss entries rather than block the writer.
func (l *Log) Add(accountID string, level Level, message string) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	e := Entry{ID: l.nextID, Message: message, Level: level, AccountID: accountID, Timestamp: l.now()}

	idx := (l.start + l.size) % len(l.ring)
	l.ring[idx] = e
	if l.size < len(l.ring) {
		l.size++
	} else {
		l.start = (l.start + 1) % len(l.ring)
	}

	for id, ch := range l.subs {
		select {
		case ch <- e:
		default:
			logging.Warn().Uint64("subscriber", id).Msg("activity subscriber full, dropping entry")
		}
	}
	return e
}

func (l *Log) Info(accountID, message string) Entry {
	return l.Add(accountID, LevelInfo, message)
}

func (l *Log) Success(accountID, message string) Entry {
	return l.Add(accountID, LevelSuccess, message)
}

func (l *Log) Error(accountID, message string) Entry {
	return l.Add(accountID, LevelError, message)
}

// RecordOutcome logs a sync outcome with the level its kind maps to.
func (l *Log) RecordOutcome(accountID string, o models.Outcome) Entry {
	return l.Add(accountID, LevelFor(o.Kind), o.Message())
}

// LevelFor maps an outcome kind to a display level.
func LevelFor(k models.OutcomeKind) Level {
	switch k {
	case models.OutcomeCreated, models.OutcomeUpdated:
		return LevelSuccess
	case models.OutcomeFailed, models.OutcomeSkippedNotInTruth:
		return LevelError
	default:
		return LevelInfo
	}
}

// Entries returns up to limit of the newest entries, oldest first. A
// non-positive limit returns everything retained.
func (l *Log) Entries(limit int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.size
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, n)
	first := l.size - n
	for i := 0; i < n; i++ {
		out[i] = l.ring[(l.start+first+i)%len(l.ring)]
	}
	return out
}

// Len is the number of retained entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

// Subscribe returns a channel receiving every entry added from now on and
// a function that ends the subscription and closes the channel.
func (l *Log) Subscribe(buffer int) (<-chan Entry, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Entry, buffer)

	l.mu.Lock()
	l.nextSub++
	id := l.nextSub
	l.subs[id] = ch
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, id)
			l.mu.Unlock()
			close(ch)
		})
	}
}
