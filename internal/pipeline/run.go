package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	internal "github.com/bbrks/ocado-ha/internal"
	"github.com/bbrks/ocado-ha/internal/config"
	"github.com/bbrks/ocado-ha/internal/connectors"
	"github.com/bbrks/ocado-ha/internal/storage"
)

// ErrUnchanged is the terminal outcome for a cycle whose message-id list is
// identical to the previous one; the prior snapshot stays valid and no
// bodies are fetched. Not a failure.
var ErrUnchanged = errors.New("mailbox unchanged since previous cycle")

// ErrCycleInProgress is returned when a poll tick arrives while a run is
// still in flight. The tick is dropped; the running cycle's result stands.
var ErrCycleInProgress = errors.New("pipeline cycle already in progress")

// metadata key for the last successful cycle's message-id list.
const lastIDsKey = "last_message_ids"

// Runner is the pipeline entry point: one RunCycle per poll tick, at most
// one in flight per mailbox. It keeps the last good snapshot for the
// unchanged comparison and the read views.
type Runner struct {
	cfg     config.Config
	mailbox connectors.Mailbox
	db      *storage.DB
	store   *connectors.MailStore
	log     zerolog.Logger

	runMu sync.Mutex
	// lastIDs is the previous cycle's message-id list, only touched under
	// runMu after construction.
	lastIDs []string

	snapMu   sync.RWMutex
	snapshot *internal.Snapshot
}

// NewRunner wires a runner. db may be nil for a purely in-memory runner;
// with a db, the previous snapshot is restored so a restart does not refetch
// an unchanged mailbox.
func NewRunner(cfg config.Config, mailbox connectors.Mailbox, db *storage.DB, log zerolog.Logger) *Runner {
	r := &Runner{
		cfg:     cfg,
		mailbox: mailbox,
		db:      db,
		log:     log,
	}
	if cfg.ArchiveRawMail {
		r.store = connectors.NewMailStore(cfg.RawMailDir)
	}
	if db != nil {
		if snap, err := db.LoadLastSnapshot(); err != nil {
			log.Warn().Err(err).Msg("could not restore previous snapshot")
		} else if snap != nil {
			r.snapshot = snap
		}
		if raw, err := db.GetMetadata(lastIDsKey); err != nil {
			log.Warn().Err(err).Msg("could not restore previous message ids")
		} else if raw != nil {
			if err := json.Unmarshal([]byte(*raw), &r.lastIDs); err != nil {
				log.Warn().Err(err).Msg("previous message ids unreadable, ignoring")
				r.lastIDs = nil
			}
		}
	}
	if r.lastIDs == nil && r.snapshot != nil {
		r.lastIDs = r.snapshot.MessageIDs
	}
	return r
}

// RunCycle runs one full poll: search, unchanged check, triage, parse, sort,
// publish. On any transport failure the previous snapshot is retained and
// the error is returned; a partially reconciled snapshot is never published.
func (r *Runner) RunCycle() (*internal.Snapshot, error) {
	if !r.runMu.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer r.runMu.Unlock()

	started := time.Now()
	runID := uuid.NewString()

	session, err := r.mailbox.Open()
	if err != nil {
		r.recordRun(runID, "transport_error", started, internal.CycleStats{})
		return nil, fmt.Errorf("open mailbox: %w", err)
	}
	defer session.Close()

	ids, err := session.Search(r.searchQuery(started))
	if err != nil {
		r.recordRun(runID, "transport_error", started, internal.CycleStats{})
		return nil, fmt.Errorf("search mailbox: %w", err)
	}

	previous := r.Snapshot()
	if previous != nil && equalIDs(r.lastIDs, ids) {
		r.log.Debug().Int("messages", len(ids)).Msg("message ids unchanged, reusing previous snapshot")
		r.recordRun(runID, "unchanged", started, internal.CycleStats{Messages: len(ids)})
		return previous, ErrUnchanged
	}

	result, err := Triage(ids, r.fetchFunc(session), r.log)
	if err != nil {
		r.recordRun(runID, "transport_error", started, internal.CycleStats{})
		return nil, err
	}

	orders := make([]internal.Order, 0, len(result.Confirmations))
	for _, confirmation := range result.Confirmations {
		order, err := OrderFromConfirmation(confirmation)
		if err != nil {
			logParseFailure(r.log, confirmation.MessageID, err)
			continue
		}
		orders = append(orders, order)
	}

	now := time.Now()
	next, upcoming := SortOrders(orders, now)

	total := internal.Order{}
	if result.NewTotal != nil {
		total = OrderFromNewTotal(*result.NewTotal)
	}

	snap := &internal.Snapshot{
		Updated:               now.UTC(),
		RunID:                 runID,
		MessageIDs:            ids,
		LiveOrderNumbers:      result.LiveOrderNumbers,
		CancelledOrderNumbers: result.CancelledOrderNumbers,
		Orders:                orders,
		Next:                  next,
		Upcoming:              upcoming,
		Total:                 total,
		Receipt:               result.Receipt,
	}

	r.snapMu.Lock()
	r.snapshot = snap
	r.snapMu.Unlock()
	r.lastIDs = ids

	if r.db != nil {
		if err := r.db.SaveSnapshot(snap); err != nil {
			r.log.Error().Err(err).Msg("persist snapshot failed")
		}
		if blob, err := json.Marshal(ids); err == nil {
			if err := r.db.SetMetadata(lastIDsKey, string(blob)); err != nil {
				r.log.Warn().Err(err).Msg("persist message ids failed")
			}
		}
	}
	r.recordRun(runID, "ok", started, result.Stats)

	r.log.Info().
		Int("messages", len(ids)).
		Int("live_orders", len(snap.LiveOrderNumbers)).
		Bool("receipt", snap.Receipt != nil).
		Msg("cycle complete")
	return snap, nil
}

// Snapshot returns the last published snapshot, or nil before the first
// successful cycle.
func (r *Runner) Snapshot() *internal.Snapshot {
	r.snapMu.RLock()
	defer r.snapMu.RUnlock()
	return r.snapshot
}

// NextOrder returns the soonest future delivery, empty when none.
func (r *Runner) NextOrder() internal.Order {
	if snap := r.Snapshot(); snap != nil {
		return snap.Next
	}
	return internal.Order{}
}

// UpcomingOrder returns the second-soonest future delivery, empty when none.
func (r *Runner) UpcomingOrder() internal.Order {
	if snap := r.Snapshot(); snap != nil {
		return snap.Upcoming
	}
	return internal.Order{}
}

// MostRecentTotal returns the total-only order from the newest new-total
// email, empty when none.
func (r *Runner) MostRecentTotal() internal.Order {
	if snap := r.Snapshot(); snap != nil {
		return snap.Total
	}
	return internal.Order{}
}

// BBDFor returns the best-before product list and calendar date for a
// weekday index (0=Monday..6=Sunday).
func (r *Runner) BBDFor(weekday int) ([]string, time.Time) {
	snap := r.Snapshot()
	if snap == nil || snap.Receipt == nil {
		return nil, time.Time{}
	}
	return snap.Receipt.Almanac.For(weekday)
}

func (r *Runner) searchQuery(now time.Time) connectors.SearchQuery {
	return connectors.SearchQuery{
		Since:            now.AddDate(0, 0, -r.cfg.LookbackDays),
		From:             r.cfg.RetailerAddress,
		ExcludedSubjects: ExcludedSubjects(),
	}
}

// fetchFunc wraps the session fetch with the optional raw-mail archive.
func (r *Runner) fetchFunc(session connectors.MailSession) FetchFunc {
	if r.store == nil {
		return session.Fetch
	}
	return func(id string) ([]byte, error) {
		raw, err := session.Fetch(id)
		if err != nil {
			return nil, err
		}
		path, hash, err := r.store.Archive(raw)
		if err != nil {
			r.log.Warn().Err(err).Str("message_id", id).Msg("raw mail archive failed")
			return raw, nil
		}
		if r.db != nil {
			if err := r.db.UpsertEmail(id, "", "", "", hash, path); err != nil {
				r.log.Warn().Err(err).Str("message_id", id).Msg("raw mail index failed")
			}
		}
		return raw, nil
	}
}

func (r *Runner) recordRun(runID, outcome string, started time.Time, stats internal.CycleStats) {
	if r.db == nil {
		return
	}
	elapsed := float64(time.Since(started).Milliseconds())
	if err := r.db.InsertRun(runID, outcome, elapsed, stats); err != nil {
		r.log.Warn().Err(err).Msg("record run failed")
	}
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
