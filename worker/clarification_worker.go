package worker

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"survey-voice-api/config"
	"survey-voice-api/models"
	"survey-voice-api/services"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

const staleSweepInterval = time.Minute

// ClarificationWorker runs the response pipeline for answers captured during
// calls. Postgres NOTIFY wakes it instantly; polling covers missed events.
type ClarificationWorker struct {
	db       *gorm.DB
	pipeline *services.ResponsePipeline
	cfg      config.WorkerConfig
	dsn      string
	shutdown chan struct{}
	wg       sync.WaitGroup
	now      func() time.Time
}

// NewClarificationWorker creates a worker. dsn is the libpq connection string
// for LISTEN; an empty dsn leaves the worker on polling alone.
func NewClarificationWorker(db *gorm.DB, pipeline *services.ResponsePipeline, cfg config.WorkerConfig, dsn string) *ClarificationWorker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 10 * time.Minute
	}
	return &ClarificationWorker{
		db:       db,
		pipeline: pipeline,
		cfg:      cfg,
		dsn:      dsn,
		shutdown: make(chan struct{}),
		now:      time.Now,
	}
}

// Start blocks until Stop is called
func (w *ClarificationWorker) Start() {
	log.Println("🤖 [Worker] Clarification worker started")

	if w.dsn != "" && w.db.Dialector.Name() == "postgres" {
		w.wg.Add(1)
		go w.listenForResponses()
	}

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	sweep := time.NewTicker(staleSweepInterval)
	defer sweep.Stop()

	w.releaseStale(context.Background())

	for {
		select {
		case <-w.shutdown:
			log.Println("🛑 [Worker] Clarification worker shutting down...")
			w.wg.Wait()
			log.Println("✅ [Worker] Clarification worker stopped")
			return
		case <-ticker.C:
			w.processPending(context.Background())
		case <-sweep.C:
			w.releaseStale(context.Background())
		}
	}
}

// Stop signals the worker to finish the current response and return
func (w *ClarificationWorker) Stop() {
	close(w.shutdown)
}

func (w *ClarificationWorker) stopping() bool {
	select {
	case <-w.shutdown:
		return true
	default:
		return false
	}
}

func (w *ClarificationWorker) listenForResponses() {
	defer w.wg.Done()

	// the poll ticker keeps responses flowing while LISTEN reconnects
	eventCallback := func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			log.Println("✅ [LISTEN] Connected - instant notifications enabled")
		case pq.ListenerEventDisconnected:
			log.Println("ℹ️  [LISTEN] Disconnected (polling fallback active)")
		case pq.ListenerEventReconnected:
			log.Println("✅ [LISTEN] Reconnected")
		case pq.ListenerEventConnectionAttemptFailed:
			if err != nil && !strings.Contains(err.Error(), "connection") {
				log.Printf("⚠️  [LISTEN] Error: %v (polling fallback active)", err)
			}
		}
	}

	listener := pq.NewListener(w.dsn, 10*time.Second, time.Minute, eventCallback)
	defer listener.Close()

	if err := listener.Listen(w.cfg.Channel); err != nil {
		log.Printf("⚠️  [LISTEN] Failed to listen on %s: %v (polling only)", w.cfg.Channel, err)
		return
	}
	log.Printf("👂 [LISTEN] Waiting for responses on %s...", w.cfg.Channel)

	keepalive := time.NewTicker(60 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-w.shutdown:
			log.Println("🔕 [LISTEN] Stopping response listener...")
			return
		case n := <-listener.Notify:
			// nil means the connection was re-established
			if n != nil {
				w.processPending(context.Background())
			}
		case <-keepalive.C:
			go func() {
				_ = listener.Ping()
			}()
		}
	}
}

// processPending claims and runs responses until none are left. It returns
// the number of responses it ran.
func (w *ClarificationWorker) processPending(ctx context.Context) int {
	processed := 0
	for !w.stopping() {
		id, err := w.claimNext(ctx)
		if err != nil {
			log.Printf("❌ [Worker] Claim failed: %v", err)
			return processed
		}
		if id == 0 {
			return processed
		}

		start := time.Now()
		r, err := w.pipeline.ProcessClaimed(ctx, id)
		if err != nil {
			// the stale sweep hands the row back if the pipeline could not write it
			log.Printf("❌ [Worker] Response #%d failed after %s: %v", id, time.Since(start).Round(time.Millisecond), err)
		} else {
			log.Printf("⚙️  [Worker] Response #%d processed in %s (%s)", id, time.Since(start).Round(time.Millisecond), r.Status)
		}
		processed++
	}
	return processed
}

// claimNext moves the oldest waiting response to processing and returns its
// id, or 0 when nothing is waiting. Concurrent workers never claim the same
// row.
func (w *ClarificationWorker) claimNext(ctx context.Context) (uint, error) {
	var claimed uint
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r models.Response
		query := `
			SELECT * FROM responses
			WHERE processing_status = ?
			AND status <> ?
			ORDER BY id ASC
			LIMIT 1`
		if tx.Dialector.Name() == "postgres" {
			query += " FOR UPDATE SKIP LOCKED"
		}
		if err := tx.Raw(query, models.ProcessingPending, models.ResponseCompleted).Scan(&r).Error; err != nil {
			return err
		}
		if r.ID == 0 {
			return nil
		}

		prev := r.Version
		if err := r.BeginProcessing(); err != nil {
			return err
		}
		res := tx.Model(&models.Response{}).
			Where("id = ? AND version = ?", r.ID, prev).
			Updates(map[string]interface{}{
				"processing_status": r.ProcessingStatus,
				"version":           prev + 1,
				"updated_at":        w.now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		claimed = r.ID
		return nil
	})
	if errors.Is(err, models.ErrConflict) {
		return 0, nil
	}
	return claimed, err
}

// releaseStale hands processing claims older than StaleAfter back to pending
func (w *ClarificationWorker) releaseStale(ctx context.Context) int64 {
	cutoff := w.now().Add(-w.cfg.StaleAfter)
	res := w.db.WithContext(ctx).
		Model(&models.Response{}).
		Where("processing_status = ? AND updated_at < ?", models.ProcessingInProgress, cutoff).
		Updates(map[string]interface{}{
			"processing_status": models.ProcessingPending,
			"version":           gorm.Expr("version + 1"),
			"updated_at":        w.now(),
		})
	if res.Error != nil {
		log.Printf("⚠️  [Worker] Stale sweep failed: %v", res.Error)
		return 0
	}
	if res.RowsAffected > 0 {
		log.Printf("🔄 [Worker] Released %d stale claims", res.RowsAffected)
	}
	return res.RowsAffected
}
