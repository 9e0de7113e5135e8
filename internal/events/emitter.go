package events

import (
	"context"
	"sync"
	"time"

	"doratrack/internal/models"

	"gorm.io/gorm"
)

var Em *Emitter

type Config struct {
	Buffer     int
	BatchSize  int
	FlushEvery time.Duration
}

var (
	defaultConfig = Config{
		Buffer:     1000,
		BatchSize:  50,
		FlushEvery: 2 * time.Second,
	}
	fastConfig = Config{
		Buffer:     1000,
		BatchSize:  50,
		FlushEvery: 50 * time.Millisecond,
	}
)

// Emitter buffers audit events and appends them to the events table in
// batches, so ingestion handlers never wait on the audit write path.
type Emitter struct {
	gdb        *gorm.DB
	buf        chan models.Event
	cfg        Config
	deployment string

	wg        sync.WaitGroup
	onceClose sync.Once

	InsertOne  func(context.Context, models.Event) error
	InsertMany func(context.Context, []models.Event) error
}

func NewEmitter(gdb *gorm.DB, deployment string) *Emitter {
	return NewEmitterWithConfig(gdb, deployment, selectConfig(deployment))
}

func NewEmitterWithConfig(gdb *gorm.DB, deployment string, cfg Config) *Emitter {
	e := &Emitter{
		gdb:        gdb,
		buf:        make(chan models.Event, cfg.Buffer),
		cfg:        cfg,
		deployment: deployment,
	}

	e.InsertOne = func(ctx context.Context, evt models.Event) error {
		return e.gdb.WithContext(ctx).Create(&evt).Error
	}

	e.InsertMany = func(ctx context.Context, evts []models.Event) error {
		return e.gdb.WithContext(ctx).Create(&evts).Error
	}

	e.wg.Add(1)
	go e.worker()

	return e
}

func selectConfig(deployment string) Config {
	switch deployment {
	case "test":
		return fastConfig
	default:
		return defaultConfig
	}
}

func (e *Emitter) Close() {
	e.onceClose.Do(func() {
		close(e.buf)
		e.wg.Wait()
	})
}

func (e *Emitter) worker() {
	defer e.wg.Done()

	batch := make([]models.Event, 0, e.cfg.BatchSize)
	timer := time.NewTimer(e.cfg.FlushEvery)

	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			timer.Reset(e.cfg.FlushEvery)
			return
		}

		ctx, cancel := context.WithTimeout(
			context.Background(),
			2*time.Second,
		)

		_ = e.InsertMany(ctx, batch)

		cancel()

		batch = batch[:0]
		timer.Reset(e.cfg.FlushEvery)
	}

	for {
		select {
		case evt, ok := <-e.buf:
			if !ok {
				flush()
				return
			}

			batch = append(batch, evt)

			if len(batch) >= e.cfg.BatchSize {
				flush()
			}
		case <-timer.C:
			flush()
		}
	}
}
