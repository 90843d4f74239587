// Package autosync watches the membership store and reconciles Discord
// roles for members whose state changed since the last scan, so role
// changes land without anyone running a manual sync.
package autosync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/phoenixclub/phoenix-bot/phoenix"
	"github.com/phoenixclub/phoenix-bot/rolesync"
	"github.com/phoenixclub/phoenix-bot/storage"
	"go.uber.org/zap"
)

const (
	DefaultPollInterval = 10 * time.Second
	DefaultPacing       = 200 * time.Millisecond
	restartCooldown     = time.Second
)

var ErrAlreadyRunning = errors.New("auto sync already running")

// Status is the externally visible poller state.
type Status struct {
	IsRunning           bool
	GuildID             string
	PollInterval        time.Duration
	LastCheckTimestamps map[phoenix.WatchedTable]time.Time
}

// Poller periodically scans the watched tables for rows modified after the
// per-table checkpoints and reconciles only the affected members. A scan
// runs to completion before the next tick fires; a failed table query
// leaves that table's checkpoint untouched so the window is retried.
type Poller struct {
	store storage.Provider
	sync  *rolesync.Service
	log   *zap.Logger

	Interval time.Duration
	Pacing   time.Duration

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	done        chan struct{}
	guildID     string
	checkpoints map[phoenix.WatchedTable]time.Time
}

func New(store storage.Provider, sync *rolesync.Service, log *zap.Logger) *Poller {
	return &Poller{
		store:    store,
		sync:     sync,
		log:      log,
		Interval: DefaultPollInterval,
		Pacing:   DefaultPacing,
	}
}

// Start loads the guild configuration, initializes the checkpoints to the
// newest known modification times and begins polling. Only changes made
// after Start are picked up; the backlog is never replayed.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrAlreadyRunning
	}

	guildID, err := p.store.GetSetting(phoenix.SettingGuildID)
	if err != nil {
		return fmt.Errorf("discord guild id not configured: %w", err)
	}
	p.guildID = guildID
	p.initCheckpoints()

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true

	go p.run(runCtx)

	p.log.Info("auto role sync started",
		zap.String("guild_id", guildID),
		zap.Duration("poll_interval", p.Interval))
	return nil
}

func (p *Poller) initCheckpoints() {
	now := time.Now().UTC()
	p.checkpoints = map[phoenix.WatchedTable]time.Time{}
	for _, table := range phoenix.WatchedTables() {
		latest, err := p.store.GetLatestChange(table)
		if err != nil || latest.IsZero() {
			if err != nil {
				p.log.Warn("could not read latest change, using current time",
					zap.String("table", string(table)), zap.Error(err))
			}
			latest = now
		}
		p.checkpoints[table] = latest
	}
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// The scan runs on this goroutine, so ticks never overlap.
			p.checkForChanges(ctx)
		}
	}
}

// checkForChanges performs one scan: collect the ids changed in any watched
// table since its checkpoint, then reconcile each affected member once.
func (p *Poller) checkForChanges(ctx context.Context) {
	changed := phoenix.NewRoleSet()

	for _, table := range phoenix.WatchedTables() {
		p.mu.Lock()
		since := p.checkpoints[table]
		p.mu.Unlock()

		ids, err := p.store.GetChangedDiscordIDs(table, since)
		if err != nil {
			// Checkpoint stays put; this window is rescanned next tick.
			p.log.Error("change scan failed",
				zap.String("table", string(table)), zap.Error(err))
			continue
		}
		if len(ids) == 0 {
			continue
		}

		p.log.Info("detected changes",
			zap.String("table", string(table)), zap.Int("rows", len(ids)))
		for _, id := range ids {
			changed.Add(id)
		}

		p.mu.Lock()
		p.checkpoints[table] = time.Now().UTC()
		p.mu.Unlock()
	}

	if changed.Len() == 0 {
		return
	}
	p.syncAffected(ctx, changed.Slice())
}

func (p *Poller) syncAffected(ctx context.Context, discordIDs []string) {
	successCount, errorCount := 0, 0

	for _, discordID := range discordIDs {
		if err := p.pace(ctx); err != nil {
			return
		}

		result := p.sync.SyncMember(ctx, p.guildID, discordID)
		if result.Success {
			successCount++
			if result.Added > 0 || result.Removed > 0 {
				p.log.Info("auto-synced member",
					zap.String("discord_id", discordID),
					zap.Int("added", result.Added),
					zap.Int("removed", result.Removed))
			}
		} else {
			errorCount++
			p.log.Error("auto-sync failed",
				zap.String("discord_id", discordID), zap.Error(result.Err))
		}
	}

	p.log.Info("auto-sync pass completed",
		zap.Int("success", successCount), zap.Int("errors", errorCount))
}

func (p *Poller) pace(ctx context.Context) error {
	if p.Pacing <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.Pacing):
		return nil
	}
}

// Stop prevents new ticks from starting; an in-flight scan finishes on its
// own. Safe to call repeatedly.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.cancel()
	p.cancel = nil
	p.running = false
	p.log.Info("auto role sync stopped")
}

// Restart stops the poller, waits out a short cool-down and starts it again
// with freshly initialized checkpoints.
func (p *Poller) Restart(ctx context.Context) error {
	p.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(restartCooldown):
	}
	return p.Start(ctx)
}

func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	timestamps := map[phoenix.WatchedTable]time.Time{}
	for table, checkpoint := range p.checkpoints {
		timestamps[table] = checkpoint
	}
	return Status{
		IsRunning:           p.running,
		GuildID:             p.guildID,
		PollInterval:        p.Interval,
		LastCheckTimestamps: timestamps,
	}
}
