package rolesync

import (
	"context"
	"fmt"
	"time"

	"github.com/phoenixclub/phoenix-bot/phoenix"
	"github.com/phoenixclub/phoenix-bot/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

type Action string

const (
	ActionRemovedAll Action = "removed_all"
	ActionSynced     Action = "synced"
	ActionNoop       Action = "no_op"
)

// Result reports one member's reconciliation. Failures are carried in Err
// and never escape as panics or returned errors, so bulk runs survive bad
// members.
type Result struct {
	Success bool
	Action  Action
	Added   int
	Removed int
	Detail  Detail
	Err     error
}

// Summary tallies a bulk sweep.
type Summary struct {
	Total        int
	Processed    int
	SuccessCount int
	ErrorCount   int
}

// Service reconciles Discord roles against the membership store.
type Service struct {
	store storage.Provider
	roles RoleManager
	log   *zap.Logger

	// FailOpen keeps the original behavior of treating store errors as
	// empty result sets. Set to false to surface them as failed Results.
	FailOpen bool
	// Pacing is the delay between members in bulk operations, for rate
	// limit compliance only.
	Pacing time.Duration

	flight singleflight.Group
}

func New(store storage.Provider, roles RoleManager, log *zap.Logger) *Service {
	return &Service{
		store:    store,
		roles:    roles,
		log:      log,
		FailOpen: true,
		Pacing:   200 * time.Millisecond,
	}
}

func fail(err error) Result {
	return Result{Success: false, Err: err}
}

// SyncMember reconciles a single member. Concurrent calls for the same
// member collapse into one reconciliation via single-flight, so a poller
// tick and a manual sync cannot race each other.
func (s *Service) SyncMember(ctx context.Context, guildID, discordID string) Result {
	v, _, _ := s.flight.Do(guildID+"/"+discordID, func() (interface{}, error) {
		return s.syncMember(ctx, guildID, discordID), nil
	})
	return v.(Result)
}

func (s *Service) syncMember(ctx context.Context, guildID, discordID string) Result {
	actualIDs, err := s.roles.MemberRoles(ctx, guildID, discordID)
	if err != nil {
		return fail(fmt.Errorf("fetch member roles: %w", err))
	}
	actual := phoenix.NewRoleSet(actualIDs...)

	res := resolver{store: s.store, log: s.log, failOpen: s.FailOpen}

	var allProject, allMembership phoenix.RoleSet
	g := errgroup.Group{}
	g.Go(func() error {
		var err error
		allProject, err = res.allProjectTags()
		return err
	})
	g.Go(func() error {
		var err error
		allMembership, err = res.allMembershipTags()
		return err
	})
	if err := g.Wait(); err != nil {
		return fail(fmt.Errorf("resolve managed tags: %w", err))
	}

	linked, err := res.isLinked(discordID)
	if err != nil {
		return fail(fmt.Errorf("resolve link: %w", err))
	}

	if !linked {
		plan := RemovalPlan(actual, allProject, allMembership)
		if len(plan.Remove) > 0 {
			if err := s.roles.RemoveRoles(ctx, guildID, discordID, plan.Remove); err != nil {
				return fail(fmt.Errorf("remove roles: %w", err))
			}
			s.log.Info("removed managed roles from unlinked member",
				zap.String("discord_id", discordID), zap.Int("removed", len(plan.Remove)))
		}
		return Result{Success: true, Action: ActionRemovedAll, Removed: len(plan.Remove), Detail: plan.Detail}
	}

	desiredProject, err := res.desiredProjectTags(discordID)
	if err != nil {
		return fail(fmt.Errorf("resolve project tags: %w", err))
	}
	membershipTag, err := res.desiredMembershipTag(discordID)
	if err != nil {
		return fail(fmt.Errorf("resolve membership tag: %w", err))
	}

	plan := BuildPlan(actual, desiredProject, membershipTag, allProject, allMembership)
	if plan.Empty() {
		return Result{Success: true, Action: ActionNoop}
	}

	// Additions first, then removals, each as one batched platform call.
	if len(plan.Add) > 0 {
		if err := s.roles.AddRoles(ctx, guildID, discordID, plan.Add); err != nil {
			return fail(fmt.Errorf("add roles: %w", err))
		}
	}
	if len(plan.Remove) > 0 {
		if err := s.roles.RemoveRoles(ctx, guildID, discordID, plan.Remove); err != nil {
			return fail(fmt.Errorf("remove roles: %w", err))
		}
	}

	s.log.Info("synced member roles",
		zap.String("discord_id", discordID),
		zap.Int("added", len(plan.Add)),
		zap.Int("removed", len(plan.Remove)),
		zap.Int("project_added", plan.Detail.Project.Added),
		zap.Int("project_removed", plan.Detail.Project.Removed),
		zap.Int("membership_added", plan.Detail.Membership.Added),
		zap.Int("membership_removed", plan.Detail.Membership.Removed))

	return Result{
		Success: true,
		Action:  ActionSynced,
		Added:   len(plan.Add),
		Removed: len(plan.Remove),
		Detail:  plan.Detail,
	}
}

// SyncAll reconciles every human member of the guild sequentially, pacing
// between members. A failing member is tallied and skipped, never fatal.
func (s *Service) SyncAll(ctx context.Context, guildID string) (Summary, error) {
	members, err := s.roles.Members(ctx, guildID)
	if err != nil {
		return Summary{}, fmt.Errorf("list members: %w", err)
	}

	summary := Summary{Total: len(members)}
	for _, member := range members {
		if member.Bot {
			continue
		}

		result := s.SyncMember(ctx, guildID, member.ID)
		if result.Success {
			summary.SuccessCount++
		} else {
			summary.ErrorCount++
			s.log.Error("member sync failed",
				zap.String("discord_id", member.ID), zap.Error(result.Err))
		}
		summary.Processed++

		if err := s.pace(ctx); err != nil {
			return summary, err
		}
	}

	s.log.Info("bulk sync completed",
		zap.Int("total", summary.Total),
		zap.Int("success", summary.SuccessCount),
		zap.Int("errors", summary.ErrorCount))
	return summary, nil
}

func (s *Service) pace(ctx context.Context) error {
	if s.Pacing <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.Pacing):
		return nil
	}
}
