package persist

import (
	"context"
	"fmt"
	"strings"

	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/matching"
	"game-catalog-pipeline/internal/storage"
)

// MergeCandidate is one suffixed-slug pair the duplicate scan judged
// safe to merge, with the matching decision that justified it.
type MergeCandidate struct {
	KeepID   int64                   `json:"keepId"`
	DropID   int64                   `json:"dropId"`
	BaseSlug string                  `json:"baseSlug"`
	Decision domain.MatchingDecision `json:"decision"`
}

// ScanDuplicates finds slug collision pairs and keeps only those the
// matching engine would auto-match. Sequel conflicts never qualify.
func (o *Orchestrator) ScanDuplicates(ctx context.Context, limit int) ([]MergeCandidate, error) {
	st := o.tx.Stores()
	pairs, err := st.Games.ListSlugCollisionPairs(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("scan collision pairs: %w", err)
	}

	var out []MergeCandidate
	for _, pair := range pairs {
		keep, drop, err := o.pairCandidates(ctx, st, pair)
		if err != nil {
			return nil, err
		}
		if keep == nil || drop == nil {
			continue
		}

		decision := o.engine.Compare(
			matching.ProfileFromCandidate(keep),
			matching.ProfileFromCandidate(drop),
		)
		if decision.Status != domain.MatchAuto {
			o.logger.Debug().
				Int64("keep_id", pair.KeepID).
				Int64("drop_id", pair.DropID).
				Str("status", decision.Status.String()).
				Str("reason", decision.Reason).
				Msg("collision pair not mergeable")
			continue
		}
		out = append(out, MergeCandidate{
			KeepID:   pair.KeepID,
			DropID:   pair.DropID,
			BaseSlug: pair.BaseSlug,
			Decision: decision,
		})
	}
	return out, nil
}

// pairCandidates loads the match-candidate views of both sides of a
// collision pair through the same query the matcher uses.
func (o *Orchestrator) pairCandidates(ctx context.Context, st storage.Stores, pair storage.SlugCollisionPair) (keep, drop *domain.MatchCandidate, err error) {
	keepGame, err := st.Games.GetByID(ctx, pair.KeepID)
	if err != nil {
		return nil, nil, err
	}
	dropGame, err := st.Games.GetByID(ctx, pair.DropID)
	if err != nil {
		return nil, nil, err
	}

	cands, err := st.Games.ListMatchCandidates(ctx, storage.CandidateQuery{
		Slugs: lowerAll(keepGame.Slug, keepGame.OriginalSlug, dropGame.Slug, dropGame.OriginalSlug),
		Limit: candidateLimit,
	})
	if err != nil {
		return nil, nil, err
	}
	for _, c := range cands {
		switch c.GameID {
		case pair.KeepID:
			keep = c
		case pair.DropID:
			drop = c
		}
	}
	return keep, drop, nil
}

// MergeGames folds dropID into keepID in one transaction: identifiers
// fill nulls, child rows re-point, the drop row is deleted. This is the
// only deletion path in the pipeline.
func (o *Orchestrator) MergeGames(ctx context.Context, keepID, dropID int64) error {
	if keepID == dropID {
		return fmt.Errorf("cannot merge game %d into itself", keepID)
	}

	err := o.tx.InTx(ctx, func(st storage.Stores) error {
		keep, err := st.Games.GetByID(ctx, keepID)
		if err != nil {
			return fmt.Errorf("load keep row: %w", err)
		}
		drop, err := st.Games.GetByID(ctx, dropID)
		if err != nil {
			return fmt.Errorf("load drop row: %w", err)
		}

		if err := st.Details.Repoint(ctx, dropID, keepID); err != nil {
			return fmt.Errorf("repoint details: %w", err)
		}
		if err := st.Releases.Repoint(ctx, dropID, keepID); err != nil {
			return fmt.Errorf("repoint releases: %w", err)
		}
		if err := st.Roles.Repoint(ctx, dropID, keepID); err != nil {
			return fmt.Errorf("repoint roles: %w", err)
		}

		// Delete first so the freed identifiers and slugs cannot
		// collide with the keep-row update below.
		if err := st.Games.Delete(ctx, dropID); err != nil {
			return fmt.Errorf("delete drop row: %w", err)
		}

		changed := false
		if keep.StoreID == nil && drop.StoreID != nil {
			keep.StoreID = drop.StoreID
			changed = true
		}
		if keep.MetaID == nil && drop.MetaID != nil {
			keep.MetaID = drop.MetaID
			changed = true
		}
		if keep.ParentStoreID == nil && drop.ParentStoreID != nil {
			keep.ParentStoreID = drop.ParentStoreID
			changed = true
		}
		if keep.ParentMetaID == nil && drop.ParentMetaID != nil {
			keep.ParentMetaID = drop.ParentMetaID
			changed = true
		}
		if keep.FollowersCache == nil && drop.FollowersCache != nil {
			keep.FollowersCache = drop.FollowersCache
			changed = true
		}
		if drop.PopularityScore > keep.PopularityScore {
			keep.PopularityScore = drop.PopularityScore
			changed = true
		}
		merged := mergePlatforms(keep.Platforms, drop.Platforms)
		if merged.PC != keep.Platforms.PC || len(merged.Consoles) != len(keep.Platforms.Consoles) {
			keep.Platforms = merged
			changed = true
		}

		if !changed {
			return nil
		}
		return st.Games.Update(ctx, keep)
	})
	if err != nil {
		return err
	}

	o.logger.Info().
		Int64("keep_id", keepID).
		Int64("drop_id", dropID).
		Msg("merged duplicate games")
	return nil
}

func lowerAll(values ...string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if v == "" {
			continue
		}
		lower := strings.ToLower(v)
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}
		out = append(out, lower)
	}
	return out
}
