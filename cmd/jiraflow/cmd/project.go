package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/kiracore/jiraflow/internal/board"
	"github.com/kiracore/jiraflow/internal/config"
	"github.com/kiracore/jiraflow/internal/cycletime"
	"github.com/kiracore/jiraflow/internal/issue"
	"github.com/kiracore/jiraflow/internal/loader"
	"github.com/kiracore/jiraflow/internal/paths"
	"github.com/kiracore/jiraflow/internal/quality"
	"github.com/kiracore/jiraflow/internal/status"
)

// projectRun is one configured project with its download loaded and the
// board, taxonomy and cycle-time policy resolved
type projectRun struct {
	cfg         *config.Config
	project     *config.Project
	loc         *time.Location
	data        *loader.Project
	issues      *issue.Arena
	taxonomy    *status.Taxonomy
	board       *board.Board
	policy      *cycletime.RulePolicy
	truncations map[string]quality.Truncation
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	result := cfg.Validate()
	for _, w := range result.Warnings {
		log.Debug().Str("field", w.Field).Msg(w.Message)
	}
	if !result.IsValid() {
		msgs := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			msgs = append(msgs, e.Error())
		}
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
	}
	return cfg, nil
}

func selectProject(cfg *config.Config) (*config.Project, error) {
	name := viper.GetString("project")
	if name != "" {
		return cfg.FindProject(name)
	}
	if len(cfg.Projects) == 1 {
		return &cfg.Projects[0], nil
	}
	return nil, fmt.Errorf("%d projects configured: choose one with --project", len(cfg.Projects))
}

// loadProjectRun loads the selected project and applies history discarding
func loadProjectRun(ctx context.Context) (*projectRun, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	p, err := selectProject(cfg)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	dir := paths.DownloadDir(viper.ConfigFileUsed(), cfg.DataDir)
	started := time.Now()
	data, err := loader.Load(ctx, loader.Options{
		Dir:              dir,
		Prefix:           p.FilePrefix,
		Location:         loc,
		ParentLinkFields: p.ParentLinkFields,
		Workers:          cfg.Workers(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", p.Label(), err)
	}

	tax, err := status.NewTaxonomyFrom(p.ProjectID, data.Statuses)
	if err != nil {
		return nil, fmt.Errorf("failed to build status taxonomy: %w", err)
	}
	b, err := board.Select(data.Boards, p.BoardID)
	if err != nil {
		return nil, err
	}
	policy, err := cycletime.NewPolicy(p.CycleTime, tax)
	if err != nil {
		return nil, fmt.Errorf("cycletime: %w", err)
	}

	issues, err := boardIssues(data, b.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to select issues of board %d: %w", b.ID, err)
	}

	run := &projectRun{
		cfg:      cfg,
		project:  p,
		loc:      loc,
		data:     data,
		issues:   issues,
		taxonomy: tax,
		board:    b,
		policy:   policy,
	}

	if d := p.DiscardChangesBefore; d != nil {
		cutoff, err := discardCutoff(d, b, tax, loc)
		if err != nil {
			return nil, err
		}
		run.truncations = quality.Discard(run.issues, cutoff, policy)
	}

	log.Info().
		Str("project", p.Label()).
		Str("dir", dir).
		Int("board", b.ID).
		Int("issues", run.issues.Len()).
		Int("statuses", tax.Len()).
		Int("truncated", len(run.truncations)).
		Dur("took", time.Since(started)).
		Msg("loaded project")

	return run, nil
}

// boardIssues keeps the issues downloaded for boardID. Issues with no
// recorded board belong to every board.
func boardIssues(data *loader.Project, boardID int) (*issue.Arena, error) {
	arena := issue.NewArena()
	for _, h := range data.Issues.Issues() {
		ids := data.BoardIDs[h.Key]
		if len(ids) > 0 && !containsInt(ids, boardID) {
			continue
		}
		if err := arena.Add(h); err != nil {
			return nil, err
		}
	}
	arena.Link()
	return arena, nil
}

func discardCutoff(d *config.Discard, b *board.Board, tax *status.Taxonomy, loc *time.Location) (quality.CutoffFunc, error) {
	if d.Date != "" {
		t, err := time.ParseInLocation("2006-01-02", d.Date, loc)
		if err != nil {
			return nil, fmt.Errorf("discard_changes_before: invalid date %q", d.Date)
		}
		return quality.FixedCutoff(t), nil
	}
	names := quality.ExpandBacklogToken(d.StatusBecomes, b, tax)
	if !tax.Empty() {
		if _, err := tax.Expand(names, nil); err != nil {
			return nil, fmt.Errorf("discard_changes_before: %w", err)
		}
	}
	return quality.StatusBecomes(names...), nil
}

// reportRange is the period the download covers, falling back to the
// span of the loaded issues
func (r *projectRun) reportRange() (time.Time, time.Time) {
	from, to := r.data.Meta.TimeStart, r.data.Meta.TimeEnd
	if !from.IsZero() && !to.IsZero() {
		return from, to
	}
	for _, h := range r.issues.Issues() {
		if from.IsZero() || h.Created.Before(from) {
			from = h.Created
		}
		if h.Updated.After(to) {
			to = h.Updated
		}
	}
	if to.IsZero() {
		to = time.Now().In(r.loc)
	}
	return from, to
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
