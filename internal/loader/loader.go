// Package loader reads a project's downloaded tracker data from disk.
package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kiracore/jiraflow/internal/board"
	"github.com/kiracore/jiraflow/internal/issue"
	"github.com/kiracore/jiraflow/internal/sprint"
	"github.com/kiracore/jiraflow/internal/status"
)

// Options locates and decodes one project's download
type Options struct {
	Dir              string
	Prefix           string
	Location         *time.Location
	ParentLinkFields []string
	Workers          int
}

// Meta is the downloader's bookkeeping for a project
type Meta struct {
	TimeStart         time.Time
	TimeEnd           time.Time
	EarliestTimeStart time.Time
}

// Project is everything loaded for one file prefix
type Project struct {
	Statuses []status.Status
	Boards   []*board.Board
	Sprints  map[int][]sprint.Sprint
	Meta     Meta
	Issues   *issue.Arena
	// BoardIDs lists, per issue key, the boards it was downloaded for
	BoardIDs map[string][]int
}

// IssueFile is the chosen file for one issue key
type IssueFile struct {
	Key      string
	Path     string
	BoardIDs []int
}

var (
	issueFileRegex   = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_]*-\d+)(?:-(\d+))?\.json$`)
	boardConfigRegex = regexp.MustCompile(`_board_(\d+)_configuration\.json$`)
	sprintFileRegex  = regexp.MustCompile(`_board_(\d+)_sprints_\d+\.json$`)
)

// Load reads statuses, boards, sprints, metadata and issues
func Load(ctx context.Context, opts Options) (*Project, error) {
	if opts.Prefix == "" {
		return nil, fmt.Errorf("file prefix is required")
	}
	base := filepath.Join(opts.Dir, opts.Prefix)

	p := &Project{Sprints: make(map[int][]sprint.Sprint), BoardIDs: make(map[string][]int)}

	var err error
	if p.Statuses, err = loadStatuses(base + "_statuses.json"); err != nil {
		return nil, err
	}
	if p.Boards, err = loadBoards(base); err != nil {
		return nil, err
	}
	if err := loadSprints(base, opts.Location, p.Sprints); err != nil {
		return nil, err
	}
	if p.Meta, err = loadMeta(base+"_meta.json", opts.Location); err != nil {
		return nil, err
	}

	files, err := GroupIssueFiles(base + "_issues")
	if err != nil {
		return nil, err
	}
	histories, err := loadIssues(ctx, files, opts)
	if err != nil {
		return nil, err
	}

	p.Issues = issue.NewArena()
	for i, h := range histories {
		if err := p.Issues.Add(h); err != nil {
			return nil, err
		}
		p.BoardIDs[h.Key] = files[i].BoardIDs
	}
	p.Issues.Link()
	return p, nil
}

func loadStatuses(path string) ([]status.Status, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read statuses: %w", err)
	}
	statuses, err := status.ParseStatuses(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return statuses, nil
}

func loadBoards(base string) ([]*board.Board, error) {
	matches, err := filepath.Glob(base + "_board_*_configuration.json")
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	var boards []*board.Board
	for _, path := range matches {
		if !boardConfigRegex.MatchString(path) {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read board: %w", err)
		}
		b, err := board.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		boards = append(boards, b)
	}
	return boards, nil
}

func loadSprints(base string, loc *time.Location, into map[int][]sprint.Sprint) error {
	matches, err := filepath.Glob(base + "_board_*_sprints_*.json")
	if err != nil {
		return err
	}
	sort.Strings(matches)

	for _, path := range matches {
		m := sprintFileRegex.FindStringSubmatch(path)
		if m == nil {
			continue
		}
		boardID, _ := strconv.Atoi(m[1])
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read sprints: %w", err)
		}
		sprints, err := sprint.Parse(data, loc)
		if err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		into[boardID] = append(into[boardID], sprints...)
	}
	return nil
}

func loadMeta(path string, loc *time.Location) (Meta, error) {
	var meta Meta
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return meta, nil
		}
		return meta, fmt.Errorf("failed to read metadata: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return meta, fmt.Errorf("failed to parse metadata: %w", err)
	}
	for key, dst := range map[string]*time.Time{
		"time_start":          &meta.TimeStart,
		"time_end":            &meta.TimeEnd,
		"earliest_time_start": &meta.EarliestTimeStart,
	} {
		s, ok := raw[key].(string)
		if !ok || s == "" {
			continue
		}
		t, err := issue.ParseTime(s, loc)
		if err != nil {
			return meta, fmt.Errorf("metadata %s: %w", key, err)
		}
		*dst = t
	}
	return meta, nil
}

// GroupIssueFiles picks the newest file per issue key in dir. Files named
// KEY-BOARDID.json contribute their board id, newest first. Names that do
// not follow the convention are ignored.
func GroupIssueFiles(dir string) ([]IssueFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}

	type candidate struct {
		path    string
		boardID int
		mtime   time.Time
	}
	byKey := make(map[string][]candidate)

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := issueFileRegex.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", e.Name(), err)
		}
		c := candidate{path: filepath.Join(dir, e.Name()), mtime: info.ModTime()}
		if m[2] != "" {
			c.boardID, _ = strconv.Atoi(m[2])
		}
		key := m[1]
		byKey[key] = append(byKey[key], c)
	}

	files := make([]IssueFile, 0, len(byKey))
	for key, cands := range byKey {
		sort.SliceStable(cands, func(i, j int) bool {
			if !cands[i].mtime.Equal(cands[j].mtime) {
				return cands[i].mtime.After(cands[j].mtime)
			}
			return cands[i].path < cands[j].path
		})
		f := IssueFile{Key: key, Path: cands[0].path}
		for _, c := range cands {
			if c.boardID != 0 {
				f.BoardIDs = append(f.BoardIDs, c.boardID)
			}
		}
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool {
		pi, pj := projectOf(files[i].Key), projectOf(files[j].Key)
		if pi != pj {
			return pi < pj
		}
		return issue.KeyNumber(files[i].Key) < issue.KeyNumber(files[j].Key)
	})
	return files, nil
}

func projectOf(key string) string {
	if i := strings.LastIndex(key, "-"); i > 0 {
		return key[:i]
	}
	return key
}

func loadIssues(ctx context.Context, files []IssueFile, opts Options) ([]*issue.History, error) {
	out := make([]*issue.History, len(files))
	parseOpts := issue.ParseOptions{Location: opts.Location, ParentLinkFields: opts.ParentLinkFields}

	g, ctx := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(f.Path)
			if err != nil {
				return fmt.Errorf("failed to read issue %s: %w", f.Key, err)
			}
			h, err := issue.Parse(data, parseOpts)
			if err != nil {
				return fmt.Errorf("failed to parse %s: %w", filepath.Base(f.Path), err)
			}
			out[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
