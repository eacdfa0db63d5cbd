// Package board decodes Jira board configuration: column layout and the
// backlog status set.
package board

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

const (
	TypeKanban = "kanban"
	TypeScrum  = "scrum"
)

// Column is one visible board column
type Column struct {
	Name      string   `json:"name"`
	StatusIDs []string `json:"status_ids"`
	Min       *int     `json:"min,omitempty"`
	Max       *int     `json:"max,omitempty"`
}

// Board is a parsed board configuration
type Board struct {
	ID               int      `json:"id"`
	Name             string   `json:"name"`
	Type             string   `json:"type"`
	Columns          []Column `json:"columns"`
	BacklogStatusIDs []string `json:"backlog_status_ids"`
}

type rawBoard struct {
	ID           json.Number `json:"id"`
	Name         string      `json:"name"`
	Type         string      `json:"type"`
	ColumnConfig struct {
		Columns []struct {
			Name     string `json:"name"`
			Statuses []struct {
				ID json.Number `json:"id"`
			} `json:"statuses"`
			Min *int `json:"min"`
			Max *int `json:"max"`
		} `json:"columns"`
	} `json:"columnConfig"`
}

// Parse decodes a board configuration document
func Parse(data []byte) (*Board, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw rawBoard
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode board configuration: %w", err)
	}

	id, err := strconv.Atoi(raw.ID.String())
	if err != nil {
		return nil, fmt.Errorf("invalid board id %q", raw.ID)
	}
	b := &Board{ID: id, Name: raw.Name, Type: raw.Type}

	columns := raw.ColumnConfig.Columns
	if b.Kanban() {
		if len(columns) == 0 || columns[0].Name != "Backlog" {
			return nil, fmt.Errorf("Expected first column to be called Backlog: board %d", id)
		}
		for _, s := range columns[0].Statuses {
			b.BacklogStatusIDs = append(b.BacklogStatusIDs, s.ID.String())
		}
		columns = columns[1:]
	}

	for _, c := range columns {
		if len(c.Statuses) == 0 {
			continue
		}
		col := Column{Name: c.Name, Min: c.Min, Max: c.Max}
		for _, s := range c.Statuses {
			col.StatusIDs = append(col.StatusIDs, s.ID.String())
		}
		b.Columns = append(b.Columns, col)
	}
	return b, nil
}

// Kanban reports whether this is a kanban board
func (b *Board) Kanban() bool { return b.Type == TypeKanban }

// Scrum reports whether this is a scrum board
func (b *Board) Scrum() bool { return b.Type == TypeScrum }

// ColumnIndex returns the position of the visible column holding statusID
func (b *Board) ColumnIndex(statusID string) (int, bool) {
	for i, c := range b.Columns {
		for _, id := range c.StatusIDs {
			if id == statusID {
				return i, true
			}
		}
	}
	return -1, false
}

// InBacklog reports whether statusID maps to the backlog
func (b *Board) InBacklog(statusID string) bool {
	for _, id := range b.BacklogStatusIDs {
		if id == statusID {
			return true
		}
	}
	return false
}

// SelectionError is returned when no single board can be chosen
type SelectionError struct {
	Candidates []int
}

func (e *SelectionError) Error() string {
	if len(e.Candidates) == 0 {
		return "we couldn't find any configuration files for boards. Has the download run?"
	}
	return fmt.Sprintf("following board ids and this is ambiguous: %v. Set board_id in the project configuration", e.Candidates)
}

// Select picks the board with id, or the only board when id is 0
func Select(boards []*Board, id int) (*Board, error) {
	if id != 0 {
		for _, b := range boards {
			if b.ID == id {
				return b, nil
			}
		}
		return nil, fmt.Errorf("board %d not found among downloaded boards", id)
	}

	switch len(boards) {
	case 0:
		return nil, &SelectionError{}
	case 1:
		return boards[0], nil
	}

	ids := make([]int, 0, len(boards))
	for _, b := range boards {
		ids = append(ids, b.ID)
	}
	sort.Ints(ids)
	return nil, &SelectionError{Candidates: ids}
}
