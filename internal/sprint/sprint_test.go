package sprint

import (
	"context"
	"testing"
)

func TestReconstructAll(t *testing.T) {
	other := Sprint{ID: 4, Name: "Sprint 4", Start: at("2022-01-01"), Completed: at("2022-01-03")}
	series, err := ReconstructAll(context.Background(), testIssues(), []Sprint{testSprint(), other}, policy, 2)
	if err != nil {
		t.Fatalf("ReconstructAll() error = %v", err)
	}
	if len(series) != 2 || series[0].Sprint.ID != 5 || series[1].Sprint.ID != 4 {
		t.Fatalf("series order = %+v", series)
	}
	if n := len(series[0].Points); n != 6 {
		t.Errorf("sprint 5 points = %d, want 6", n)
	}
	if first := series[1].Points[0]; first.Label != "Sprint started with 0 points" {
		t.Errorf("sprint 4 first point = %+v", first)
	}
}
