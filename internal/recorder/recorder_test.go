package recorder

import (
	"encoding/csv"
	"os"
	"testing"
)

func TestRecorderWritesRows(t *testing.T) {
	dir := t.TempDir()
	r, err := New(dir, "test_session")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	r.Log(50, -30, 5, -3, 95, 87, 0.4, 0, 0.2)
	r.Log(10, 5, 1, 0, 95.5, 87, 0.4, 0, 0.2)
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(r.Path())
	if err != nil {
		t.Fatalf("open session file: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 { // header + 2 samples
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[0][0] != "timestamp" || len(rows[0]) != 10 {
		t.Errorf("bad header: %v", rows[0])
	}
	if rows[1][1] != "50" || rows[1][2] != "-30" {
		t.Errorf("bad first sample: %v", rows[1])
	}
	if rows[2][5] != "95.5" {
		t.Errorf("bad position column: %v", rows[2])
	}
}

func TestLogAfterCloseIsNoop(t *testing.T) {
	r, err := New(t.TempDir(), "closed")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.Close()
	r.Log(1, 2, 3, 4, 5, 6, 7, 8, 9) // must not panic
}
