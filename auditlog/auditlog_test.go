package auditlog

import "testing"

func TestRecordAndHistoryOrder(t *testing.T) {
	log, err := Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer log.Close()

	if err := log.Record(1, 1, 2); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := log.Record(2, 1, 3); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := log.Record(1, 2, 5); err != nil {
		t.Fatalf("Record: %v", err)
	}

	hist, err := log.History(1)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("History(1) returned %d rows, want 2", len(hist))
	}
	if hist[0].NQuantum != 1 || hist[1].NQuantum != 2 {
		t.Fatalf("History(1) out of order: %+v", hist)
	}
}

func TestHistoryEmptyForUnknownTID(t *testing.T) {
	log, err := Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer log.Close()

	hist, err := log.History(99)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 0 {
		t.Fatalf("History(99) = %v, want empty", hist)
	}
}
