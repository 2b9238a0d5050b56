package docfilter

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	dbutil "github.com/lekha-app/lekha-server/internal/db"
	"github.com/lekha-app/lekha-server/internal/models"
)

func TestBuildRequiresAtLeastOneFilter(t *testing.T) {
	_, err := Build(Params{})
	if !errors.Is(err, ErrNoFilter) {
		t.Fatalf("expected ErrNoFilter, got %v", err)
	}

	_, err = Build(Params{Owner: "   "})
	if !errors.Is(err, ErrNoFilter) {
		t.Fatalf("expected ErrNoFilter for blank values, got %v", err)
	}
}

func TestBuildRejectsInvertedRange(t *testing.T) {
	_, err := Build(Params{CFStart: "2024-02-01", CFEnd: "2024-01-01"})
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestBuildRejectsUnparseableDate(t *testing.T) {
	_, err := Build(Params{NPStart: "not-a-date"})
	var badDate *BadDateError
	if !errors.As(err, &badDate) {
		t.Fatalf("expected BadDateError, got %v", err)
	}
	if badDate.Param != "npStart" {
		t.Fatalf("expected param npStart, got %q", badDate.Param)
	}
}

func TestBuildAcceptsEqualStartAndEnd(t *testing.T) {
	f, err := Build(Params{AuthStart: "2024-06-15", AuthEnd: "2024-06-15"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(f.ranges) != 1 {
		t.Fatalf("expected one range, got %d", len(f.ranges))
	}
	rng := f.ranges[0].rng
	if rng.start == nil || rng.end == nil {
		t.Fatalf("expected both bounds set")
	}
	if !rng.end.After(*rng.start) {
		t.Fatalf("expected end-of-day widening to put end after start, start=%s end=%s", rng.start, rng.end)
	}
}

func TestParseDateFormats(t *testing.T) {
	if _, err := ParseDate("2024-01-02"); err != nil {
		t.Fatalf("date-only: %v", err)
	}
	if _, err := ParseDate("2024-01-02T15:04:05Z"); err != nil {
		t.Fatalf("rfc3339: %v", err)
	}
	if _, err := ParseDate("02/01/2024"); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestEndOfDayWidening(t *testing.T) {
	f, err := Build(Params{CFEnd: "2024-01-31"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	end := f.ranges[0].rng.end
	if end == nil {
		t.Fatalf("expected end bound")
	}
	want := time.Date(2024, 1, 31, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
	if !end.Equal(want) {
		t.Fatalf("expected end=%s, got %s", want, end)
	}
}

func TestApplyFiltersAgainstDatabase(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "docfilter-test.db")
	conn, err := dbutil.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := dbutil.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	user := models.User{Username: "tester", Email: "tester@example.com", Password: "hash"}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}

	date := func(y int, m time.Month, d, hh int) *time.Time {
		v := time.Date(y, m, d, hh, 0, 0, 0, time.UTC)
		return &v
	}
	docs := []models.Document{
		{Owner: "Ravi Kumar", VehicleNumber: "KL07AB1234", CF: date(2024, 1, 15, 9), UserID: user.ID},
		{Owner: "Ravi Kumar", VehicleNumber: "KL07CD5678", CF: date(2024, 1, 31, 18), UserID: user.ID},
		{Owner: "Anita Menon", VehicleNumber: "KA01XY9999", CF: date(2024, 2, 1, 0), UserID: user.ID},
	}
	for i := range docs {
		if errCreate := conn.Create(&docs[i]).Error; errCreate != nil {
			t.Fatalf("create doc: %v", errCreate)
		}
	}

	find := func(t *testing.T, p Params) []models.Document {
		t.Helper()
		f, errBuild := Build(p)
		if errBuild != nil {
			t.Fatalf("build: %v", errBuild)
		}
		q := conn.Model(&models.Document{}).Where("user_id = ?", user.ID)
		q = f.Apply(conn, q)
		var out []models.Document
		if errFind := q.Order("created_at DESC").Find(&out).Error; errFind != nil {
			t.Fatalf("find: %v", errFind)
		}
		return out
	}

	t.Run("cf window is end-of-day inclusive", func(t *testing.T) {
		out := find(t, Params{CFStart: "2024-01-01", CFEnd: "2024-01-31"})
		if len(out) != 2 {
			t.Fatalf("expected 2 docs in january window, got %d", len(out))
		}
		for _, doc := range out {
			if doc.VehicleNumber == "KA01XY9999" {
				t.Fatalf("february doc leaked into january window")
			}
		}
	})

	t.Run("owner substring is case-insensitive", func(t *testing.T) {
		out := find(t, Params{Owner: "ravi"})
		if len(out) != 2 {
			t.Fatalf("expected 2 docs for owner ravi, got %d", len(out))
		}
	})

	t.Run("vehicle number matches exactly after uppercasing", func(t *testing.T) {
		out := find(t, Params{VehicleNumber: "kl07ab1234"})
		if len(out) != 1 || out[0].VehicleNumber != "KL07AB1234" {
			t.Fatalf("expected exact match for KL07AB1234, got %v", out)
		}
	})

	t.Run("filters are AND-combined", func(t *testing.T) {
		out := find(t, Params{Owner: "Ravi", CFStart: "2024-01-20"})
		if len(out) != 1 || out[0].VehicleNumber != "KL07CD5678" {
			t.Fatalf("expected only the late-january ravi doc, got %v", out)
		}
	})

	t.Run("start-only bound is a floor", func(t *testing.T) {
		out := find(t, Params{CFStart: "2024-02-01"})
		if len(out) != 1 || out[0].VehicleNumber != "KA01XY9999" {
			t.Fatalf("expected only the february doc, got %v", out)
		}
	})
}
