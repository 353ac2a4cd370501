package store

import (
	"errors"
	"testing"
	"time"

	"github.com/hazyhaar/fidelity/compat"
	"github.com/hazyhaar/fidelity/tolerance"

	_ "modernc.org/sqlite"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return New(OpenMemory(t))
}

func sampleRun(name string, passed bool) *Run {
	return &Run{
		DocName:      name,
		DocType:      "word",
		Profile:      "normal",
		Passed:       passed,
		SurvivalRate: 92.5,
		Report: &compat.CompatibilityReport{
			Profile: "normal",
			Platforms: []compat.PlatformCompatibility{
				{Platform: "libreoffice", TotalCarriers: 12, Preserved: 11, Modified: 1, SurvivalRate: 92.5},
			},
		},
	}
}

func TestRunRoundTrip(t *testing.T) {
	s := testStore(t)

	id, err := s.SaveRun(sampleRun("quarterly.docx", true))
	if err != nil {
		t.Fatal(err)
	}
	if id == 0 {
		t.Fatal("id not assigned")
	}

	got, err := s.GetRun(id)
	if err != nil {
		t.Fatal(err)
	}
	if got.DocName != "quarterly.docx" || !got.Passed || got.SurvivalRate != 92.5 {
		t.Fatalf("run = %+v", got)
	}
	if got.Report == nil || len(got.Report.Platforms) != 1 {
		t.Fatalf("report not decoded: %+v", got.Report)
	}
	if got.Report.Platforms[0].Platform != "libreoffice" {
		t.Fatalf("platform = %q", got.Report.Platforms[0].Platform)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("created_at not set")
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	s := testStore(t)

	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"a.docx", "b.docx", "c.docx"} {
		r := sampleRun(name, i%2 == 0)
		r.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if _, err := s.SaveRun(r); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := s.ListRuns(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Fatalf("runs = %d, want 3", len(runs))
	}
	if runs[0].DocName != "c.docx" || runs[2].DocName != "a.docx" {
		t.Fatalf("order = %s, %s, %s", runs[0].DocName, runs[1].DocName, runs[2].DocName)
	}
	// Listing skips report decoding.
	for _, r := range runs {
		if r.Report != nil {
			t.Fatalf("list decoded report for %s", r.DocName)
		}
	}

	limited, err := s.ListRuns(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Fatalf("limited = %d, want 2", len(limited))
	}
}

func TestGetRunNotFound(t *testing.T) {
	s := testStore(t)
	if _, err := s.GetRun(999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	s := testStore(t)
	reg := tolerance.NewConfig()
	p, err := reg.CreateCustomProfile("brand-review", tolerance.ProfileStrict)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.PutProfile(p); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetProfile("brand-review")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "brand-review" || got.Level != p.Level || len(got.Rules) != len(p.Rules) {
		t.Fatalf("profile = %+v", got)
	}

	// Upsert replaces in place.
	p.CriticalPaths = append(p.CriticalPaths, "w:tbl")
	if err := s.PutProfile(p); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetProfile("brand-review")
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, cp := range got.CriticalPaths {
		if cp == "w:tbl" {
			found = true
		}
	}
	if !found {
		t.Fatal("upsert did not replace the record")
	}
}

func TestLoadProfilesSkipsBadRecords(t *testing.T) {
	s := testStore(t)
	reg := tolerance.NewConfig()

	good, err := reg.CreateCustomProfile("good", tolerance.ProfileNormal)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.PutProfile(good); err != nil {
		t.Fatal(err)
	}
	// A record that no longer decodes must not block the rest.
	if _, err := s.db.Exec(
		`INSERT INTO profiles (name, record_json, updated_at) VALUES ('broken', '{not json', 0)`,
	); err != nil {
		t.Fatal(err)
	}

	fresh := tolerance.NewConfig()
	loaded, errs := s.LoadProfiles(fresh)
	if loaded != 1 {
		t.Fatalf("loaded = %d, want 1", loaded)
	}
	if len(errs) != 1 {
		t.Fatalf("errs = %v, want one decode error", errs)
	}
	if _, err := fresh.Profile("good"); err != nil {
		t.Fatalf("good profile not registered: %v", err)
	}
}

func TestDeleteProfile(t *testing.T) {
	s := testStore(t)
	reg := tolerance.NewConfig()
	p, err := reg.CreateCustomProfile("temp", tolerance.ProfileLenient)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.PutProfile(p); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteProfile("temp"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetProfile("temp"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := s.DeleteProfile("temp"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}
}
