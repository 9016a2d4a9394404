package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"agrisms/internal/model"
	logx "agrisms/pkg/logx"
)

var drivers = []string{"sqlite", "file"}

func openTest(t *testing.T, driver, dir string) Store {
	t.Helper()
	st, err := Open(Config{Driver: driver, Path: filepath.Join(dir, "results.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open(%s): %v", driver, err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func setClock(t *testing.T, st Store, fn func() time.Time) {
	t.Helper()
	switch s := st.(type) {
	case *sqliteStore:
		s.clock = fn
	case *fileStore:
		s.clock = fn
	default:
		t.Fatalf("unknown store type %T", st)
	}
}

func payload(lon float64) model.InsertPayload {
	return model.InsertPayload{
		LocationName:    "Addis Ababa",
		Latitude:        9.0320,
		Longitude:       lon,
		RecommendedCrop: "Maize",
		ConfidenceScore: 0.85,
		Features: map[string]model.FeatureValue{
			"nitrogen":     model.NumberFeature(45.2),
			"climate_zone": model.LabelFeature("tropical"),
		},
		Advice:       map[string]string{"en": "Plant now", "am": "አሁን ይትከሉ"},
		Alternatives: []model.AlternativeCrop{{Crop: "Rice", Confidence: 0.78}},
	}
}

func TestInsertGetRoundTrip(t *testing.T) {
	for _, driver := range drivers {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			st := openTest(t, driver, t.TempDir())
			fixed := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
			setClock(t, st, func() time.Time { return fixed })

			rec, err := st.Insert(context.Background(), payload(38.7469))
			if err != nil {
				t.Fatalf("Insert: %v", err)
			}
			if want := "20260314T092653Z_9.0320_38.7469"; rec.ID != want {
				t.Fatalf("ID = %q, want %q", rec.ID, want)
			}
			if !rec.Timestamp.Equal(fixed) {
				t.Fatalf("Timestamp = %v, want %v", rec.Timestamp, fixed)
			}

			got, err := st.Get(context.Background(), rec.ID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.RecommendedCrop != "Maize" || got.ConfidenceScore != 0.85 {
				t.Fatalf("unexpected record: %+v", got)
			}
			if got.Advice["am"] != "አሁን ይትከሉ" {
				t.Fatalf("Advice = %v", got.Advice)
			}
			if fv := got.Features["nitrogen"]; !fv.IsNumber || fv.Number != 45.2 {
				t.Fatalf("Features = %v", got.Features)
			}
			if fv := got.Features["climate_zone"]; fv.Label != "tropical" {
				t.Fatalf("Features = %v", got.Features)
			}
			if len(got.Alternatives) != 1 || got.Alternatives[0].Crop != "Rice" {
				t.Fatalf("Alternatives = %v", got.Alternatives)
			}
		})
	}
}

func TestGetMissing(t *testing.T) {
	for _, driver := range drivers {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			st := openTest(t, driver, t.TempDir())
			if _, err := st.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get missing = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestListOrderAndDelete(t *testing.T) {
	for _, driver := range drivers {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			st := openTest(t, driver, t.TempDir())
			base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
			tick := 0
			setClock(t, st, func() time.Time {
				tick++
				return base.Add(time.Duration(tick) * time.Second)
			})

			var ids []string
			for i := 0; i < 5; i++ {
				rec, err := st.Insert(context.Background(), payload(38.0+float64(i)))
				if err != nil {
					t.Fatalf("Insert %d: %v", i, err)
				}
				ids = append(ids, rec.ID)
			}

			if err := st.Delete(context.Background(), ids[1]); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := st.Delete(context.Background(), ids[3]); err != nil {
				t.Fatalf("Delete: %v", err)
			}

			sums, err := st.List(context.Background())
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(sums) != 3 {
				t.Fatalf("len(List) = %d, want 3", len(sums))
			}
			// newest first
			want := []string{ids[4], ids[2], ids[0]}
			for i, sum := range sums {
				if sum.ID != want[i] {
					t.Fatalf("List[%d] = %s, want %s", i, sum.ID, want[i])
				}
			}
		})
	}
}

func TestDeleteMissingLeavesStoreIntact(t *testing.T) {
	for _, driver := range drivers {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			st := openTest(t, driver, t.TempDir())
			rec, err := st.Insert(context.Background(), payload(38.7469))
			if err != nil {
				t.Fatalf("Insert: %v", err)
			}
			if err := st.Delete(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Delete missing = %v, want ErrNotFound", err)
			}
			sums, err := st.List(context.Background())
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(sums) != 1 || sums[0].ID != rec.ID {
				t.Fatalf("store contents changed: %v", sums)
			}
		})
	}
}

func TestInsertCollisionOverwrites(t *testing.T) {
	for _, driver := range drivers {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			st := openTest(t, driver, t.TempDir())
			fixed := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
			setClock(t, st, func() time.Time { return fixed })

			first, err := st.Insert(context.Background(), payload(38.7469))
			if err != nil {
				t.Fatalf("Insert: %v", err)
			}
			second := payload(38.7469)
			second.RecommendedCrop = "Teff"
			rec, err := st.Insert(context.Background(), second)
			if err != nil {
				t.Fatalf("Insert: %v", err)
			}
			if rec.ID != first.ID {
				t.Fatalf("collision produced new id %q != %q", rec.ID, first.ID)
			}

			sums, err := st.List(context.Background())
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(sums) != 1 {
				t.Fatalf("len(List) = %d, want 1", len(sums))
			}
			got, err := st.Get(context.Background(), first.ID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.RecommendedCrop != "Teff" {
				t.Fatalf("overwrite lost: crop = %q", got.RecommendedCrop)
			}
		})
	}
}

func TestConcurrentInserts(t *testing.T) {
	for _, driver := range drivers {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			st := openTest(t, driver, t.TempDir())
			const workers = 16

			var wg sync.WaitGroup
			errs := make(chan error, workers)
			for i := 0; i < workers; i++ {
				i := i
				wg.Add(1)
				go func() {
					defer wg.Done()
					// distinct coordinates, so ids never collide even
					// within the same second
					_, err := st.Insert(context.Background(), payload(30.0+float64(i)))
					errs <- err
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				if err != nil {
					t.Fatalf("concurrent Insert: %v", err)
				}
			}

			sums, err := st.List(context.Background())
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(sums) != workers {
				t.Fatalf("len(List) = %d, want %d", len(sums), workers)
			}
		})
	}
}

func TestReopenRestoresRecords(t *testing.T) {
	for _, driver := range drivers {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			dir := t.TempDir()
			st := openTest(t, driver, dir)
			rec, err := st.Insert(context.Background(), payload(38.7469))
			if err != nil {
				t.Fatalf("Insert: %v", err)
			}
			doomed, err := st.Insert(context.Background(), payload(39.1))
			if err != nil {
				t.Fatalf("Insert: %v", err)
			}
			if err := st.Delete(context.Background(), doomed.ID); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := st.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			st2 := openTest(t, driver, dir)
			got, err := st2.Get(context.Background(), rec.ID)
			if err != nil {
				t.Fatalf("Get after reopen: %v", err)
			}
			if got.RecommendedCrop != rec.RecommendedCrop || !got.Timestamp.Equal(rec.Timestamp) {
				t.Fatalf("record changed across reopen: %+v vs %+v", got, rec)
			}
			if got.Advice["en"] != "Plant now" {
				t.Fatalf("Advice lost across reopen: %v", got.Advice)
			}
			if _, err := st2.Get(context.Background(), doomed.ID); !errors.Is(err, ErrNotFound) {
				t.Fatalf("deleted record resurrected: %v", err)
			}
		})
	}
}

func TestPruneBefore(t *testing.T) {
	for _, driver := range drivers {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			st := openTest(t, driver, t.TempDir())
			base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
			cur := base
			setClock(t, st, func() time.Time { return cur })

			for i := 0; i < 4; i++ {
				cur = base.AddDate(0, 0, i)
				if _, err := st.Insert(context.Background(), payload(38.0+float64(i))); err != nil {
					t.Fatalf("Insert %d: %v", i, err)
				}
			}

			n, err := st.PruneBefore(context.Background(), base.AddDate(0, 0, 2))
			if err != nil {
				t.Fatalf("PruneBefore: %v", err)
			}
			if n != 2 {
				t.Fatalf("pruned %d, want 2", n)
			}
			sums, err := st.List(context.Background())
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(sums) != 2 {
				t.Fatalf("len(List) = %d, want 2", len(sums))
			}

			if n, err := st.PruneBefore(context.Background(), base); err != nil || n != 0 {
				t.Fatalf("noop prune = (%d, %v)", n, err)
			}
		})
	}
}

func TestInsertRejectsInvalidPayload(t *testing.T) {
	for _, driver := range drivers {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			st := openTest(t, driver, t.TempDir())
			bad := payload(38.7469)
			bad.RecommendedCrop = ""
			_, err := st.Insert(context.Background(), bad)
			var ve *model.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Insert invalid = %v, want ValidationError", err)
			}
			sums, err := st.List(context.Background())
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(sums) != 0 {
				t.Fatalf("rejected payload was persisted: %v", sums)
			}
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "redis", Path: "x"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestLegacyLanguageKeysNormalized(t *testing.T) {
	for _, driver := range drivers {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			st := openTest(t, driver, t.TempDir())
			p := payload(38.7469)
			p.Advice = map[string]string{"english": "Plant now", "afaan_oromo": "Amma dhaabi"}
			rec, err := st.Insert(context.Background(), p)
			if err != nil {
				t.Fatalf("Insert: %v", err)
			}
			got, err := st.Get(context.Background(), rec.ID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Advice["en"] != "Plant now" || got.Advice["om"] != "Amma dhaabi" {
				t.Fatalf("Advice = %v", got.Advice)
			}
		})
	}
}

func BenchmarkInsertFile(b *testing.B) {
	st, err := Open(Config{Driver: "file", Path: filepath.Join(b.TempDir(), "results.db")}, logx.Nop())
	if err != nil {
		b.Fatal(err)
	}
	defer st.Close()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := st.Insert(context.Background(), payload(float64(i%360)-180+0.0001*float64(i))); err != nil {
			b.Fatal(err)
		}
	}
}
