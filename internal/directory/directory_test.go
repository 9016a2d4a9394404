package directory

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	logx "agrisms/pkg/logx"
)

func openTest(t *testing.T, dir string) Directory {
	t.Helper()
	d, err := OpenFile(filepath.Join(dir, "contacts.json"), logx.Nop())
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestNormalizePhone(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "+251911234567", want: "+251911234567"},
		{raw: "251911234567", want: "+251911234567"},
		{raw: "0911234567", want: "+251911234567"},
		{raw: "911234567", want: "+251911234567"},
		{raw: "091 123 4567", want: "+251911234567"},
		{raw: "+1 (415) 555-0100", want: "+14155550100"},
	}
	for _, tt := range tests {
		got, err := NormalizePhone(tt.raw)
		if err != nil {
			t.Errorf("NormalizePhone(%q) error: %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}

	if _, err := NormalizePhone("not a number"); err == nil {
		t.Error("expected error for digit-free input")
	}
}

func TestAddLookupRemove(t *testing.T) {
	t.Parallel()
	d := openTest(t, t.TempDir())
	ctx := context.Background()

	added, err := d.AddContact(ctx, Contact{
		Name:              "Tesfa Bekele",
		Phone:             "0966123456",
		Location:          "Hawassa",
		PreferredLanguage: "amharic",
	})
	if err != nil {
		t.Fatalf("AddContact: %v", err)
	}
	if added.Phone != "+251966123456" {
		t.Fatalf("Phone = %q", added.Phone)
	}
	if added.PreferredLanguage != "am" {
		t.Fatalf("PreferredLanguage = %q", added.PreferredLanguage)
	}
	if added.CreatedAt.IsZero() {
		t.Fatal("CreatedAt not set")
	}

	if _, err := d.AddContact(ctx, Contact{Name: "Meron Haile", Phone: "0977234567", Location: "Hawassa", PreferredLanguage: "en"}); err != nil {
		t.Fatalf("AddContact: %v", err)
	}

	got, err := d.LookupByLocation(ctx, "Hawassa")
	if err != nil {
		t.Fatalf("LookupByLocation: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Tesfa Bekele" || got[1].Name != "Meron Haile" {
		t.Fatalf("lookup = %+v", got)
	}

	if err := d.RemoveContact(ctx, "Hawassa", "+251966123456"); err != nil {
		t.Fatalf("RemoveContact: %v", err)
	}
	got, err = d.LookupByLocation(ctx, "Hawassa")
	if err != nil {
		t.Fatalf("LookupByLocation: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Meron Haile" {
		t.Fatalf("lookup after remove = %+v", got)
	}
}

func TestLookupUnknownLocationIsEmpty(t *testing.T) {
	t.Parallel()
	d := openTest(t, t.TempDir())
	got, err := d.LookupByLocation(context.Background(), "Atlantis")
	if err != nil {
		t.Fatalf("LookupByLocation: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty contact set, got %v", got)
	}
}

func TestDuplicatePhoneRejected(t *testing.T) {
	t.Parallel()
	d := openTest(t, t.TempDir())
	ctx := context.Background()

	if _, err := d.AddContact(ctx, Contact{Name: "A", Phone: "0911234567", Location: "Adama"}); err != nil {
		t.Fatalf("AddContact: %v", err)
	}
	// same number in a different format
	_, err := d.AddContact(ctx, Contact{Name: "B", Phone: "+251 911 234 567", Location: "Adama"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate add = %v, want ErrDuplicate", err)
	}
	// same number at a different location is fine
	if _, err := d.AddContact(ctx, Contact{Name: "B", Phone: "0911234567", Location: "Hawassa"}); err != nil {
		t.Fatalf("AddContact other location: %v", err)
	}
}

func TestRemoveMissing(t *testing.T) {
	t.Parallel()
	d := openTest(t, t.TempDir())
	ctx := context.Background()

	if err := d.RemoveContact(ctx, "Nowhere", "0911234567"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("remove from unknown location = %v, want ErrNotFound", err)
	}
	if _, err := d.AddContact(ctx, Contact{Name: "A", Phone: "0911234567", Location: "Adama"}); err != nil {
		t.Fatalf("AddContact: %v", err)
	}
	if err := d.RemoveContact(ctx, "Adama", "0922000000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("remove unknown phone = %v, want ErrNotFound", err)
	}
}

func TestRemoveLastContactDropsLocation(t *testing.T) {
	t.Parallel()
	d := openTest(t, t.TempDir())
	ctx := context.Background()

	if _, err := d.AddContact(ctx, Contact{Name: "A", Phone: "0911234567", Location: "Adama"}); err != nil {
		t.Fatalf("AddContact: %v", err)
	}
	if err := d.RemoveContact(ctx, "Adama", "0911234567"); err != nil {
		t.Fatalf("RemoveContact: %v", err)
	}
	locs, err := d.Locations(ctx)
	if err != nil {
		t.Fatalf("Locations: %v", err)
	}
	if len(locs) != 0 {
		t.Fatalf("Locations = %v, want empty", locs)
	}
}

func TestReopenRestoresContacts(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	d := openTest(t, dir)
	ctx := context.Background()

	if _, err := d.AddContact(ctx, Contact{Name: "Diriba Gutema", Phone: "0988345678", Location: "Adama", PreferredLanguage: "om"}); err != nil {
		t.Fatalf("AddContact: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	d2 := openTest(t, dir)
	got, err := d2.LookupByLocation(ctx, "Adama")
	if err != nil {
		t.Fatalf("LookupByLocation: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Diriba Gutema" || got[0].PreferredLanguage != "om" {
		t.Fatalf("contacts lost across reopen: %+v", got)
	}

	locs, err := d2.Locations(ctx)
	if err != nil {
		t.Fatalf("Locations: %v", err)
	}
	if len(locs) != 1 || locs[0] != "Adama" {
		t.Fatalf("Locations = %v", locs)
	}
}

func TestUnknownPreferredLanguageRejected(t *testing.T) {
	t.Parallel()
	d := openTest(t, t.TempDir())
	_, err := d.AddContact(context.Background(), Contact{Name: "A", Phone: "0911234567", Location: "Adama", PreferredLanguage: "fr"})
	if err == nil {
		t.Fatal("expected error for unknown preferred language")
	}
}
