package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"agrisms/internal/model"
	logx "agrisms/pkg/logx"
)

// fileDirectory keeps the contact book in one JSON file keyed by
// location, rewritten atomically (tmp + rename) on every change.
type fileDirectory struct {
	log   logx.Logger
	clock func() time.Time

	mu       sync.RWMutex
	path     string
	contacts map[string][]Contact
}

// OpenFile loads (or starts) a file-backed directory.
func OpenFile(path string, log logx.Logger) (Directory, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("directory.path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	contacts := map[string][]Contact{}
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// fresh contact book
	case err != nil:
		return nil, fmt.Errorf("load contacts: %w", err)
	default:
		if err := json.Unmarshal(b, &contacts); err != nil {
			return nil, fmt.Errorf("load contacts: %w", err)
		}
	}

	n := 0
	for _, cs := range contacts {
		n += len(cs)
	}
	log.Debug("contacts loaded", logx.String("path", path), logx.Int("contacts", n))
	return &fileDirectory{
		log:      log,
		clock:    time.Now,
		path:     path,
		contacts: contacts,
	}, nil
}

func (d *fileDirectory) Close() error { return nil }

func (d *fileDirectory) LookupByLocation(ctx context.Context, location string) ([]Contact, error) {
	_ = ctx
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Contact(nil), d.contacts[location]...), nil
}

func (d *fileDirectory) AddContact(ctx context.Context, c Contact) (Contact, error) {
	_ = ctx
	phone, err := NormalizePhone(c.Phone)
	if err != nil {
		return Contact{}, err
	}
	c.Phone = phone
	if c.Location = strings.TrimSpace(c.Location); c.Location == "" {
		return Contact{}, errors.New("contact location is required")
	}
	if c.PreferredLanguage != "" {
		code, ok := model.NormalizeLanguage(c.PreferredLanguage)
		if !ok {
			return Contact{}, fmt.Errorf("unknown preferred language %q", c.PreferredLanguage)
		}
		c.PreferredLanguage = code
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = d.clock().UTC()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, existing := range d.contacts[c.Location] {
		if existing.Phone == c.Phone {
			return Contact{}, ErrDuplicate
		}
	}
	d.contacts[c.Location] = append(d.contacts[c.Location], c)
	if err := d.persistLocked(); err != nil {
		cs := d.contacts[c.Location]
		d.contacts[c.Location] = cs[:len(cs)-1]
		return Contact{}, err
	}
	d.log.Info("contact added", logx.String("location", c.Location), logx.String("phone", c.Phone))
	return c, nil
}

func (d *fileDirectory) RemoveContact(ctx context.Context, location, phone string) error {
	_ = ctx
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	prev, ok := d.contacts[location]
	if !ok {
		return ErrNotFound
	}
	next := prev[:0:0]
	for _, c := range prev {
		if c.Phone != normalized {
			next = append(next, c)
		}
	}
	if len(next) == len(prev) {
		return ErrNotFound
	}
	if len(next) == 0 {
		delete(d.contacts, location)
	} else {
		d.contacts[location] = next
	}
	if err := d.persistLocked(); err != nil {
		d.contacts[location] = prev
		return err
	}
	d.log.Info("contact removed", logx.String("location", location), logx.String("phone", normalized))
	return nil
}

func (d *fileDirectory) Locations(ctx context.Context) ([]string, error) {
	_ = ctx
	d.mu.RLock()
	out := make([]string, 0, len(d.contacts))
	for loc := range d.contacts {
		out = append(out, loc)
	}
	d.mu.RUnlock()
	sort.Strings(out)
	return out, nil
}

func (d *fileDirectory) persistLocked() error {
	tmp := d.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("persist contacts: %w", err)
	}
	if err := json.NewEncoder(f).Encode(d.contacts); err != nil {
		_ = f.Close()
		return fmt.Errorf("persist contacts: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("persist contacts: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("persist contacts: %w", err)
	}
	if err := os.Rename(tmp, d.path); err != nil {
		return fmt.Errorf("persist contacts: %w", err)
	}
	return nil
}
