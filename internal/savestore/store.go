// Package savestore persists save slots as JSON files with atomic writes,
// a rolling backup and recovery from corrupt primaries.
package savestore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/example/nihongoquest/pkg/logger"
	"github.com/example/nihongoquest/pkg/models"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidSlot       = errors.New("invalid save slot")
	ErrNilRecord         = errors.New("save record is nil")
	ErrInvalidDifficulty = errors.New("invalid difficulty")
)

// Options configures a Store
type Options struct {
	Dir      string
	MaxSlots int
	// Upper bound (exclusive) for current_monument; 0 disables the check
	TotalMonuments int
}

// DefaultOptions returns options for dir with six slots
func DefaultOptions(dir string) Options {
	return Options{
		Dir:            dir,
		MaxSlots:       6,
		TotalMonuments: 13,
	}
}

// Store reads and writes save slots in a single directory
type Store struct {
	opts Options
	clk  func() time.Time
	log  *logrus.Entry
}

// New creates a store. The directory is created on first save.
func New(opts Options) *Store {
	if opts.MaxSlots < 1 {
		opts.MaxSlots = 1
	}
	return &Store{
		opts: opts,
		clk:  time.Now,
		log:  logger.For("savestore"),
	}
}

// WithClock replaces the clock used to stamp last_played
func (s *Store) WithClock(clk func() time.Time) *Store {
	if clk != nil {
		s.clk = clk
	}
	return s
}

// Dir returns the save directory
func (s *Store) Dir() string {
	return s.opts.Dir
}

// MaxSlots returns the number of slots
func (s *Store) MaxSlots() int {
	return s.opts.MaxSlots
}

func (s *Store) primaryPath(slot int) string {
	return filepath.Join(s.opts.Dir, fmt.Sprintf("save_slot_%d.json", slot))
}

func (s *Store) backupPath(slot int) string {
	return filepath.Join(s.opts.Dir, fmt.Sprintf("save_slot_%d.bak.json", slot))
}

// ValidateSlot reports ErrInvalidSlot for slots outside 1..MaxSlots
func (s *Store) ValidateSlot(slot int) error {
	if slot < 1 || slot > s.opts.MaxSlots {
		return fmt.Errorf("%w: %d (must be 1..%d)", ErrInvalidSlot, slot, s.opts.MaxSlots)
	}
	return nil
}

// Save writes rec to slot. It stamps rec.Slot and rec.LastPlayed, keeps a
// copy of the previous primary as the backup and swaps the new file in
// atomically. I/O and encoding failures are logged and reported as false.
func (s *Store) Save(slot int, rec *models.SaveRecord) (bool, error) {
	if err := s.ValidateSlot(slot); err != nil {
		return false, err
	}
	if rec == nil {
		return false, ErrNilRecord
	}
	return s.save(slot, rec, true), nil
}

func (s *Store) save(slot int, rec *models.SaveRecord, backup bool) bool {
	log := s.log.WithField("slot", slot)

	if err := os.MkdirAll(s.opts.Dir, 0755); err != nil {
		log.Errorf("Failed to create save directory: %v", err)
		return false
	}

	rec.Slot = slot
	stamp := s.clk().UTC().Format(time.RFC3339Nano)
	rec.LastPlayed = &stamp
	normalize(rec, s.opts.TotalMonuments, log)

	primary := s.primaryPath(slot)
	if backup && isRegularFile(primary) {
		if err := copyFile(primary, s.backupPath(slot)); err != nil {
			log.Warnf("Could not create backup: %v", err)
		}
	}

	data, err := encodeRecord(rec)
	if err != nil {
		log.Errorf("Failed to encode save: %v", err)
		return false
	}

	tmp := primary + ".tmp"
	if err := writeFileSync(tmp, data); err != nil {
		log.Errorf("Failed to write save: %v", err)
		removeQuietly(tmp)
		return false
	}
	if err := os.Rename(tmp, primary); err != nil {
		log.Errorf("Failed to replace save file: %v", err)
		removeQuietly(tmp)
		return false
	}

	log.Info("Game saved")
	return true
}

// Load reads slot, falling back to the backup when the primary is missing
// or corrupt. A record recovered from the backup is written back as the
// primary. Returns nil with no error when nothing usable exists.
func (s *Store) Load(slot int) (*models.SaveRecord, error) {
	if err := s.ValidateSlot(slot); err != nil {
		return nil, err
	}
	return s.load(slot), nil
}

func (s *Store) load(slot int) *models.SaveRecord {
	log := s.log.WithField("slot", slot)

	sources := []struct {
		path   string
		backup bool
	}{
		{s.primaryPath(slot), false},
		{s.backupPath(slot), true},
	}
	for _, src := range sources {
		data, err := os.ReadFile(src.path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				log.Warnf("Could not read %s: %v", filepath.Base(src.path), err)
			}
			continue
		}
		rec, err := decodeRecord(data, slot, s.opts.TotalMonuments, log)
		if err != nil {
			log.Warnf("Corrupt save file %s: %v", filepath.Base(src.path), err)
			continue
		}
		if src.backup {
			log.Warn("Restored save from backup")
			// The primary is corrupt or missing, so it must not replace the backup
			s.save(slot, rec, false)
		} else {
			log.Info("Game loaded")
		}
		return rec
	}

	log.Debug("No valid save found")
	return nil
}

// Delete removes the primary and backup of slot and reports whether any
// file was removed
func (s *Store) Delete(slot int) (bool, error) {
	if err := s.ValidateSlot(slot); err != nil {
		return false, err
	}
	log := s.log.WithField("slot", slot)

	removed := false
	for _, path := range []string{s.primaryPath(slot), s.backupPath(slot)} {
		err := os.Remove(path)
		switch {
		case err == nil:
			removed = true
		case errors.Is(err, fs.ErrNotExist):
		default:
			log.Errorf("Failed to delete %s: %v", filepath.Base(path), err)
		}
	}
	if removed {
		log.Info("Save deleted")
	}
	return removed, nil
}

// Exists reports whether a primary file exists for slot
func (s *Store) Exists(slot int) (bool, error) {
	if err := s.ValidateSlot(slot); err != nil {
		return false, err
	}
	return isRegularFile(s.primaryPath(slot)), nil
}

// ListAll loads every slot. Empty or unreadable slots map to nil.
func (s *Store) ListAll() map[int]*models.SaveRecord {
	saves := make(map[int]*models.SaveRecord, s.opts.MaxSlots)
	for slot := 1; slot <= s.opts.MaxSlots; slot++ {
		saves[slot] = s.load(slot)
	}
	return saves
}

// Create builds a fresh record for slot, saves it and returns it. A failed
// write is logged; the record is returned either way.
func (s *Store) Create(slot int, name string, appearance map[string]string, difficulty models.Difficulty) (*models.SaveRecord, error) {
	if err := s.ValidateSlot(slot); err != nil {
		return nil, err
	}
	if difficulty == "" {
		difficulty = models.DefaultDifficulty
	}
	if !difficulty.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDifficulty, difficulty)
	}

	rec := models.NewSaveRecord(slot)
	rec.PlayerName = name
	if appearance != nil {
		rec.CharacterAppearance = appearance
	}
	rec.Difficulty = difficulty

	if !s.save(slot, rec, true) {
		s.log.WithField("slot", slot).Warn("New save could not be written")
	}
	return rec, nil
}

// Summary returns the slot-picker view of slot, or nil when it is empty
func (s *Store) Summary(slot int) (*models.SaveSummary, error) {
	rec, err := s.Load(slot)
	if err != nil || rec == nil {
		return nil, err
	}
	summary := rec.Summary()
	return &summary, nil
}

// MostRecent returns the slot that was saved last
func (s *Store) MostRecent() (int, bool) {
	best := 0
	var bestTime time.Time
	for slot, rec := range s.ListAll() {
		if rec == nil || rec.LastPlayed == nil {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, *rec.LastPlayed)
		if err != nil {
			continue
		}
		if best == 0 || t.After(bestTime) || (t.Equal(bestTime) && slot < best) {
			best = slot
			bestTime = t
		}
	}
	return best, best != 0
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

func removeQuietly(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.For("savestore").Warnf("Could not remove %s: %v", path, err)
	}
}
