package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ProfileStore persists user profiles in SQLite, one row per user. It is the
// sole writer of profile state: callers read via Load and mutate via Update.
type ProfileStore struct {
	db                 *sql.DB
	defaultPersonality string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewProfileStore creates a store on an open database handle and ensures the
// schema exists.
func NewProfileStore(db *sql.DB, defaultPersonality string) (*ProfileStore, error) {
	s := &ProfileStore{
		db:                 db,
		defaultPersonality: defaultPersonality,
		locks:              make(map[string]*sync.Mutex),
	}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenProfileStore opens (or creates) the profile database at dbPath.
func OpenProfileStore(dbPath, defaultPersonality string) (*ProfileStore, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open profile db: %w", err)
	}
	return NewProfileStore(db, defaultPersonality)
}

func (s *ProfileStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS profiles (
			user_id     TEXT PRIMARY KEY,
			personality TEXT NOT NULL,
			history     TEXT NOT NULL DEFAULT '[]',
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("init profiles schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *ProfileStore) Close() error {
	return s.db.Close()
}

// userLock returns the mutex guarding read-modify-write sequences for one
// user. Locks are never released from the map; the set of users is the set
// of people talking to the bot.
func (s *ProfileStore) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

// load returns the stored profile for userID. First contact and a corrupt
// history column yield a fresh default profile; any other database error is
// returned so callers can tell "no usable record" apart from "could not read".
func (s *ProfileStore) load(userID string) (*UserProfile, error) {
	var personality, history string
	err := s.db.QueryRow(`SELECT personality, history FROM profiles WHERE user_id = ?`, userID).
		Scan(&personality, &history)
	if err == sql.ErrNoRows {
		return NewUserProfile(s.defaultPersonality), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	var turns []Turn
	if err := json.Unmarshal([]byte(history), &turns); err != nil {
		slog.Warn("Profile history corrupt, starting fresh", "user", userID, "error", err)
		return NewUserProfile(s.defaultPersonality), nil
	}
	return &UserProfile{Personality: personality, History: turns}, nil
}

// Load returns the stored profile for userID, or a fresh default profile for
// first contact. This is the read-only path: a database failure degrades to
// the default profile so a reply can still go out, it never writes anything.
func (s *ProfileStore) Load(userID string) *UserProfile {
	profile, err := s.load(userID)
	if err != nil {
		slog.Warn("Profile load failed, starting fresh", "user", userID, "error", err)
		return NewUserProfile(s.defaultPersonality)
	}
	return profile
}

// Save persists the full profile, replacing any prior version. The upsert is
// a single statement, so concurrent readers observe either the old or the
// new profile, never a partial one.
func (s *ProfileStore) Save(userID string, profile *UserProfile) error {
	history, err := json.Marshal(profile.History)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO profiles (user_id, personality, history, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			personality = excluded.personality,
			history     = excluded.history,
			updated_at  = excluded.updated_at
	`, userID, profile.Personality, string(history), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// Update runs fn on the current profile under the per-user lock and persists
// the result. Concurrent Update calls for the same user serialize; distinct
// users proceed independently. Callers must not perform service calls inside
// fn — the lock brackets only the memory mutation.
//
// Unlike Load, a database read failure aborts the update: saving a default
// profile built from a transient error would overwrite the user's history.
func (s *ProfileStore) Update(userID string, fn func(*UserProfile) error) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	profile, err := s.load(userID)
	if err != nil {
		return err
	}
	if err := fn(profile); err != nil {
		return err
	}
	return s.Save(userID, profile)
}
