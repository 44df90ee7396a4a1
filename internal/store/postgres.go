package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/arcadia-gg/session-server/internal/board"
)

// sessionRow is the Remote Session Store row shape: the board serialized as
// JSON plus the version/lastUpdate bookkeeping, keyed by session id.
type sessionRow struct {
	SessionID     string         `gorm:"primaryKey;size:32"`
	CurrentState  datatypes.JSON `gorm:"not null"`
	CurrentPlayer int
	Version       int       `gorm:"not null;default:0"`
	Status        string    `gorm:"size:16;not null"`
	LastUpdate    time.Time `gorm:"not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (sessionRow) TableName() string { return "game_sessions" }

// Postgres implements Store on a gorm-managed Postgres database.
type Postgres struct {
	db *gorm.DB
}

// OpenPostgres connects with the pgx driver and migrates the sessions table.
func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open postgres: %v", ErrRemote, err)
	}
	return NewPostgres(db)
}

func NewPostgres(db *gorm.DB) (*Postgres, error) {
	if err := db.AutoMigrate(&sessionRow{}); err != nil {
		return nil, fmt.Errorf("%w: migrate game_sessions: %v", ErrRemote, err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Create(ctx context.Context, sessionID string, state board.GameState) error {
	raw, err := json.Marshal(state.CurrentState)
	if err != nil {
		return fmt.Errorf("encode board: %w", err)
	}
	row := sessionRow{
		SessionID:     sessionID,
		CurrentState:  raw,
		CurrentPlayer: state.CurrentPlayer,
		Version:       state.Version,
		Status:        string(StatusNotStarted),
		LastUpdate:    state.LastUpdate,
	}
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrExists
		}
		return fmt.Errorf("%w: create session %s: %v", ErrRemote, sessionID, err)
	}
	return nil
}

func (p *Postgres) Read(ctx context.Context, sessionID string) (board.GameState, error) {
	var row sessionRow
	err := p.db.WithContext(ctx).First(&row, "session_id = ?", sessionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return board.GameState{}, ErrNotFound
		}
		return board.GameState{}, fmt.Errorf("%w: read session %s: %v", ErrRemote, sessionID, err)
	}
	return decodeRow(row)
}

func (p *Postgres) ReadStatus(ctx context.Context, sessionID string) (Status, error) {
	var row sessionRow
	err := p.db.WithContext(ctx).Select("session_id", "status").First(&row, "session_id = ?", sessionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: read status %s: %v", ErrRemote, sessionID, err)
	}
	return Status(row.Status), nil
}

// Write merges the cell updates into the row under a row lock, so two
// concurrent writes to disjoint indices both land and each accepted write
// bumps Version by exactly one.
func (p *Postgres) Write(ctx context.Context, sessionID string, updates []board.CellUpdate) (board.GameState, error) {
	var merged board.GameState
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row sessionRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&row, "session_id = ?", sessionID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("%w: lock session %s: %v", ErrRemote, sessionID, err)
		}
		if Status(row.Status) == StatusEnded {
			return ErrArchived
		}

		current, err := decodeRow(row)
		if err != nil {
			return err
		}
		merged, err = board.ApplyUpdates(current, updates)
		if err != nil {
			return err
		}
		merged.Version = current.Version + 1

		raw, err := json.Marshal(merged.CurrentState)
		if err != nil {
			return fmt.Errorf("encode board: %w", err)
		}
		res := tx.Model(&sessionRow{}).Where("session_id = ?", sessionID).Updates(map[string]any{
			"current_state": datatypes.JSON(raw),
			"version":       merged.Version,
			"last_update":   merged.LastUpdate,
		})
		if res.Error != nil {
			return fmt.Errorf("%w: write session %s: %v", ErrRemote, sessionID, res.Error)
		}
		return nil
	})
	if err != nil {
		return board.GameState{}, err
	}
	return merged, nil
}

func (p *Postgres) SetStatus(ctx context.Context, sessionID string, status Status) error {
	res := p.db.WithContext(ctx).Model(&sessionRow{}).
		Where("session_id = ?", sessionID).
		Update("status", string(status))
	if res.Error != nil {
		return fmt.Errorf("%w: set status %s: %v", ErrRemote, sessionID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Archive(ctx context.Context, sessionID string) error {
	return p.SetStatus(ctx, sessionID, StatusEnded)
}

func decodeRow(row sessionRow) (board.GameState, error) {
	var cells []board.Cell
	if err := json.Unmarshal(row.CurrentState, &cells); err != nil {
		return board.GameState{}, fmt.Errorf("decode board for %s: %w", row.SessionID, err)
	}
	return board.GameState{
		CurrentState:  cells,
		CurrentPlayer: row.CurrentPlayer,
		Version:       row.Version,
		LastUpdate:    row.LastUpdate,
	}, nil
}
