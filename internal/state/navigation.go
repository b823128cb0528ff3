package state

import (
	"database/sql"
	"errors"
	"time"

	dbutil "github.com/llehouerou/ptui/internal/db"
)

// maxRemembered bounds how many directories keep a saved position.
const maxRemembered = 500

// NavigationState is where the viewer was in one directory.
type NavigationState struct {
	Dir          string
	SelectedName string
	Slideshow    bool
	UpdatedAt    time.Time
}

func getNavigation(db *sql.DB, dir string) (*NavigationState, error) {
	row := db.QueryRow(`
		SELECT dir, selected_name, slideshow, updated_at
		FROM navigation_state WHERE dir = ?
	`, dir)

	var state NavigationState
	var selectedName sql.NullString
	var updatedAt int64

	err := row.Scan(&state.Dir, &selectedName, &state.Slideshow, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // no saved state is valid on first visit
	}
	if err != nil {
		return nil, err
	}

	state.SelectedName = dbutil.NullStringValue(selectedName)
	state.UpdatedAt = time.Unix(0, updatedAt)
	return &state, nil
}

func saveNavigation(db *sql.DB, state NavigationState) error {
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now()
	}
	return dbutil.WithTx(db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO navigation_state (dir, selected_name, slideshow, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(dir) DO UPDATE SET
				selected_name = excluded.selected_name,
				slideshow = excluded.slideshow,
				updated_at = excluded.updated_at
		`, state.Dir, state.SelectedName, state.Slideshow, state.UpdatedAt.UnixNano())
		if err != nil {
			return err
		}

		_, err = tx.Exec(`
			DELETE FROM navigation_state WHERE dir NOT IN (
				SELECT dir FROM navigation_state ORDER BY updated_at DESC LIMIT ?
			)
		`, maxRemembered)
		return err
	})
}
