package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/mastery"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
	"github.com/brightpath-labs/brightpath-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// MASTERY REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

const masteryColumns = `user_id, skill_id, mastery, streak_correct, streak_wrong,
	last_seen_at, next_review_at, created_at, updated_at`

// MasteryRepository implements mastery.Repository on PostgreSQL. Mutations
// run under SELECT ... FOR UPDATE so concurrent submissions for the same
// (user, skill) never lose streak updates.
type MasteryRepository struct {
	conn    *Connection
	retrier *retry.Retrier
}

// NewMasteryRepository creates the repository.
func NewMasteryRepository(conn *Connection) *MasteryRepository {
	return &MasteryRepository{
		conn:    conn,
		retrier: retry.DatabaseRetrier(),
	}
}

// GetOrCreate returns the mastery row, inserting a zero row when missing.
func (r *MasteryRepository) GetOrCreate(ctx context.Context, user shared.UserID, skill shared.SkillID) (*mastery.SkillMastery, error) {
	row := r.conn.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO skill_mastery (user_id, skill_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, skill_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING %s
	`, masteryColumns), string(user), string(skill))

	m, err := scanMastery(row)
	if err != nil {
		return nil, fmt.Errorf("mastery: get or create: %w", err)
	}
	return m, nil
}

// GetForUser returns every mastery row of the user.
func (r *MasteryRepository) GetForUser(ctx context.Context, user shared.UserID) ([]*mastery.SkillMastery, error) {
	rows, err := r.conn.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM skill_mastery WHERE user_id = $1 ORDER BY skill_id
	`, masteryColumns), string(user))
	if err != nil {
		return nil, fmt.Errorf("mastery: get for user: %w", err)
	}
	defer rows.Close()

	var out []*mastery.SkillMastery
	for rows.Next() {
		m, err := scanMastery(rows)
		if err != nil {
			return nil, fmt.Errorf("mastery: scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetForSkills returns the stored rows for the given skills, keyed by skill.
// Skills without a row are absent from the map; the caller treats them as
// zero mastery.
func (r *MasteryRepository) GetForSkills(ctx context.Context, user shared.UserID, skills []shared.SkillID) (map[shared.SkillID]*mastery.SkillMastery, error) {
	if len(skills) == 0 {
		return map[shared.SkillID]*mastery.SkillMastery{}, nil
	}

	ids := make([]string, 0, len(skills))
	for _, s := range skills {
		ids = append(ids, string(s))
	}

	rows, err := r.conn.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM skill_mastery WHERE user_id = $1 AND skill_id = ANY($2)
	`, masteryColumns), string(user), ids)
	if err != nil {
		return nil, fmt.Errorf("mastery: get for skills: %w", err)
	}
	defer rows.Close()

	out := make(map[shared.SkillID]*mastery.SkillMastery, len(skills))
	for rows.Next() {
		m, err := scanMastery(rows)
		if err != nil {
			return nil, fmt.Errorf("mastery: scan: %w", err)
		}
		out[m.SkillID] = m
	}
	return out, rows.Err()
}

// Mutate applies fn to the row under a row lock and writes the result back.
// Serialization failures and deadlocks are retried with backoff.
func (r *MasteryRepository) Mutate(ctx context.Context, user shared.UserID, skill shared.SkillID, fn func(*mastery.SkillMastery) error) (*mastery.SkillMastery, error) {
	var result *mastery.SkillMastery

	err := r.retrier.Do(ctx, func(ctx context.Context) error {
		txErr := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
			row := tx.QueryRow(ctx, fmt.Sprintf(`
				INSERT INTO skill_mastery (user_id, skill_id)
				VALUES ($1, $2)
				ON CONFLICT (user_id, skill_id) DO UPDATE SET user_id = EXCLUDED.user_id
				RETURNING %s
			`, masteryColumns), string(user), string(skill))

			m, err := scanMastery(row)
			if err != nil {
				return err
			}

			// Re-read under lock; the upsert above only guarantees existence.
			row = tx.QueryRow(ctx, fmt.Sprintf(`
				SELECT %s FROM skill_mastery
				WHERE user_id = $1 AND skill_id = $2
				FOR UPDATE
			`, masteryColumns), string(user), string(skill))
			m, err = scanMastery(row)
			if err != nil {
				return err
			}

			if err := fn(m); err != nil {
				return retry.Permanent(err)
			}

			_, err = tx.Exec(ctx, `
				UPDATE skill_mastery SET
					mastery = $3,
					streak_correct = $4,
					streak_wrong = $5,
					last_seen_at = $6,
					next_review_at = $7,
					updated_at = $8
				WHERE user_id = $1 AND skill_id = $2
			`, string(user), string(skill),
				m.Mastery, m.StreakCorrect, m.StreakWrong,
				m.LastSeenAt, m.NextReviewAt, m.UpdatedAt)
			if err != nil {
				return err
			}

			result = m
			return nil
		})
		if txErr != nil && !retry.IsPermanent(txErr) && !IsSerializationFailure(txErr) {
			// Non-transient failures are not worth a second round trip.
			return retry.Permanent(txErr)
		}
		return txErr
	})
	if err != nil {
		return nil, fmt.Errorf("mastery: mutate: %w", err)
	}
	return result, nil
}

// FindDueForReview returns the skills whose next review is at or before now.
func (r *MasteryRepository) FindDueForReview(ctx context.Context, user shared.UserID, now time.Time) ([]shared.SkillID, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT skill_id FROM skill_mastery
		WHERE user_id = $1 AND next_review_at IS NOT NULL AND next_review_at <= $2
		ORDER BY next_review_at
	`, string(user), now)
	if err != nil {
		return nil, fmt.Errorf("mastery: find due: %w", err)
	}
	defer rows.Close()

	var due []shared.SkillID
	for rows.Next() {
		var skill string
		if err := rows.Scan(&skill); err != nil {
			return nil, fmt.Errorf("mastery: scan skill: %w", err)
		}
		due = append(due, shared.SkillID(skill))
	}
	return due, rows.Err()
}

func scanMastery(row pgx.Row) (*mastery.SkillMastery, error) {
	var m mastery.SkillMastery
	var user, skill string
	err := row.Scan(
		&user, &skill,
		&m.Mastery, &m.StreakCorrect, &m.StreakWrong,
		&m.LastSeenAt, &m.NextReviewAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	m.UserID = shared.UserID(user)
	m.SkillID = shared.SkillID(skill)
	return &m, nil
}
