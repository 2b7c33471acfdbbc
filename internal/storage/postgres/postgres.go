package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/classchain/classchain/internal/entity"
	"github.com/classchain/classchain/internal/storage"
	"github.com/lib/pq"
	_ "github.com/lib/pq"
)

type Storage struct {
	db *sql.DB
}

func New(postgresURL string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", postgresURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// mapPqError translates constraint violations into storage sentinels.
func mapPqError(err error, onUnique error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return onUnique
		case "23503":
			return storage.ErrForeignKeyViolation
		}
	}
	return err
}

func (s *Storage) AdminByWallet(ctx context.Context, address string) (entity.Admin, error) {
	const op = "storage.postgres.AdminByWallet"

	query := `SELECT id, wallet_address, role, created_at FROM admins WHERE lower(wallet_address) = lower($1)`

	var admin entity.Admin
	err := s.db.QueryRowContext(ctx, query, address).Scan(&admin.ID, &admin.WalletAddress, &admin.Role, &admin.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Admin{}, fmt.Errorf("%s: %w", op, storage.ErrAdminNotFound)
		}
		return entity.Admin{}, fmt.Errorf("%s: %w", op, err)
	}

	return admin, nil
}

func (s *Storage) SaveSemester(ctx context.Context, name string, adminID int64) (int64, error) {
	const op = "storage.postgres.SaveSemester"

	query := `INSERT INTO semesters (name, admin_id) VALUES ($1, $2) RETURNING id`

	var id int64
	err := s.db.QueryRowContext(ctx, query, name, adminID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (s *Storage) SemestersByAdmin(ctx context.Context, adminID int64) ([]entity.Semester, error) {
	const op = "storage.postgres.SemestersByAdmin"

	query := `SELECT id, name, admin_id FROM semesters WHERE admin_id = $1 ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, adminID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var semesters []entity.Semester
	for rows.Next() {
		var sem entity.Semester
		if err := rows.Scan(&sem.ID, &sem.Name, &sem.AdminID); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		semesters = append(semesters, sem)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows error: %w", op, err)
	}

	return semesters, nil
}

func (s *Storage) SaveClass(ctx context.Context, name string, adminID int64) (int64, error) {
	const op = "storage.postgres.SaveClass"

	query := `INSERT INTO classes (name, admin_id) VALUES ($1, $2) RETURNING id`

	var id int64
	err := s.db.QueryRowContext(ctx, query, name, adminID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (s *Storage) ClassesByAdmin(ctx context.Context, adminID int64) ([]entity.Class, error) {
	const op = "storage.postgres.ClassesByAdmin"

	query := `SELECT id, name, admin_id FROM classes WHERE admin_id = $1 ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, adminID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var classes []entity.Class
	for rows.Next() {
		var class entity.Class
		if err := rows.Scan(&class.ID, &class.Name, &class.AdminID); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		classes = append(classes, class)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows error: %w", op, err)
	}

	return classes, nil
}

func (s *Storage) AssignAttendantToClass(ctx context.Context, attendantID, classID int64) error {
	const op = "storage.postgres.AssignAttendantToClass"

	query := `INSERT INTO attendant_classes (attendant_id, class_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`

	_, err := s.db.ExecContext(ctx, query, attendantID, classID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapPqError(err, storage.ErrClassNotFound))
	}

	return nil
}
