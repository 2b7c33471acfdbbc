package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/classchain/classchain/internal/entity"
	"github.com/classchain/classchain/internal/storage"
	"github.com/lib/pq"
)

func (s *Storage) SaveRoom(ctx context.Context, alias string, createdBy int64, semesterID *int64) (int64, error) {
	const op = "storage.postgres.SaveRoom"

	query := `INSERT INTO attendance_rooms (alias, created_by, semester_id) VALUES ($1, $2, $3) RETURNING id`

	var id int64
	err := s.db.QueryRowContext(ctx, query, alias, createdBy, semesterID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, mapPqError(err, storage.ErrSemesterNotFound))
	}

	return id, nil
}

func (s *Storage) RoomByID(ctx context.Context, id int64) (entity.AttendanceRoom, error) {
	const op = "storage.postgres.RoomByID"

	query := `SELECT id, alias, is_open, created_by, semester_id, created_at, updated_at FROM attendance_rooms WHERE id = $1`

	var room entity.AttendanceRoom
	err := s.db.QueryRowContext(ctx, query, id).Scan(&room.ID, &room.Alias, &room.IsOpen, &room.CreatedBy, &room.SemesterID, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.AttendanceRoom{}, fmt.Errorf("%s: %w", op, storage.ErrRoomNotFound)
		}
		return entity.AttendanceRoom{}, fmt.Errorf("%s: %w", op, err)
	}

	return room, nil
}

func (s *Storage) RoomsByAdmin(ctx context.Context, adminID int64) ([]entity.AttendanceRoom, error) {
	const op = "storage.postgres.RoomsByAdmin"

	query := `SELECT id, alias, is_open, created_by, semester_id, created_at, updated_at FROM attendance_rooms WHERE created_by = $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, adminID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var rooms []entity.AttendanceRoom
	for rows.Next() {
		var room entity.AttendanceRoom
		if err := rows.Scan(&room.ID, &room.Alias, &room.IsOpen, &room.CreatedBy, &room.SemesterID, &room.CreatedAt, &room.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		rooms = append(rooms, room)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows error: %w", op, err)
	}

	return rooms, nil
}

func (s *Storage) UpdateRoom(ctx context.Context, id int64, alias string, isOpen bool, adminID int64) error {
	const op = "storage.postgres.UpdateRoom"

	const query = `UPDATE attendance_rooms SET alias = $1, is_open = $2, updated_at = NOW() WHERE id = $3 AND created_by = $4`

	res, err := s.db.ExecContext(ctx, query, alias, isOpen, id, adminID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrRoomNotFound)
	}
	return nil
}

func (s *Storage) DeleteRoom(ctx context.Context, id, adminID int64) error {
	const op = "storage.postgres.DeleteRoom"

	query := `DELETE FROM attendance_rooms WHERE id = $1 AND created_by = $2`

	res, err := s.db.ExecContext(ctx, query, id, adminID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrRoomNotFound
	}

	return nil
}

func (s *Storage) SaveAttendant(ctx context.Context, firstName, lastName, uid string, adminID int64) (int64, error) {
	const op = "storage.postgres.SaveAttendant"

	query := `INSERT INTO attendants (first_name, last_name, uid, admin_id) VALUES ($1, $2, $3, $4) RETURNING id`

	var id int64
	err := s.db.QueryRowContext(ctx, query, firstName, lastName, uid, adminID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, mapPqError(err, storage.ErrAttendantExists))
	}

	return id, nil
}

func (s *Storage) AttendantByID(ctx context.Context, id int64) (entity.Attendant, error) {
	const op = "storage.postgres.AttendantByID"

	query := `SELECT id, first_name, last_name, uid, wallet_address, admin_id, created_at FROM attendants WHERE id = $1`

	return s.scanAttendant(ctx, op, query, id)
}

func (s *Storage) AttendantByUID(ctx context.Context, adminID int64, uid string) (entity.Attendant, error) {
	const op = "storage.postgres.AttendantByUID"

	query := `SELECT id, first_name, last_name, uid, wallet_address, admin_id, created_at FROM attendants WHERE admin_id = $1 AND uid = $2`

	return s.scanAttendant(ctx, op, query, adminID, uid)
}

func (s *Storage) AttendantByWallet(ctx context.Context, adminID int64, address string) (entity.Attendant, error) {
	const op = "storage.postgres.AttendantByWallet"

	query := `SELECT id, first_name, last_name, uid, wallet_address, admin_id, created_at FROM attendants WHERE admin_id = $1 AND lower(wallet_address) = lower($2)`

	return s.scanAttendant(ctx, op, query, adminID, address)
}

func (s *Storage) scanAttendant(ctx context.Context, op, query string, args ...any) (entity.Attendant, error) {
	var a entity.Attendant
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&a.ID, &a.FirstName, &a.LastName, &a.UID, &a.WalletAddress, &a.AdminID, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Attendant{}, fmt.Errorf("%s: %w", op, storage.ErrAttendantNotFound)
		}
		return entity.Attendant{}, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

func (s *Storage) AttendantsByAdmin(ctx context.Context, adminID int64) ([]entity.Attendant, error) {
	const op = "storage.postgres.AttendantsByAdmin"

	query := `SELECT id, first_name, last_name, uid, wallet_address, admin_id, created_at FROM attendants WHERE admin_id = $1 ORDER BY last_name, first_name`

	rows, err := s.db.QueryContext(ctx, query, adminID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var attendants []entity.Attendant
	for rows.Next() {
		var a entity.Attendant
		if err := rows.Scan(&a.ID, &a.FirstName, &a.LastName, &a.UID, &a.WalletAddress, &a.AdminID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		attendants = append(attendants, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows error: %w", op, err)
	}

	return attendants, nil
}

func (s *Storage) UpdateAttendant(ctx context.Context, id int64, firstName, lastName, uid string, adminID int64) error {
	const op = "storage.postgres.UpdateAttendant"

	const query = `UPDATE attendants SET first_name = $1, last_name = $2, uid = $3 WHERE id = $4 AND admin_id = $5`

	res, err := s.db.ExecContext(ctx, query, firstName, lastName, uid, id, adminID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapPqError(err, storage.ErrAttendantExists))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrAttendantNotFound)
	}
	return nil
}

func (s *Storage) DeleteAttendant(ctx context.Context, id, adminID int64) error {
	const op = "storage.postgres.DeleteAttendant"

	query := `DELETE FROM attendants WHERE id = $1 AND admin_id = $2`

	res, err := s.db.ExecContext(ctx, query, id, adminID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrAttendantNotFound
	}

	return nil
}

// BindWallet sets the wallet address only when none is bound yet. The binding
// is one-way; a bound address never changes.
func (s *Storage) BindWallet(ctx context.Context, attendantID int64, address string) error {
	const op = "storage.postgres.BindWallet"

	const query = `UPDATE attendants SET wallet_address = $1 WHERE id = $2 AND wallet_address IS NULL`

	res, err := s.db.ExecContext(ctx, query, address, attendantID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrWalletAlreadyBound)
	}
	return nil
}

func (s *Storage) SaveRecord(ctx context.Context, attendantID, roomID int64) (int64, error) {
	const op = "storage.postgres.SaveRecord"

	query := `INSERT INTO attendance_records (attendant_id, room_id) VALUES ($1, $2) RETURNING id`

	var id int64
	err := s.db.QueryRowContext(ctx, query, attendantID, roomID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, mapPqError(err, storage.ErrRoomNotFound))
	}

	return id, nil
}

func (s *Storage) HasRecordForDay(ctx context.Context, attendantID, roomID int64, day time.Time) (bool, error) {
	const op = "storage.postgres.HasRecordForDay"

	query := `
		SELECT EXISTS(
			SELECT 1
			FROM attendance_records
			WHERE attendant_id = $1
			AND room_id = $2
			AND created_at::date = $3::date
		)`

	var exists bool
	err := s.db.QueryRowContext(ctx, query, attendantID, roomID, day).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}

// RecordRows returns one page of denormalized attendance records for the
// admin's rooms, oldest first so export pages are stable.
func (s *Storage) RecordRows(ctx context.Context, adminID int64, filter entity.RecordFilter, limit, offset int) ([]entity.RecordRow, error) {
	const op = "storage.postgres.RecordRows"

	query := `
		SELECT rec.id,
		       att.first_name || ' ' || att.last_name,
		       att.uid,
		       room.alias,
		       COALESCE(sem.name, ''),
		       COALESCE(array_agg(cls.name ORDER BY cls.name) FILTER (WHERE cls.name IS NOT NULL), '{}'),
		       rec.created_at
		FROM attendance_records rec
		JOIN attendants att ON att.id = rec.attendant_id
		JOIN attendance_rooms room ON room.id = rec.room_id
		LEFT JOIN semesters sem ON sem.id = room.semester_id
		LEFT JOIN attendant_classes ac ON ac.attendant_id = att.id
		LEFT JOIN classes cls ON cls.id = ac.class_id
		WHERE room.created_by = $1
		AND ($2 = 0 OR room.semester_id = $2)
		AND ($3 = 0 OR EXISTS(
			SELECT 1 FROM attendant_classes fc WHERE fc.attendant_id = att.id AND fc.class_id = $3
		))
		GROUP BY rec.id, att.first_name, att.last_name, att.uid, room.alias, sem.name, rec.created_at
		ORDER BY rec.id
		LIMIT $4 OFFSET $5`

	rows, err := s.db.QueryContext(ctx, query, adminID, filter.SemesterID, filter.ClassID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var records []entity.RecordRow
	for rows.Next() {
		var rec entity.RecordRow
		if err := rows.Scan(&rec.ID, &rec.StudentName, &rec.StudentUID, &rec.Room, &rec.Semester, pq.Array(&rec.Classes), &rec.Date); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows error: %w", op, err)
	}

	return records, nil
}
