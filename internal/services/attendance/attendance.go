// Package attendance implements rooms, attendants, wallet binding and
// attendance records.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/classchain/classchain/internal/entity"
	"github.com/classchain/classchain/internal/lib/sigverify"
	"github.com/classchain/classchain/internal/nonce"
	"github.com/classchain/classchain/internal/storage"
)

// takePrompt is the message an attendant signs; it embeds the declared
// identity so the signature covers the attendance claim itself.
const takePrompt = "Attendance check-in\nName: %s\nStudent ID: %s\nNonce: %s"

var (
	ErrValidation       = errors.New("validation error")
	ErrRoomNotFound     = errors.New("room not found or unauthorized")
	ErrRoomClosed       = errors.New("room is closed")
	ErrInvalidNonce     = errors.New("invalid or expired link, please rescan")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrAlreadyRecorded  = errors.New("attendance already recorded today")
	ErrWalletMismatch   = errors.New("attendant already registered with a different wallet address")
	ErrWalletInUse      = errors.New("already has a registered wallet address")
)

type RoomStorage interface {
	SaveRoom(ctx context.Context, alias string, createdBy int64, semesterID *int64) (int64, error)
	RoomByID(ctx context.Context, id int64) (entity.AttendanceRoom, error)
	RoomsByAdmin(ctx context.Context, adminID int64) ([]entity.AttendanceRoom, error)
	UpdateRoom(ctx context.Context, id int64, alias string, isOpen bool, adminID int64) error
	DeleteRoom(ctx context.Context, id, adminID int64) error
}

type AttendantStorage interface {
	SaveAttendant(ctx context.Context, firstName, lastName, uid string, adminID int64) (int64, error)
	AttendantByID(ctx context.Context, id int64) (entity.Attendant, error)
	AttendantByUID(ctx context.Context, adminID int64, uid string) (entity.Attendant, error)
	AttendantByWallet(ctx context.Context, adminID int64, address string) (entity.Attendant, error)
	AttendantsByAdmin(ctx context.Context, adminID int64) ([]entity.Attendant, error)
	UpdateAttendant(ctx context.Context, id int64, firstName, lastName, uid string, adminID int64) error
	DeleteAttendant(ctx context.Context, id, adminID int64) error
	BindWallet(ctx context.Context, attendantID int64, address string) error
}

type RecordStorage interface {
	SaveRecord(ctx context.Context, attendantID, roomID int64) (int64, error)
	HasRecordForDay(ctx context.Context, attendantID, roomID int64, day time.Time) (bool, error)
	RecordRows(ctx context.Context, adminID int64, filter entity.RecordFilter, limit, offset int) ([]entity.RecordRow, error)
}

type GroupStorage interface {
	SaveSemester(ctx context.Context, name string, adminID int64) (int64, error)
	SemestersByAdmin(ctx context.Context, adminID int64) ([]entity.Semester, error)
	SaveClass(ctx context.Context, name string, adminID int64) (int64, error)
	ClassesByAdmin(ctx context.Context, adminID int64) ([]entity.Class, error)
	AssignAttendantToClass(ctx context.Context, attendantID, classID int64) error
}

type Attendance struct {
	log        *slog.Logger
	rooms      RoomStorage
	attendants AttendantStorage
	records    RecordStorage
	groups     GroupStorage
	nonces     *nonce.Store
}

func New(log *slog.Logger, rooms RoomStorage, attendants AttendantStorage, records RecordStorage, groups GroupStorage, nonces *nonce.Store) *Attendance {
	return &Attendance{
		log:        log,
		rooms:      rooms,
		attendants: attendants,
		records:    records,
		groups:     groups,
		nonces:     nonces,
	}
}

func (a *Attendance) CreateRoom(ctx context.Context, alias string, adminID int64, semesterID *int64) (int64, error) {
	const op = "attendance.CreateRoom"

	if alias == "" {
		return 0, fmt.Errorf("%w: alias is empty", ErrValidation)
	}

	roomID, err := a.rooms.SaveRoom(ctx, alias, adminID, semesterID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	a.log.Info("room created", slog.Int64("roomID", roomID), slog.Int64("adminID", adminID))

	return roomID, nil
}

func (a *Attendance) GetRooms(ctx context.Context, adminID int64) ([]entity.AttendanceRoom, error) {
	const op = "attendance.GetRooms"

	rooms, err := a.rooms.RoomsByAdmin(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return rooms, nil
}

func (a *Attendance) GetRoom(ctx context.Context, id, adminID int64) (entity.AttendanceRoom, error) {
	const op = "attendance.GetRoom"

	room, err := a.rooms.RoomByID(ctx, id)
	if err != nil || room.CreatedBy != adminID {
		return entity.AttendanceRoom{}, fmt.Errorf("%s: %w", op, ErrRoomNotFound)
	}

	return room, nil
}

func (a *Attendance) UpdateRoom(ctx context.Context, id int64, alias string, isOpen bool, adminID int64) error {
	const op = "attendance.UpdateRoom"

	if alias == "" {
		return fmt.Errorf("%w: alias is empty", ErrValidation)
	}

	err := a.rooms.UpdateRoom(ctx, id, alias, isOpen, adminID)
	if err != nil {
		if errors.Is(err, storage.ErrRoomNotFound) {
			return fmt.Errorf("%s: %w", op, ErrRoomNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (a *Attendance) DeleteRoom(ctx context.Context, id, adminID int64) error {
	const op = "attendance.DeleteRoom"

	err := a.rooms.DeleteRoom(ctx, id, adminID)
	if err != nil {
		if errors.Is(err, storage.ErrRoomNotFound) {
			return fmt.Errorf("%s: %w", op, ErrRoomNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	a.log.Info("room deleted", slog.Int64("roomID", id), slog.Int64("adminID", adminID))

	return nil
}

// NewAttendanceLink issues the shared room nonce and returns the token with
// its absolute expiry for QR display.
func (a *Attendance) NewAttendanceLink(ctx context.Context, roomID, adminID int64) (string, time.Time, error) {
	const op = "attendance.NewAttendanceLink"

	room, err := a.rooms.RoomByID(ctx, roomID)
	if err != nil || room.CreatedBy != adminID {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, ErrRoomNotFound)
	}

	key := nonce.AttendanceKey(roomID)
	token, err := a.nonces.Issue(ctx, key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	remaining, err := a.nonces.RemainingTTL(ctx, key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return token, time.Now().Add(remaining), nil
}

func (a *Attendance) CreateAttendant(ctx context.Context, firstName, lastName, uid string, adminID int64) (int64, error) {
	const op = "attendance.CreateAttendant"

	if firstName == "" || lastName == "" || uid == "" {
		return 0, fmt.Errorf("%w: name and student id are required", ErrValidation)
	}

	id, err := a.attendants.SaveAttendant(ctx, firstName, lastName, uid, adminID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (a *Attendance) GetAttendants(ctx context.Context, adminID int64) ([]entity.Attendant, error) {
	const op = "attendance.GetAttendants"

	attendants, err := a.attendants.AttendantsByAdmin(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return attendants, nil
}

func (a *Attendance) UpdateAttendant(ctx context.Context, id int64, firstName, lastName, uid string, adminID int64) error {
	const op = "attendance.UpdateAttendant"

	if firstName == "" || lastName == "" || uid == "" {
		return fmt.Errorf("%w: name and student id are required", ErrValidation)
	}

	if err := a.attendants.UpdateAttendant(ctx, id, firstName, lastName, uid, adminID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (a *Attendance) DeleteAttendant(ctx context.Context, id, adminID int64) error {
	const op = "attendance.DeleteAttendant"

	if err := a.attendants.DeleteAttendant(ctx, id, adminID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// TakeAttendance is the public check-in flow: validate the shared room nonce,
// verify the signature over the declared identity, bind or match the wallet,
// and append at most one record per attendant per room per day.
func (a *Attendance) TakeAttendance(ctx context.Context, roomID int64, nonceToken, uid, address, signature string) (int64, entity.Attendant, error) {
	const op = "attendance.TakeAttendance"

	log := a.log.With(slog.String("op", op), slog.Int64("roomID", roomID))

	room, err := a.rooms.RoomByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, storage.ErrRoomNotFound) {
			return 0, entity.Attendant{}, fmt.Errorf("%s: %w", op, ErrRoomNotFound)
		}
		return 0, entity.Attendant{}, fmt.Errorf("%s: %w", op, err)
	}
	if !room.IsOpen {
		return 0, entity.Attendant{}, fmt.Errorf("%s: %w", op, ErrRoomClosed)
	}

	ok, err := a.nonces.Validate(ctx, nonce.AttendanceKey(roomID), nonceToken)
	if err != nil {
		return 0, entity.Attendant{}, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return 0, entity.Attendant{}, fmt.Errorf("%s: %w", op, ErrInvalidNonce)
	}

	attendant, err := a.attendants.AttendantByUID(ctx, room.CreatedBy, uid)
	if err != nil {
		if errors.Is(err, storage.ErrAttendantNotFound) {
			return 0, entity.Attendant{}, fmt.Errorf("%s: %w", op, storage.ErrAttendantNotFound)
		}
		return 0, entity.Attendant{}, fmt.Errorf("%s: %w", op, err)
	}

	name := attendant.FirstName + " " + attendant.LastName
	message := fmt.Sprintf(takePrompt, name, attendant.UID, nonceToken)
	valid, err := sigverify.Verify(message, signature, address)
	if err != nil || !valid {
		log.Warn("signature verification failed", slog.String("uid", uid))
		return 0, entity.Attendant{}, fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}

	if attendant.WalletAddress != nil {
		// One-way binding: a bound attendant only ever checks in with the
		// same wallet.
		if !strings.EqualFold(*attendant.WalletAddress, address) {
			return 0, entity.Attendant{}, fmt.Errorf("%s: %w", op, ErrWalletMismatch)
		}
	} else {
		_, err := a.attendants.AttendantByWallet(ctx, room.CreatedBy, address)
		if err == nil {
			return 0, entity.Attendant{}, fmt.Errorf("%s: %w", op, ErrWalletInUse)
		}
		if !errors.Is(err, storage.ErrAttendantNotFound) {
			return 0, entity.Attendant{}, fmt.Errorf("%s: %w", op, err)
		}

		if err := a.attendants.BindWallet(ctx, attendant.ID, address); err != nil {
			return 0, entity.Attendant{}, fmt.Errorf("%s: %w", op, err)
		}
		attendant.WalletAddress = &address
		log.Info("wallet bound", slog.Int64("attendantID", attendant.ID))
	}

	exists, err := a.records.HasRecordForDay(ctx, attendant.ID, roomID, time.Now())
	if err != nil {
		return 0, entity.Attendant{}, fmt.Errorf("%s: %w", op, err)
	}
	if exists {
		return 0, entity.Attendant{}, fmt.Errorf("%s: %w", op, ErrAlreadyRecorded)
	}

	recordID, err := a.records.SaveRecord(ctx, attendant.ID, roomID)
	if err != nil {
		return 0, entity.Attendant{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("attendance recorded", slog.Int64("attendantID", attendant.ID), slog.Int64("recordID", recordID))

	return recordID, attendant, nil
}

// GetRecords returns one page of denormalized records for the admin's rooms.
func (a *Attendance) GetRecords(ctx context.Context, adminID int64, filter entity.RecordFilter, limit, offset int) ([]entity.RecordRow, error) {
	const op = "attendance.GetRecords"

	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	records, err := a.records.RecordRows(ctx, adminID, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return records, nil
}

func (a *Attendance) CreateSemester(ctx context.Context, name string, adminID int64) (int64, error) {
	const op = "attendance.CreateSemester"

	if name == "" {
		return 0, fmt.Errorf("%w: name is empty", ErrValidation)
	}

	id, err := a.groups.SaveSemester(ctx, name, adminID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (a *Attendance) GetSemesters(ctx context.Context, adminID int64) ([]entity.Semester, error) {
	const op = "attendance.GetSemesters"

	semesters, err := a.groups.SemestersByAdmin(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return semesters, nil
}

func (a *Attendance) CreateClass(ctx context.Context, name string, adminID int64) (int64, error) {
	const op = "attendance.CreateClass"

	if name == "" {
		return 0, fmt.Errorf("%w: name is empty", ErrValidation)
	}

	id, err := a.groups.SaveClass(ctx, name, adminID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (a *Attendance) GetClasses(ctx context.Context, adminID int64) ([]entity.Class, error) {
	const op = "attendance.GetClasses"

	classes, err := a.groups.ClassesByAdmin(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return classes, nil
}

func (a *Attendance) AssignAttendantToClass(ctx context.Context, attendantID, classID, adminID int64) error {
	const op = "attendance.AssignAttendantToClass"

	attendant, err := a.attendants.AttendantByID(ctx, attendantID)
	if err != nil || attendant.AdminID != adminID {
		return fmt.Errorf("%s: %w", op, storage.ErrAttendantNotFound)
	}

	if err := a.groups.AssignAttendantToClass(ctx, attendantID, classID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
