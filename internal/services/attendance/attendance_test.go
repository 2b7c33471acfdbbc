package attendance_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/classchain/classchain/internal/entity"
	"github.com/classchain/classchain/internal/nonce"
	"github.com/classchain/classchain/internal/services/attendance"
	"github.com/classchain/classchain/internal/storage"
	"github.com/classchain/classchain/internal/testutil"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStorage struct {
	rooms      map[int64]entity.AttendanceRoom
	attendants map[int64]entity.Attendant
	records    []entity.AttendanceRecord
	nextID     int64
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		rooms:      make(map[int64]entity.AttendanceRoom),
		attendants: make(map[int64]entity.Attendant),
		nextID:     1,
	}
}

func (f *fakeStorage) id() int64 {
	id := f.nextID
	f.nextID++
	return id
}

func (f *fakeStorage) SaveRoom(_ context.Context, alias string, createdBy int64, semesterID *int64) (int64, error) {
	room := entity.AttendanceRoom{ID: f.id(), Alias: alias, IsOpen: true, CreatedBy: createdBy, SemesterID: semesterID}
	f.rooms[room.ID] = room
	return room.ID, nil
}

func (f *fakeStorage) RoomByID(_ context.Context, id int64) (entity.AttendanceRoom, error) {
	room, ok := f.rooms[id]
	if !ok {
		return entity.AttendanceRoom{}, storage.ErrRoomNotFound
	}
	return room, nil
}

func (f *fakeStorage) RoomsByAdmin(_ context.Context, adminID int64) ([]entity.AttendanceRoom, error) {
	var out []entity.AttendanceRoom
	for _, r := range f.rooms {
		if r.CreatedBy == adminID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStorage) UpdateRoom(_ context.Context, id int64, alias string, isOpen bool, adminID int64) error {
	room, ok := f.rooms[id]
	if !ok || room.CreatedBy != adminID {
		return storage.ErrRoomNotFound
	}
	room.Alias = alias
	room.IsOpen = isOpen
	f.rooms[id] = room
	return nil
}

func (f *fakeStorage) DeleteRoom(_ context.Context, id, adminID int64) error {
	room, ok := f.rooms[id]
	if !ok || room.CreatedBy != adminID {
		return storage.ErrRoomNotFound
	}
	delete(f.rooms, id)
	return nil
}

func (f *fakeStorage) SaveAttendant(_ context.Context, firstName, lastName, uid string, adminID int64) (int64, error) {
	for _, a := range f.attendants {
		if a.AdminID == adminID && a.UID == uid {
			return 0, storage.ErrAttendantExists
		}
	}
	att := entity.Attendant{ID: f.id(), FirstName: firstName, LastName: lastName, UID: uid, AdminID: adminID}
	f.attendants[att.ID] = att
	return att.ID, nil
}

func (f *fakeStorage) AttendantByID(_ context.Context, id int64) (entity.Attendant, error) {
	att, ok := f.attendants[id]
	if !ok {
		return entity.Attendant{}, storage.ErrAttendantNotFound
	}
	return att, nil
}

func (f *fakeStorage) AttendantByUID(_ context.Context, adminID int64, uid string) (entity.Attendant, error) {
	for _, a := range f.attendants {
		if a.AdminID == adminID && a.UID == uid {
			return a, nil
		}
	}
	return entity.Attendant{}, storage.ErrAttendantNotFound
}

func (f *fakeStorage) AttendantByWallet(_ context.Context, adminID int64, address string) (entity.Attendant, error) {
	for _, a := range f.attendants {
		if a.AdminID == adminID && a.WalletAddress != nil && strings.EqualFold(*a.WalletAddress, address) {
			return a, nil
		}
	}
	return entity.Attendant{}, storage.ErrAttendantNotFound
}

func (f *fakeStorage) AttendantsByAdmin(_ context.Context, adminID int64) ([]entity.Attendant, error) {
	var out []entity.Attendant
	for _, a := range f.attendants {
		if a.AdminID == adminID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStorage) UpdateAttendant(_ context.Context, id int64, firstName, lastName, uid string, adminID int64) error {
	att, ok := f.attendants[id]
	if !ok || att.AdminID != adminID {
		return storage.ErrAttendantNotFound
	}
	att.FirstName = firstName
	att.LastName = lastName
	att.UID = uid
	f.attendants[id] = att
	return nil
}

func (f *fakeStorage) DeleteAttendant(_ context.Context, id, adminID int64) error {
	att, ok := f.attendants[id]
	if !ok || att.AdminID != adminID {
		return storage.ErrAttendantNotFound
	}
	delete(f.attendants, id)
	return nil
}

func (f *fakeStorage) BindWallet(_ context.Context, attendantID int64, address string) error {
	att, ok := f.attendants[attendantID]
	if !ok {
		return storage.ErrAttendantNotFound
	}
	if att.WalletAddress != nil {
		return storage.ErrWalletAlreadyBound
	}
	att.WalletAddress = &address
	f.attendants[attendantID] = att
	return nil
}

func (f *fakeStorage) SaveRecord(_ context.Context, attendantID, roomID int64) (int64, error) {
	rec := entity.AttendanceRecord{ID: f.id(), AttendantID: attendantID, RoomID: roomID, CreatedAt: time.Now()}
	f.records = append(f.records, rec)
	return rec.ID, nil
}

func (f *fakeStorage) HasRecordForDay(_ context.Context, attendantID, roomID int64, day time.Time) (bool, error) {
	y, m, d := day.Date()
	for _, r := range f.records {
		ry, rm, rd := r.CreatedAt.Date()
		if r.AttendantID == attendantID && r.RoomID == roomID && ry == y && rm == m && rd == d {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStorage) RecordRows(_ context.Context, _ int64, _ entity.RecordFilter, limit, offset int) ([]entity.RecordRow, error) {
	var out []entity.RecordRow
	for i := offset; i < len(f.records) && len(out) < limit; i++ {
		r := f.records[i]
		att := f.attendants[r.AttendantID]
		out = append(out, entity.RecordRow{
			ID:          r.ID,
			StudentName: att.FirstName + " " + att.LastName,
			StudentUID:  att.UID,
			Room:        f.rooms[r.RoomID].Alias,
			Date:        r.CreatedAt,
		})
	}
	return out, nil
}

func (f *fakeStorage) SaveSemester(_ context.Context, name string, adminID int64) (int64, error) {
	return f.id(), nil
}

func (f *fakeStorage) SemestersByAdmin(_ context.Context, _ int64) ([]entity.Semester, error) {
	return nil, nil
}

func (f *fakeStorage) SaveClass(_ context.Context, name string, adminID int64) (int64, error) {
	return f.id(), nil
}

func (f *fakeStorage) ClassesByAdmin(_ context.Context, _ int64) ([]entity.Class, error) {
	return nil, nil
}

func (f *fakeStorage) AssignAttendantToClass(_ context.Context, _, _ int64) error {
	return nil
}

type fixture struct {
	service *attendance.Attendance
	storage *fakeStorage
	kv      *testutil.FakeKV
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := newFakeStorage()
	kv := testutil.NewFakeKV()
	nonces := nonce.NewStore(kv, 10*time.Minute)
	return &fixture{
		service: attendance.New(testutil.Logger(), st, st, st, st, nonces),
		storage: st,
		kv:      kv,
	}
}

// seedCheckIn creates an admin-owned open room with one attendant and a valid
// attendance link.
func (fx *fixture) seedCheckIn(t *testing.T) (roomID, attendantID int64, token string) {
	t.Helper()
	ctx := context.Background()

	roomID, err := fx.service.CreateRoom(ctx, "CS-101", 1, nil)
	require.NoError(t, err)

	attendantID, err = fx.service.CreateAttendant(ctx, "Ada", "Lovelace", "S-001", 1)
	require.NoError(t, err)

	token, _, err = fx.service.NewAttendanceLink(ctx, roomID, 1)
	require.NoError(t, err)

	return roomID, attendantID, token
}

func signCheckIn(priv *secp256k1.PrivateKey, name, uid, token string) string {
	message := fmt.Sprintf("Attendance check-in\nName: %s\nStudent ID: %s\nNonce: %s", name, uid, token)
	return testutil.SignPersonal(priv, message)
}

func TestTakeAttendance_Success_BindsWallet(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	roomID, attendantID, token := fx.seedCheckIn(t)

	priv, address := testutil.NewWallet()
	signature := signCheckIn(priv, "Ada Lovelace", "S-001", token)

	recordID, att, err := fx.service.TakeAttendance(ctx, roomID, token, "S-001", address, signature)
	require.NoError(t, err)
	assert.NotZero(t, recordID)
	assert.Equal(t, attendantID, att.ID)
	require.NotNil(t, att.WalletAddress)
	assert.Equal(t, address, *att.WalletAddress)

	stored := fx.storage.attendants[attendantID]
	require.NotNil(t, stored.WalletAddress)
	assert.Equal(t, address, *stored.WalletAddress)
}

func TestTakeAttendance_SecondDayNewRecord(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	roomID, attendantID, token := fx.seedCheckIn(t)

	priv, address := testutil.NewWallet()
	signature := signCheckIn(priv, "Ada Lovelace", "S-001", token)

	_, _, err := fx.service.TakeAttendance(ctx, roomID, token, "S-001", address, signature)
	require.NoError(t, err)

	// Same room, same attendant, same day: rejected.
	_, _, err = fx.service.TakeAttendance(ctx, roomID, token, "S-001", address, signature)
	assert.ErrorIs(t, err, attendance.ErrAlreadyRecorded)

	// Backdate the record; the next check-in goes through.
	fx.storage.records[0].CreatedAt = fx.storage.records[0].CreatedAt.AddDate(0, 0, -1)

	recordID, _, err := fx.service.TakeAttendance(ctx, roomID, token, "S-001", address, signature)
	require.NoError(t, err)
	assert.NotZero(t, recordID)
	assert.Len(t, fx.storage.records, 2)
	assert.Equal(t, attendantID, fx.storage.records[1].AttendantID)
}

func TestTakeAttendance_WalletMismatch(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	roomID, _, token := fx.seedCheckIn(t)

	priv, address := testutil.NewWallet()
	_, _, err := fx.service.TakeAttendance(ctx, roomID, token, "S-001",
		address, signCheckIn(priv, "Ada Lovelace", "S-001", token))
	require.NoError(t, err)
	fx.storage.records = nil

	// Binding is one-way: a different wallet for the same student fails even
	// with a valid signature.
	otherPriv, otherAddress := testutil.NewWallet()
	_, _, err = fx.service.TakeAttendance(ctx, roomID, token, "S-001",
		otherAddress, signCheckIn(otherPriv, "Ada Lovelace", "S-001", token))
	assert.ErrorIs(t, err, attendance.ErrWalletMismatch)
}

func TestTakeAttendance_WalletInUse(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	roomID, _, token := fx.seedCheckIn(t)

	_, err := fx.service.CreateAttendant(ctx, "Grace", "Hopper", "S-002", 1)
	require.NoError(t, err)

	priv, address := testutil.NewWallet()
	_, _, err = fx.service.TakeAttendance(ctx, roomID, token, "S-001",
		address, signCheckIn(priv, "Ada Lovelace", "S-001", token))
	require.NoError(t, err)

	// One wallet cannot claim a second student identity.
	_, _, err = fx.service.TakeAttendance(ctx, roomID, token, "S-002",
		address, signCheckIn(priv, "Grace Hopper", "S-002", token))
	assert.ErrorIs(t, err, attendance.ErrWalletInUse)
}

func TestTakeAttendance_InvalidSignature(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	roomID, _, token := fx.seedCheckIn(t)

	priv, _ := testutil.NewWallet()
	_, claimedAddress := testutil.NewWallet()

	// Signed by a key that does not own the claimed address.
	_, _, err := fx.service.TakeAttendance(ctx, roomID, token, "S-001",
		claimedAddress, signCheckIn(priv, "Ada Lovelace", "S-001", token))
	assert.ErrorIs(t, err, attendance.ErrInvalidSignature)

	// Signature over a different identity than the declared one.
	priv2, address2 := testutil.NewWallet()
	_, _, err = fx.service.TakeAttendance(ctx, roomID, token, "S-001",
		address2, signCheckIn(priv2, "Someone Else", "S-001", token))
	assert.ErrorIs(t, err, attendance.ErrInvalidSignature)
}

func TestTakeAttendance_ClosedRoom(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	roomID, _, token := fx.seedCheckIn(t)

	require.NoError(t, fx.service.UpdateRoom(ctx, roomID, "CS-101", false, 1))

	priv, address := testutil.NewWallet()
	_, _, err := fx.service.TakeAttendance(ctx, roomID, token, "S-001",
		address, signCheckIn(priv, "Ada Lovelace", "S-001", token))
	assert.ErrorIs(t, err, attendance.ErrRoomClosed)
}

func TestTakeAttendance_ExpiredNonce(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	roomID, _, token := fx.seedCheckIn(t)

	fx.kv.Expire(nonce.AttendanceKey(roomID))

	priv, address := testutil.NewWallet()
	_, _, err := fx.service.TakeAttendance(ctx, roomID, token, "S-001",
		address, signCheckIn(priv, "Ada Lovelace", "S-001", token))
	assert.ErrorIs(t, err, attendance.ErrInvalidNonce)
}

func TestTakeAttendance_UnknownStudent(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	roomID, _, token := fx.seedCheckIn(t)

	priv, address := testutil.NewWallet()
	_, _, err := fx.service.TakeAttendance(ctx, roomID, token, "S-404",
		address, signCheckIn(priv, "Ada Lovelace", "S-404", token))
	assert.ErrorIs(t, err, storage.ErrAttendantNotFound)
}

func TestNewAttendanceLink_Unauthorized(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	roomID, _, _ := fx.seedCheckIn(t)

	_, _, err := fx.service.NewAttendanceLink(ctx, roomID, 999)
	assert.ErrorIs(t, err, attendance.ErrRoomNotFound)
}

func TestCreateRoom_Validation(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.service.CreateRoom(context.Background(), "", 1, nil)
	assert.ErrorIs(t, err, attendance.ErrValidation)
}

func TestCreateAttendant_Validation(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.service.CreateAttendant(context.Background(), "Ada", "", "S-001", 1)
	assert.ErrorIs(t, err, attendance.ErrValidation)
}

func TestGetRecords_LimitClamp(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	roomID, attendantID, _ := fx.seedCheckIn(t)

	for i := 0; i < 3; i++ {
		_, err := fx.storage.SaveRecord(ctx, attendantID, roomID)
		require.NoError(t, err)
	}

	rows, err := fx.service.GetRecords(ctx, 1, entity.RecordFilter{}, -5, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 3, "invalid limit falls back to the default page size")

	rows, err = fx.service.GetRecords(ctx, 1, entity.RecordFilter{}, 2, 1)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
