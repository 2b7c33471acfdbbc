package entity

import "time"

type AttendanceRoom struct {
	ID         int64
	Alias      string
	IsOpen     bool
	CreatedBy  int64
	SemesterID *int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Attendant struct {
	ID            int64
	FirstName     string
	LastName      string
	UID           string
	WalletAddress *string
	AdminID       int64
	CreatedAt     time.Time
}

// AttendanceRecord is append-only; at most one per attendant per room per day.
type AttendanceRecord struct {
	ID          int64
	AttendantID int64
	RoomID      int64
	CreatedAt   time.Time
}

type Semester struct {
	ID      int64
	Name    string
	AdminID int64
}

type Class struct {
	ID      int64
	Name    string
	AdminID int64
}

// RecordFilter narrows record listings and exports. Zero values mean no filter.
type RecordFilter struct {
	SemesterID int64
	ClassID    int64
}

// RecordRow is a denormalized attendance record as it appears in listings
// and CSV exports.
type RecordRow struct {
	ID          int64
	StudentName string
	StudentUID  string
	Room        string
	Semester    string
	Classes     []string
	Date        time.Time
}
