package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/classchain/classchain/internal/entity"
	"github.com/classchain/classchain/internal/lib/session"
	"github.com/classchain/classchain/internal/middleware"
	"github.com/classchain/classchain/internal/services/attendance"
	"github.com/gin-gonic/gin"
)

type AttendanceHandler struct {
	attendanceService   *attendance.Attendance
	sessions            *session.Codec
	attendantSessionTTL time.Duration
	secureCookie        bool
}

type CreateRoomRequest struct {
	Alias      string `json:"alias" binding:"required"`
	SemesterID *int64 `json:"semester_id"`
}

type UpdateRoomRequest struct {
	Alias  string `json:"alias" binding:"required"`
	IsOpen *bool  `json:"is_open" binding:"required"`
}

type CreateAttendantRequest struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	UID       string `json:"uid" binding:"required"`
}

type AssignClassRequest struct {
	ClassID int64 `json:"class_id" binding:"required"`
}

type CreateGroupRequest struct {
	Name string `json:"name" binding:"required"`
}

type TakeAttendanceRequest struct {
	UID       string `json:"uid" binding:"required"`
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

func NewAttendanceHandler(attendanceService *attendance.Attendance, sessions *session.Codec, attendantSessionTTL time.Duration, secureCookie bool) *AttendanceHandler {
	return &AttendanceHandler{
		attendanceService:   attendanceService,
		sessions:            sessions,
		attendantSessionTTL: attendantSessionTTL,
		secureCookie:        secureCookie,
	}
}

func adminID(c *gin.Context) (int64, bool) {
	sess, ok := middleware.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return 0, false
	}
	return sess.SubjectID, true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func (h *AttendanceHandler) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	admin, ok := adminID(c)
	if !ok {
		return
	}

	roomID, err := h.attendanceService.CreateRoom(c.Request.Context(), req.Alias, admin, req.SemesterID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"room_id": roomID})
}

func (h *AttendanceHandler) GetRooms(c *gin.Context) {
	admin, ok := adminID(c)
	if !ok {
		return
	}

	rooms, err := h.attendanceService.GetRooms(c.Request.Context(), admin)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (h *AttendanceHandler) GetRoom(c *gin.Context) {
	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}

	admin, ok := adminID(c)
	if !ok {
		return
	}

	room, err := h.attendanceService.GetRoom(c.Request.Context(), roomID, admin)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"room": room})
}

func (h *AttendanceHandler) UpdateRoom(c *gin.Context) {
	var req UpdateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}

	admin, ok := adminID(c)
	if !ok {
		return
	}

	if err := h.attendanceService.UpdateRoom(c.Request.Context(), roomID, req.Alias, *req.IsOpen, admin); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"room_id": roomID})
}

func (h *AttendanceHandler) DeleteRoom(c *gin.Context) {
	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}

	admin, ok := adminID(c)
	if !ok {
		return
	}

	if err := h.attendanceService.DeleteRoom(c.Request.Context(), roomID, admin); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusNoContent, gin.H{})
}

// NewLink generates the time-limited attendance link shown as a QR code.
func (h *AttendanceHandler) NewLink(c *gin.Context) {
	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}

	admin, ok := adminID(c)
	if !ok {
		return
	}

	token, expiresAt, err := h.attendanceService.NewAttendanceLink(c.Request.Context(), roomID, admin)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"nonce":      token,
		"url":        fmt.Sprintf("/attendance/%d/take?nonce=%s", roomID, token),
		"expires_at": expiresAt,
	})
}

func (h *AttendanceHandler) CreateAttendant(c *gin.Context) {
	var req CreateAttendantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	admin, ok := adminID(c)
	if !ok {
		return
	}

	id, err := h.attendanceService.CreateAttendant(c.Request.Context(), req.FirstName, req.LastName, req.UID, admin)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"attendant_id": id})
}

func (h *AttendanceHandler) GetAttendants(c *gin.Context) {
	admin, ok := adminID(c)
	if !ok {
		return
	}

	attendants, err := h.attendanceService.GetAttendants(c.Request.Context(), admin)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"attendants": attendants})
}

func (h *AttendanceHandler) UpdateAttendant(c *gin.Context) {
	var req CreateAttendantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	admin, ok := adminID(c)
	if !ok {
		return
	}

	if err := h.attendanceService.UpdateAttendant(c.Request.Context(), id, req.FirstName, req.LastName, req.UID, admin); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"attendant_id": id})
}

func (h *AttendanceHandler) DeleteAttendant(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	admin, ok := adminID(c)
	if !ok {
		return
	}

	if err := h.attendanceService.DeleteAttendant(c.Request.Context(), id, admin); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusNoContent, gin.H{})
}

func (h *AttendanceHandler) AssignClass(c *gin.Context) {
	var req AssignClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	admin, ok := adminID(c)
	if !ok {
		return
	}

	if err := h.attendanceService.AssignAttendantToClass(c.Request.Context(), id, req.ClassID, admin); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"attendant_id": id, "class_id": req.ClassID})
}

func (h *AttendanceHandler) CreateSemester(c *gin.Context) {
	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	admin, ok := adminID(c)
	if !ok {
		return
	}

	id, err := h.attendanceService.CreateSemester(c.Request.Context(), req.Name, admin)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"semester_id": id})
}

func (h *AttendanceHandler) GetSemesters(c *gin.Context) {
	admin, ok := adminID(c)
	if !ok {
		return
	}

	semesters, err := h.attendanceService.GetSemesters(c.Request.Context(), admin)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"semesters": semesters})
}

func (h *AttendanceHandler) CreateClass(c *gin.Context) {
	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	admin, ok := adminID(c)
	if !ok {
		return
	}

	id, err := h.attendanceService.CreateClass(c.Request.Context(), req.Name, admin)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"class_id": id})
}

func (h *AttendanceHandler) GetClasses(c *gin.Context) {
	admin, ok := adminID(c)
	if !ok {
		return
	}

	classes, err := h.attendanceService.GetClasses(c.Request.Context(), admin)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"classes": classes})
}

func (h *AttendanceHandler) GetRecords(c *gin.Context) {
	admin, ok := adminID(c)
	if !ok {
		return
	}

	filter := recordFilterFromQuery(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	records, err := h.attendanceService.GetRecords(c.Request.Context(), admin, filter, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"records": records})
}

func recordFilterFromQuery(c *gin.Context) entity.RecordFilter {
	var filter entity.RecordFilter
	if v, err := strconv.ParseInt(c.Query("semester_id"), 10, 64); err == nil {
		filter.SemesterID = v
	}
	if v, err := strconv.ParseInt(c.Query("class_id"), 10, 64); err == nil {
		filter.ClassID = v
	}
	return filter
}

// Take is the public check-in endpoint behind the QR link. On success the
// attendant also gets a session cookie, used later for identified polls.
func (h *AttendanceHandler) Take(c *gin.Context) {
	var req TakeAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}

	nonceToken := c.Query("nonce")
	if nonceToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing nonce"})
		return
	}

	recordID, attendant, err := h.attendanceService.TakeAttendance(c.Request.Context(), roomID, nonceToken, req.UID, req.Address, req.Signature)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.sessions.Issue(session.Session{
		WalletAddress: req.Address,
		SubjectID:     attendant.ID,
		Role:          entity.RoleUser,
		Scope:         session.ScopeAttendant,
	}, h.attendantSessionTTL)
	if err != nil {
		respondError(c, err)
		return
	}

	c.SetCookie(middleware.AttendantCookie, token, int(h.attendantSessionTTL.Seconds()), "/", "", h.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{"record_id": recordID, "attendant_id": attendant.ID})
}
