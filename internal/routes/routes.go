package routes

import (
	"github.com/classchain/classchain/internal/handlers"
	"github.com/gin-gonic/gin"
)

// RegisterPublicRoutes wires the endpoints behind shared QR links plus the
// sign-in flow. The respond endpoints run under OptionalAttendant so an
// identified attendant is recognized when present.
func RegisterPublicRoutes(rg *gin.RouterGroup, authHandler *handlers.AuthHandler, attendanceHandler *handlers.AttendanceHandler, pollHandler *handlers.PollHandler) {
	{
		rg.POST("/auth/challenge", authHandler.Challenge)
		rg.POST("/auth/signin", authHandler.SignIn)
		rg.POST("/auth/signout", authHandler.SignOut)

		rg.POST("/attendance/:id/take", attendanceHandler.Take)

		rg.GET("/polls/:id/respond", pollHandler.RespondForm)
		rg.POST("/polls/:id/respond", pollHandler.Respond)
		rg.GET("/polls/:id/results/public", pollHandler.PublicResults)
	}
}

func RegisterAdminRoutes(rg *gin.RouterGroup, attendanceHandler *handlers.AttendanceHandler, pollHandler *handlers.PollHandler, exportHandler *handlers.ExportHandler) {
	{
		rg.POST("/rooms", attendanceHandler.CreateRoom)
		rg.GET("/rooms", attendanceHandler.GetRooms)
		rg.GET("/rooms/:id", attendanceHandler.GetRoom)
		rg.PUT("/rooms/:id", attendanceHandler.UpdateRoom)
		rg.DELETE("/rooms/:id", attendanceHandler.DeleteRoom)
		rg.POST("/rooms/:id/link", attendanceHandler.NewLink)

		rg.POST("/attendants", attendanceHandler.CreateAttendant)
		rg.GET("/attendants", attendanceHandler.GetAttendants)
		rg.PUT("/attendants/:id", attendanceHandler.UpdateAttendant)
		rg.DELETE("/attendants/:id", attendanceHandler.DeleteAttendant)
		rg.POST("/attendants/:id/classes", attendanceHandler.AssignClass)

		rg.POST("/semesters", attendanceHandler.CreateSemester)
		rg.GET("/semesters", attendanceHandler.GetSemesters)
		rg.POST("/classes", attendanceHandler.CreateClass)
		rg.GET("/classes", attendanceHandler.GetClasses)

		rg.GET("/records", attendanceHandler.GetRecords)
		rg.GET("/records/export", exportHandler.ExportRecords)

		rg.POST("/polls", pollHandler.CreatePoll)
		rg.GET("/polls", pollHandler.GetPolls)
		rg.GET("/polls/:id", pollHandler.GetPoll)
		rg.PUT("/polls/:id", pollHandler.UpdatePoll)
		rg.DELETE("/polls/:id", pollHandler.DeletePoll)
		rg.POST("/polls/:id/link", pollHandler.NewLink)
		rg.GET("/polls/:id/results", pollHandler.AdminResults)
	}
}
