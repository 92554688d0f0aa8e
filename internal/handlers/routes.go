package handlers

import (
	"github.com/ansyar-project/split-the-bill/internal/middleware"
	"github.com/ansyar-project/split-the-bill/internal/services"
	"github.com/gofiber/fiber/v2"
)

// Services is everything the HTTP layer calls into.
type Services struct {
	Users    *services.UserService
	Groups   *services.GroupService
	Members  *services.MembershipService
	Invites  *services.InviteService
	Expenses *services.ExpenseService
	Reports  *services.ReportService
	Audit    *services.AuditService
}

// RegisterRoutes mounts the /api tree on app.
func RegisterRoutes(app fiber.Router, svc Services, authMiddleware *middleware.AuthMiddleware) {
	authHandler := NewAuthHandler(svc.Users)
	usersHandler := NewUsersHandler(svc.Users)
	groupsHandler := NewGroupsHandler(svc.Groups)
	activityHandler := NewActivityHandler(svc.Audit)
	membersHandler := NewMembersHandler(svc.Members)
	invitesHandler := NewInvitesHandler(svc.Invites)
	expensesHandler := NewExpensesHandler(svc.Expenses)
	reportsHandler := NewReportsHandler(svc.Reports)

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)
	authRoutes.Put("/me", authMiddleware.RequireAuth, authHandler.UpdateMe)

	userRoutes := api.Group("/users", authMiddleware.RequireAuth, middleware.AdminOnly)
	userRoutes.Get("/", usersHandler.List)
	userRoutes.Put("/:id/promote", usersHandler.Promote)
	userRoutes.Put("/:id/demote", usersHandler.Demote)
	userRoutes.Delete("/:id", usersHandler.Delete)

	groupRoutes := api.Group("/groups", authMiddleware.RequireAuth)
	groupRoutes.Post("/", groupsHandler.Create)
	groupRoutes.Get("/", groupsHandler.List)
	groupRoutes.Get("/:id", groupsHandler.Get)
	groupRoutes.Delete("/:id", groupsHandler.Delete)
	groupRoutes.Get("/:id/activity", activityHandler.List)
	groupRoutes.Get("/:id/activity/export", activityHandler.Export)
	groupRoutes.Get("/:id/members", membersHandler.List)
	groupRoutes.Post("/:id/members", membersHandler.Add)
	groupRoutes.Put("/:id/members/:userId", membersHandler.UpdateRole)
	groupRoutes.Delete("/:id/members/:userId", membersHandler.Remove)
	groupRoutes.Post("/:id/invites", invitesHandler.Create)
	groupRoutes.Get("/:id/invites", invitesHandler.List)
	groupRoutes.Delete("/:id/invites/:inviteId", invitesHandler.Revoke)
	groupRoutes.Get("/:id/expenses", expensesHandler.List)
	groupRoutes.Post("/:id/expenses", expensesHandler.Create)
	groupRoutes.Get("/:id/report", reportsHandler.Monthly)
	groupRoutes.Get("/:id/report.pdf", reportsHandler.PDF)

	api.Post("/invites/:token/join", authMiddleware.RequireAuth, invitesHandler.Join)

	expenseRoutes := api.Group("/expenses", authMiddleware.RequireAuth)
	expenseRoutes.Get("/:id", expensesHandler.Get)
	expenseRoutes.Put("/:id", expensesHandler.Update)
	expenseRoutes.Delete("/:id", expensesHandler.Delete)
}
