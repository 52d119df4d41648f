package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-management/internal/handler"
	"github.com/iliyamo/library-management/internal/middleware"
	"github.com/iliyamo/library-management/internal/model"
)

// RegisterCatalog mounts /authors and /books.  Any signed-in user may read;
// writes are admin only.
func RegisterCatalog(e *echo.Echo, authn middleware.Authenticator, a *handler.AuthorHandler, b *handler.BookHandler) {
	adminOnly := middleware.RequireRole(model.RoleAdmin)

	authors := e.Group("/authors", middleware.JWTAuth(authn, model.RoleReader, model.RoleAdmin))
	authors.POST("", a.Create, adminOnly)
	authors.GET("", a.List)
	authors.GET("/:id", a.Get)
	authors.PUT("/:id", a.Update, adminOnly)
	authors.DELETE("/:id", a.Delete, adminOnly)

	books := e.Group("/books", middleware.JWTAuth(authn, model.RoleReader, model.RoleAdmin))
	books.POST("", b.Create, adminOnly)
	books.GET("", b.List)
	books.GET("/:id", b.Get)
	books.PUT("/:id", b.Update, adminOnly)
	books.DELETE("/:id", b.Delete, adminOnly)
}

// RegisterBorrows mounts /borrows.  Readers borrow, list and return their
// own; the full list and single lookups are admin only.
func RegisterBorrows(e *echo.Echo, authn middleware.Authenticator, h *handler.BorrowHandler) {
	adminOnly := middleware.RequireRole(model.RoleAdmin)

	g := e.Group("/borrows", middleware.JWTAuth(authn, model.RoleReader, model.RoleAdmin))
	g.POST("", h.Create)
	g.GET("/user-borrows", h.ListMine)
	g.GET("", h.List, adminOnly)
	g.GET("/:id", h.Get, adminOnly)
	g.PATCH("/:id/return", h.Return)
}

// RegisterUsers mounts /users.
func RegisterUsers(e *echo.Echo, authn middleware.Authenticator, h *handler.UserHandler) {
	g := e.Group("/users", middleware.JWTAuth(authn, model.RoleReader, model.RoleAdmin))
	g.GET("/me", h.Me)
	g.PATCH("/update-password", h.UpdatePassword)
	g.PATCH("/update-info", h.UpdateInfo)
	g.GET("/users-list", h.List, middleware.RequireRole(model.RoleAdmin))
}
