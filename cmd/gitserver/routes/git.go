package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/theAravinthM/appsmith/cmd/gitserver/container"
	"github.com/theAravinthM/appsmith/cmd/gitserver/handlers"
	appmw "github.com/theAravinthM/appsmith/common/middleware"
	"github.com/theAravinthM/appsmith/common/ratelimit"
)

// RegisterGitRoutes registers all git sync routes
func RegisterGitRoutes(e *echo.Echo, c *container.Container) {
	// Create handlers with dependencies
	gitHandler := handlers.NewGitHandler(c.Components, c.GitService)
	branchHandler := handlers.NewBranchHandler(c.Components, c.GitService)
	keyHandler := handlers.NewKeyHandler(c.Components, c.GitService)
	profileHandler := handlers.NewProfileHandler(c.Components, c.GitService)
	autoCommitHandler := handlers.NewAutoCommitHandler(c.Components, c.GitService, c.ProgressStore, c.AutoCommit)
	layoutHandler := handlers.NewLayoutHandler(c.Components, c.GitService)

	// Per-application budgets by operation cost
	read := appmw.ArtifactRateLimitMiddleware(c.RateLimiter, ratelimit.TierRead)
	mutate := appmw.ArtifactRateLimitMiddleware(c.RateLimiter, ratelimit.TierMutate)
	network := appmw.ArtifactRateLimitMiddleware(c.RateLimiter, ratelimit.TierNetwork)

	git := e.Group("/api/v1/git",
		appmw.GlobalRateLimitMiddleware(c.RateLimiter, ratelimit.DefaultGlobalConfig.Limit))
	{
		// Repository lifecycle
		git.POST("/connect/app/:applicationId", gitHandler.Connect, network)
		git.POST("/disconnect/app/:applicationId", gitHandler.Disconnect, mutate)
		git.POST("/import/:workspaceId", gitHandler.Import, network)
		git.POST("/test-connection", gitHandler.TestConnection, network)
		git.GET("/metadata/app/:applicationId", gitHandler.Metadata, read)

		// Commit and sync
		git.POST("/commit/app/:applicationId", gitHandler.Commit, mutate)
		git.POST("/push/app/:applicationId", gitHandler.Push, network)
		git.GET("/pull/app/:applicationId", gitHandler.Pull, network)
		git.GET("/status/app/:applicationId", gitHandler.Status, read)
		git.POST("/fetch/remote/app/:applicationId", gitHandler.FetchRemote, network)
		git.PUT("/discard/app/:applicationId", gitHandler.Discard, mutate)
		git.GET("/commit-history/app/:applicationId", gitHandler.CommitHistory, read)

		// Branches and merges
		git.POST("/create-branch/app/:applicationId", branchHandler.Create, mutate)
		git.POST("/checkout-branch/app/:applicationId", branchHandler.Checkout, mutate)
		git.GET("/branch/app/:applicationId", branchHandler.List, read)
		git.DELETE("/branch/app/:applicationId", branchHandler.Delete, mutate)
		git.POST("/merge/app/:applicationId", branchHandler.Merge, mutate)
		git.POST("/merge/status/app/:applicationId", branchHandler.MergeStatus, read)
		git.POST("/conflicted-branch/app/:applicationId", branchHandler.CreateConflicted, network)
		git.GET("/protected-branches/app/:applicationId", branchHandler.GetProtected, read)
		git.POST("/protected-branches/app/:applicationId", branchHandler.UpdateProtected, mutate)

		// Deploy keys
		git.POST("/keys", keyHandler.Generate)
		git.GET("/key-types", keyHandler.KeyTypes)

		// Author profiles
		git.GET("/profile/default", profileHandler.GetDefault)
		git.POST("/profile/default", profileHandler.SaveDefault)
		git.GET("/profile/app/:applicationId", profileHandler.GetForApp, read)
		git.POST("/profile/app/:applicationId", profileHandler.SaveForApp, mutate)

		// Auto-commit
		git.POST("/auto-commit/app/:applicationId", autoCommitHandler.Trigger, mutate)
		git.PATCH("/auto-commit/toggle/app/:applicationId", autoCommitHandler.Toggle, mutate)
		git.GET("/auto-commit/progress/app/:applicationId", autoCommitHandler.Progress, read)

		// Layout edits
		git.PATCH("/layout/app/:applicationId/page/:pageId", layoutHandler.Patch, mutate)
	}
}
