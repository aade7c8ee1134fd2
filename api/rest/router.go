package rest

import (
	"github.com/brewbuds/server/audit"
	"github.com/brewbuds/server/cache"
	"github.com/brewbuds/server/config"
	mw "github.com/brewbuds/server/middleware"
	"github.com/brewbuds/server/model"
	"github.com/brewbuds/server/scheduler"
	"github.com/brewbuds/server/service/bean"
	"github.com/brewbuds/server/service/comment"
	"github.com/brewbuds/server/service/event"
	"github.com/brewbuds/server/service/feed"
	"github.com/brewbuds/server/service/like"
	"github.com/brewbuds/server/service/note"
	"github.com/brewbuds/server/service/notify"
	"github.com/brewbuds/server/service/photo"
	"github.com/brewbuds/server/service/post"
	"github.com/brewbuds/server/service/ranking"
	"github.com/brewbuds/server/service/recommend"
	"github.com/brewbuds/server/service/record"
	"github.com/brewbuds/server/service/relationship"
	"github.com/brewbuds/server/service/report"
	"github.com/brewbuds/server/service/user"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps is everything the REST routes need.
type Deps struct {
	DB       *gorm.DB
	Cache    cache.Cache
	Security config.SecurityConfig
	AdminIPs []string
	Sched    *scheduler.Scheduler
	Audit    audit.Logger
	Logger   *zap.Logger

	Users     *user.Service
	Rel       *relationship.Service
	Feed      *feed.Service
	Records   *record.Service
	Posts     *post.Service
	Comments  *comment.Service
	Likes     *like.Service
	Notes     *note.Service
	Beans     *bean.Service
	Recommend *recommend.Service
	Ranking   *ranking.Service
	Notify    *notify.Service
	Photos    *photo.Service
	Reports   *report.Service
	Events    *event.Service
}

// Mount registers every /api route on r.
func Mount(r gin.IRouter, d Deps) {
	authH := NewAuthHandler(d.Users)
	userH := NewUserHandler(d.Users, d.Rel, d.Audit, d.Logger)
	recordH := NewRecordHandler(d.Records, d.Feed, d.Logger)
	postH := NewPostHandler(d.Posts, d.Feed, d.Logger)
	commentH := NewCommentHandler(d.Comments)
	actH := NewInteractionHandler(d.Likes, d.Notes, d.Reports, d.Audit)
	beanH := NewBeanHandler(d.Beans, d.Recommend)
	notifH := NewNotificationHandler(d.Notify)
	photoH := NewPhotoHandler(d.Photos)
	eventH := NewEventHandler(d.Events)
	rankH := NewRankingHandler(d.Ranking, d.Posts, d.Beans)
	adminH := NewAdminHandler(d.DB, d.Sched, d.Ranking, d.Reports, d.Events, d.Audit, d.Logger)

	auth := mw.Auth(d.Security, d.Cache)
	optional := mw.OptionalAuth(d.Security, d.Cache)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/signup", authH.Signup)
		authG.POST("/login", authH.Login)
		authG.GET("/nickname", authH.NicknameCheck)
		authG.POST("/logout", auth, authH.Logout)
		authG.POST("/refresh", auth, authH.Refresh)

		usersG := api.Group("/users")
		usersG.GET("/me", auth, userH.Me)
		usersG.PATCH("/me", auth, userH.UpdateMe)
		usersG.DELETE("/me", auth, userH.Withdraw)
		usersG.GET("/me/notes", auth, actH.Notes)
		usersG.GET("/me/blocks", auth, userH.Blocked)
		usersG.GET("/:id", optional, userH.Profile)
		usersG.GET("/:id/followers", optional, userH.Followers)
		usersG.GET("/:id/following", optional, userH.Following)
		usersG.GET("/:id/records", optional, recordH.ByUser)
		usersG.GET("/:id/posts", optional, postH.ByUser)
		usersG.POST("/:id/follow", auth, userH.Follow)
		usersG.DELETE("/:id/follow", auth, userH.Unfollow)
		usersG.POST("/:id/block", auth, userH.Block)
		usersG.DELETE("/:id/block", auth, userH.Unblock)

		recordsG := api.Group("/records")
		recordsG.GET("", optional, recordH.Feed)
		recordsG.POST("", auth, recordH.Create)
		recordsG.GET("/:id", optional, recordH.Detail)
		recordsG.PATCH("/:id", auth, recordH.Update)
		recordsG.DELETE("/:id", auth, recordH.Delete)
		recordsG.GET("/:id/comments", optional, commentH.List(model.ObjectRecord))
		recordsG.POST("/:id/comments", auth, commentH.Create(model.ObjectRecord))

		postsG := api.Group("/posts")
		postsG.GET("", optional, postH.Feed)
		postsG.GET("/latest", optional, postH.Latest)
		postsG.POST("", auth, postH.Create)
		postsG.GET("/:id", optional, postH.Detail)
		postsG.PATCH("/:id", auth, postH.Update)
		postsG.DELETE("/:id", auth, postH.Delete)
		postsG.GET("/:id/comments", optional, commentH.List(model.ObjectPost))
		postsG.POST("/:id/comments", auth, commentH.Create(model.ObjectPost))

		commentsG := api.Group("/comments", auth)
		commentsG.PATCH("/:id", commentH.Update)
		commentsG.DELETE("/:id", commentH.Delete)

		api.POST("/likes/:type/:id", auth, actH.ToggleLike)
		api.POST("/notes/:type/:id", auth, actH.AddNote)
		api.DELETE("/notes/:type/:id", auth, actH.RemoveNote)
		api.POST("/reports", auth, actH.Report)

		beansG := api.Group("/beans")
		beansG.GET("", optional, beanH.Search)
		beansG.GET("/recommend", auth, beanH.Recommend)
		beansG.GET("/:id", optional, beanH.Detail)
		beansG.GET("/:id/records", optional, recordH.ByBean)

		searchG := api.Group("/search")
		searchG.GET("/posts", optional, postH.Search)
		searchG.GET("/records", optional, recordH.Search)
		searchG.GET("/users", optional, userH.Search)
		searchG.GET("/recent", auth, beanH.Recent)
		searchG.DELETE("/recent", auth, beanH.RemoveRecent)

		rankG := api.Group("/ranking", optional)
		rankG.GET("/posts", rankH.TopPosts)
		rankG.GET("/beans", rankH.TopBeans)

		notifG := api.Group("/notifications", auth)
		notifG.GET("", notifH.List)
		notifG.GET("/unread", notifH.Unread)
		notifG.POST("/read", notifH.MarkAllRead)
		notifG.POST("/:id/read", notifH.MarkRead)
		notifG.DELETE("/:id", notifH.Delete)
		notifG.GET("/settings", notifH.Settings)
		notifG.PUT("/settings", notifH.UpdateSettings)

		devicesG := api.Group("/devices", auth)
		devicesG.POST("", notifH.RegisterDevice)
		devicesG.DELETE("", notifH.RemoveDevice)

		photosG := api.Group("/photos", auth)
		photosG.POST("", photoH.Upload)
		photosG.DELETE("/:id", photoH.Delete)

		eventsG := api.Group("/events")
		eventsG.GET("", eventH.List)
		eventsG.GET("/:id", eventH.Detail)

		adminG := api.Group("/admin", mw.IPWhitelist(d.AdminIPs), auth, mw.RequireStaff(d.DB))
		adminG.GET("/metrics", adminH.Metrics)
		adminG.POST("/ranking/refresh", adminH.RefreshRanking)
		adminG.GET("/reports", adminH.Reports)
		adminG.POST("/reports/:id/resolve", adminH.ResolveReport)
		adminG.POST("/events", adminH.CreateEvent)
	}
}
