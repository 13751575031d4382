package rest

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	gormsessions "github.com/gin-contrib/sessions/gorm"
	"github.com/gin-gonic/autotls"
	"github.com/gin-gonic/gin"
	cmap "github.com/orcaman/concurrent-map/v2"
	"gorm.io/gorm"

	app "genderage/internal/application"
)

const (
	sessionCookieName     = "genderage"
	sessionExpirationTime = 7 * 24 * 3600
	maxUploadSize         = 20 << 20
)

// Options параметры HTTP-сервера
type Options struct {
	BindAddress   string
	TLSDomains    []string
	SessionSecret string
	Debug         bool
}

// Server REST API, дашборд и поток кадров через websocket
type Server struct {
	router     *gin.Engine
	opts       Options
	detections *app.DetectionService
	accounts   *app.AccountService
	history    *app.HistoryService
	clients    cmap.ConcurrentMap[string, ConnectedClients]
}

// NewServer собирает роутер. Если db задана, сессии хранятся в базе, иначе в cookie.
func NewServer(detections *app.DetectionService, accounts *app.AccountService, history *app.HistoryService, db *gorm.DB, opts Options) *Server {
	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{
		opts:       opts,
		detections: detections,
		accounts:   accounts,
		history:    history,
		clients:    cmap.New[ConnectedClients](),
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if opts.Debug {
		router.Use(gin.Logger())
	}
	_ = router.SetTrustedProxies([]string{})
	router.MaxMultipartMemory = maxUploadSize
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	var store sessions.Store
	if db != nil {
		store = gormsessions.NewStore(db, true, []byte(opts.SessionSecret))
	} else {
		store = cookie.NewStore([]byte(opts.SessionSecret))
	}
	store.Options(sessions.Options{Path: "/", MaxAge: sessionExpirationTime, HttpOnly: true})
	router.Use(sessions.Sessions(sessionCookieName, store))
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws", "/api/snapshots"})))

	authRouter := &Router{Base: router, accounts: accounts}

	router.GET("/healthz", s.Health)
	router.POST("/predict", s.Predict)
	router.POST("/api/login", s.Login)
	router.POST("/api/logout", s.Logout)
	authRouter.GET("/api/me", s.Me)
	authRouter.POST("/api/detect", s.Detect)
	authRouter.GET("/api/history", s.History)
	authRouter.GET("/api/stats", s.Stats)
	authRouter.GET("/api/snapshots/*key", s.Snapshot)
	authRouter.GETWithAPIKey("/ws", s.Stream)

	s.router = router
	return s
}

// Handler корневой http.Handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run слушает BindAddress или, если заданы домены, 443 с сертификатами Let's Encrypt.
func (s *Server) Run(ctx context.Context) error {
	if len(s.opts.TLSDomains) > 0 {
		log.Printf("Serving HTTPS for %v", s.opts.TLSDomains)
		return autotls.RunWithContext(ctx, s.router, s.opts.TLSDomains...)
	}

	srv := &http.Server{
		Addr:              s.opts.BindAddress,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Listening on %s", s.opts.BindAddress)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
