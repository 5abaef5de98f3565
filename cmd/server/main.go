package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/technosupport/campus-presence/internal/api"
	"github.com/technosupport/campus-presence/internal/audit"
	"github.com/technosupport/campus-presence/internal/auth"
	"github.com/technosupport/campus-presence/internal/broadcast"
	"github.com/technosupport/campus-presence/internal/cameras"
	"github.com/technosupport/campus-presence/internal/checkin"
	"github.com/technosupport/campus-presence/internal/config"
	"github.com/technosupport/campus-presence/internal/crypto"
	"github.com/technosupport/campus-presence/internal/data"
	"github.com/technosupport/campus-presence/internal/faceengine"
	"github.com/technosupport/campus-presence/internal/ingest"
	"github.com/technosupport/campus-presence/internal/media"
	"github.com/technosupport/campus-presence/internal/metrics"
	"github.com/technosupport/campus-presence/internal/middleware"
	"github.com/technosupport/campus-presence/internal/presence"
	"github.com/technosupport/campus-presence/internal/ratelimit"
	"github.com/technosupport/campus-presence/internal/reaper"
	"github.com/technosupport/campus-presence/internal/recognition"
	"github.com/technosupport/campus-presence/internal/rooms"
	"github.com/technosupport/campus-presence/internal/session"
	"github.com/technosupport/campus-presence/internal/stream"
	"github.com/technosupport/campus-presence/internal/students"
	"github.com/technosupport/campus-presence/internal/tokens"
	"github.com/technosupport/campus-presence/internal/users"
	"github.com/technosupport/campus-presence/internal/vectorindex"
)

const serviceName = "campus-presence"

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/default.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	cfgStore := config.NewStore(configPath, cfg.Recognition)
	watcherCtx, stopWatcher := context.WithCancel(context.Background())
	defer stopWatcher()
	cfgStore.StartWatcher(watcherCtx)

	dbPass := os.Getenv("DB_PASSWORD")
	jwtKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtKey == "" {
		jwtKey = "dev-secret-do-not-use-in-prod"
	}
	redisAddr := cfg.Redis.Addr
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:5432/%s?sslmode=disable", cfg.DB.User, dbPass, cfg.DB.Host, cfg.DB.Name)
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("db ping failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	sessionMgr := session.NewManager(redisAddr, "")
	tokenMgr := tokens.NewManager(jwtKey)
	blacklist := auth.NewRedisBlacklist(rdb)

	auditService := audit.NewService(db)
	spoolDir := os.Getenv("AUDIT_SPOOL_DIR")
	if spoolDir == "" {
		spoolDir = "data/audit_spool"
	}
	audit.ConfigureFailover(spoolDir, 1024)
	auditService.StartReplayer(context.Background())

	// Crypto keyring protects camera RTSP credentials at rest.
	keyring := crypto.NewKeyring()
	if err := keyring.LoadFromEnv(); err != nil {
		log.Fatalf("keyring init failed: %v", err)
	}

	// Face recognition engine, Vector Index.
	engine, err := faceengine.InitEngine(cfg.FaceEngine.ModelDir, cfg.FaceEngine.RequireGPU, cfg.Recognition.EmbeddingDimension)
	if err != nil {
		log.Fatalf("face engine init failed: %v", err)
	}

	indexPath := cfg.Storage.IndexDir + "/student_faces.index"
	idMapPath := cfg.Storage.IndexDir + "/id_map.gob"
	index := vectorindex.Load(indexPath, idMapPath, cfg.Recognition.EmbeddingDimension, cfg.Recognition.ConfidenceThreshold)

	// Relational models.
	camRepo := data.CameraModel{DB: db}
	credRepo := data.CredentialModel{DB: db}
	roomRepo := data.RoomModel{DB: db}
	studentRepo := data.StudentModel{DB: db}
	embeddingRepo := data.EmbeddingModel{DB: db}
	presenceRepo := data.PresenceModel{DB: db}
	attendanceRepo := data.AttendanceModel{DB: db}
	userRepo := data.UserModel{DB: db}

	credService := cameras.NewCredentialService(credRepo, keyring, auditService)

	// Streaming pipeline: Stream Manager pulls frames, the Recognition
	// Dispatcher decides what to do with each one.
	m := metrics.NewCollector(metrics.Config{PerCamera: false})
	hub := broadcast.NewHub()

	natsURL := cfg.NATS.URL
	instanceID := os.Getenv("INSTANCE_ID")
	if instanceID == "" {
		instanceID = serviceName + "-" + fmt.Sprint(os.Getpid())
	}
	if natsURL != "" {
		nc, err := nats.Connect(natsURL, nats.Name(serviceName))
		if err != nil {
			log.Printf("warning: nats connect failed, running single-instance: %v", err)
		} else {
			defer nc.Close()
			relay := broadcast.NewRelay(nc, instanceID, 3)
			if err := relay.Subscribe(hub); err != nil {
				log.Printf("warning: nats subscribe failed: %v", err)
			} else {
				hub.SetRelay(relay)
			}
		}
	}

	cooldown := presence.NewCooldownTable(10000, cfg.Recognition.CooldownSeconds)
	guests := presence.NewGuestTracker(10000, cfg.Recognition.PresenceTimeoutSeconds)
	presenceStore := presence.NewStore(&presenceRepo, cooldown)

	dispatcher := recognition.New(cfg.Recognition, engine, index, cooldown, guests, presenceStore, hub, &studentRepo, &roomRepo, m)

	streamMgr := stream.NewManager(cfg.Recognition.MaxSimultaneousStreams, 4, media.NewRTSPConnectDecoder, dispatcher.OnFrame)
	ingestCtrl := ingest.NewController(streamMgr, &camRepo, credService)

	camService := cameras.NewService(camRepo, credService, ingestCtrl, auditService, cfg.Recognition.MaxCamerasPerRoom)
	roomService := rooms.NewService(roomRepo, streamMgr, &presenceRepo, auditService)
	studentService := students.NewService(studentRepo, embeddingRepo, &presenceRepo, attendanceRepo, index, engine, cfg.Storage.ImagesDir, auditService)
	checkinService := checkin.NewService(engine, index, &studentRepo, &attendanceRepo, cfg.Storage.ImagesDir)
	userService := users.NewService(&userRepo, auditService, sessionMgr, tokenMgr)

	// Reaper runs in-process by default; cmd/reaper exists for deployments
	// that want the sweep decoupled from the recognition pipeline's
	// process lifetime.
	presenceReaper := reaper.New(presenceStore, guests, &roomRepo, hub, m, cfg.Recognition.PresenceCleanupInterval, cfg.Recognition.PresenceTimeoutSeconds)
	reaperCtx, stopReaper := context.WithCancel(context.Background())
	go presenceReaper.Run(reaperCtx)
	defer stopReaper()

	// HTTP handlers.
	camHandler := api.NewCameraHandler(camService)
	credHandler := api.NewCredentialHandler(credService, camService)
	roomHandler := api.NewRoomHandler(roomService)
	studentHandler := api.NewStudentHandler(studentService)
	presenceHandler := api.NewPresenceHandler(presenceStore, guests, &roomRepo, cfg.Recognition.PresenceTimeoutSeconds)
	checkinHandler := api.NewCheckinHandler(checkinService)
	liveHandler := api.NewLiveHandler(streamMgr)
	attendanceHandler := api.NewAttendanceHandler(&attendanceRepo)
	auditHandler := &api.AuditHandler{Service: auditService}
	userHandler := &api.UserHandler{Service: userService}
	authHandler := &api.AuthHandler{DB: db, Tokens: tokenMgr, Session: sessionMgr, Hasher: auth.DefaultParams}

	presenceWSHandler := broadcast.NewHandler(hub, broadcast.NSRoomPresence, tokenMgr)
	cameraWSHandler := broadcast.NewHandler(hub, broadcast.NSCameraStream, tokenMgr)
	globalWSHandler := broadcast.NewHandler(hub, broadcast.NSGlobalPresence, tokenMgr)

	limiter := ratelimit.NewLimiter(rdb, os.Getenv("RATE_LIMIT_SALT"))
	jwtMiddleware := middleware.NewJWTAuth(tokenMgr, blacklist)
	auditMiddleware := middleware.NewAuditMiddleware(auditService)
	rlMiddleware := middleware.NewRateLimitMiddleware(limiter, tokenMgr, middleware.Config{}, nil)

	Protect := func(h http.Handler) http.Handler { return jwtMiddleware.Middleware(h) }

	mux := http.NewServeMux()

	// Public routes.
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/v1/auth/refresh", authHandler.Refresh)
	mux.HandleFunc("POST /api/v1/auth/logout", authHandler.Logout)
	mux.HandleFunc("POST /api/v1/auth/complete-reset", userHandler.CompleteReset)

	// Rooms.
	mux.Handle("POST /api/v1/rooms", Protect(http.HandlerFunc(roomHandler.Create)))
	mux.Handle("GET /api/v1/rooms", Protect(http.HandlerFunc(roomHandler.List)))
	mux.Handle("GET /api/v1/rooms/{id}", Protect(http.HandlerFunc(roomHandler.Get)))
	mux.Handle("PUT /api/v1/rooms/{id}", Protect(http.HandlerFunc(roomHandler.Update)))
	mux.Handle("DELETE /api/v1/rooms/{id}", Protect(http.HandlerFunc(roomHandler.Delete)))
	mux.Handle("GET /api/v1/rooms/{id}/cameras", Protect(http.HandlerFunc(camHandler.ListByRoom)))

	// Cameras.
	mux.Handle("POST /api/v1/cameras", Protect(http.HandlerFunc(camHandler.Create)))
	mux.Handle("GET /api/v1/cameras/{id}", Protect(http.HandlerFunc(camHandler.Get)))
	mux.Handle("PUT /api/v1/cameras/{id}", Protect(http.HandlerFunc(camHandler.Update)))
	mux.Handle("DELETE /api/v1/cameras/{id}", Protect(http.HandlerFunc(camHandler.Delete)))
	mux.Handle("POST /api/v1/cameras/{id}/start", Protect(http.HandlerFunc(camHandler.Start)))
	mux.Handle("POST /api/v1/cameras/{id}/stop", Protect(http.HandlerFunc(camHandler.Stop)))
	mux.Handle("GET /api/v1/cameras/{id}/status", Protect(http.HandlerFunc(camHandler.Status)))
	mux.Handle("GET /api/v1/cameras/{id}/live/snapshot.jpg", Protect(http.HandlerFunc(liveHandler.GetSnapshot)))
	mux.Handle("PUT /api/v1/cameras/{id}/credentials", Protect(http.HandlerFunc(credHandler.Update)))
	mux.Handle("GET /api/v1/cameras/{id}/credentials", Protect(http.HandlerFunc(credHandler.Get)))
	mux.Handle("DELETE /api/v1/cameras/{id}/credentials", Protect(http.HandlerFunc(credHandler.Delete)))

	// Students / enrollment.
	mux.Handle("POST /api/v1/students", Protect(http.HandlerFunc(studentHandler.Create)))
	mux.Handle("GET /api/v1/students", Protect(http.HandlerFunc(studentHandler.List)))
	mux.Handle("GET /api/v1/students/{id}", Protect(http.HandlerFunc(studentHandler.Get)))
	mux.Handle("DELETE /api/v1/students/{id}", Protect(http.HandlerFunc(studentHandler.Delete)))
	mux.Handle("POST /api/v1/students/{id}/images", Protect(http.HandlerFunc(studentHandler.AddImage)))

	// Presence / occupancy.
	mux.Handle("GET /api/v1/presence/rooms", Protect(http.HandlerFunc(presenceHandler.GetAllRooms)))
	mux.Handle("GET /api/v1/presence/rooms/{id}", Protect(http.HandlerFunc(presenceHandler.GetRoom)))
	mux.Handle("GET /api/v1/presence/students/{id}", Protect(http.HandlerFunc(presenceHandler.GetStudent)))
	mux.Handle("GET /api/v1/presence/stats", Protect(http.HandlerFunc(presenceHandler.Stats)))

	// Check-in and attendance.
	mux.Handle("POST /api/v1/checkin", Protect(http.HandlerFunc(checkinHandler.CheckIn)))
	mux.Handle("GET /api/v1/attendance", Protect(http.HandlerFunc(attendanceHandler.List)))

	// Users, audit.
	mux.Handle("GET /api/v1/users/{id}", Protect(http.HandlerFunc(userHandler.GetUser)))
	mux.Handle("POST /api/v1/users", Protect(http.HandlerFunc(userHandler.CreateUser)))
	mux.Handle("POST /api/v1/users/{id}/disable", Protect(http.HandlerFunc(userHandler.DisableUser)))
	mux.Handle("POST /api/v1/users/{id}/reset-password", Protect(http.HandlerFunc(userHandler.ResetPassword)))
	mux.Handle("GET /api/v1/audit/events", Protect(http.HandlerFunc(auditHandler.GetEvents)))
	mux.Handle("POST /api/v1/audit/exports", Protect(http.HandlerFunc(auditHandler.ExportEvents)))

	// Metrics (scraped in-cluster, not behind JWT).
	mux.Handle("GET /metrics", m.Handler())

	// WebSocket fanout. ServeWS validates its own ?token= query param since
	// browser WebSocket clients can't set an Authorization header, so these
	// routes are deliberately not wrapped in Protect.
	mux.HandleFunc("GET /ws/rooms/{id}/presence", presenceWSHandler.ServeWS(func(r *http.Request) string {
		return r.PathValue("id")
	}))
	mux.HandleFunc("GET /ws/cameras/{id}/stream", cameraWSHandler.ServeWS(func(r *http.Request) string {
		return r.PathValue("id")
	}))
	mux.HandleFunc("GET /ws/presence", globalWSHandler.ServeWS(func(r *http.Request) string {
		return ""
	}))

	auditWrappedMux := auditMiddleware.LogRequest(middleware.CORS(middleware.RequestLogger(mux)))
	finalHandler := rlMiddleware.GlobalLimiter(auditWrappedMux)

	// Resume any cameras that were enabled before the last restart.
	resumeEnabledCameras(&camRepo, ingestCtrl)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	server := &http.Server{Addr: ":" + port, Handler: finalHandler}

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	svcStop := make(chan struct{})
	runAsServiceIfApplicable(svcStop)

	go func() {
		log.Printf("campus-presence server listening on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	select {
	case <-ctx.Done():
	case <-svcStop:
	}
	log.Println("shutting down")

	stopReaper()
	streamMgr.StopAll()

	if err := index.Save(indexPath, idMapPath); err != nil {
		log.Printf("warning: vector index save failed: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("warning: graceful shutdown error: %v", err)
	}
	log.Println("stopped")
}

// resumeEnabledCameras restarts ingest for every camera left enabled from
// a prior run, since Stream Manager state doesn't survive a restart but
// the is_enabled flag in Postgres does.
func resumeEnabledCameras(camRepo *data.CameraModel, ctrl *ingest.Controller) {
	cams, err := camRepo.ListEnabled(context.Background())
	if err != nil {
		log.Printf("warning: could not list enabled cameras for resume: %v", err)
		return
	}
	for _, cam := range cams {
		if err := ctrl.StartCamera(context.Background(), cam.ID); err != nil {
			log.Printf("warning: failed to resume camera %s: %v", cam.ID, err)
		}
	}
}
