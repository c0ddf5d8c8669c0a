package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/amberline/amberline-api/api"
	"github.com/amberline/amberline-api/api/scheduler"
	"github.com/amberline/amberline-api/chat"
	"github.com/amberline/amberline-api/config"
	"github.com/amberline/amberline-api/databases"
	"github.com/amberline/amberline-api/gateway"
	"github.com/amberline/amberline-api/models"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router    *mux.Router
	Config    config.Config
	Hub       *gateway.Hub
	Scheduler *scheduler.Scheduler
	dbHelper  databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	// setup go-guardian for middleware
	m := api.MiddlewareDB{DB: databases.NewUserDatabase(a.dbHelper), JWTSecret: a.Config.JWTSecret}
	m.SetupGoGuardian()

	r := mux.NewRouter()

	udb := databases.NewUserDatabase(a.dbHelper)
	mdb := databases.NewMessageDatabase(a.dbHelper)
	cdb := databases.NewCaseDatabase(a.dbHelper)
	ldb := databases.NewModerationLogDatabase(a.dbHelper)
	ndb := databases.NewModNotificationDatabase(a.dbHelper)
	rdb := databases.NewMessageReportDatabase(a.dbHelper)

	inbox := &chat.Inbox{NDB: ndb, MDB: mdb, RDB: rdb, Hub: a.Hub}
	store := &chat.MessageStore{MDB: mdb, UDB: udb, CDB: cdb}
	engine := &chat.ModerationEngine{UDB: udb, CDB: cdb, LDB: ldb, Inbox: inbox, Hub: a.Hub}
	reports := &chat.ReportService{RDB: rdb, MDB: mdb, NDB: ndb, Inbox: inbox}
	detector := &chat.SpamDetector{MDB: mdb, Inbox: inbox}
	cleanup := &chat.SpamCleanup{Store: store, Engine: engine, Inbox: inbox, NDB: ndb, Hub: a.Hub}

	c := Chat{Store: store, Reports: reports, UDB: udb}
	mod := Moderation{Engine: engine, Store: store, Cleanup: cleanup, UDB: udb}
	in := InboxHandler{Inbox: inbox, UDB: udb}

	ws := &gateway.Handler{
		Hub:       a.Hub,
		UDB:       udb,
		Store:     store,
		Detector:  detector,
		JWTSecret: a.Config.JWTSecret,
	}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)
	r.HandleFunc("/ws/chat", ws.ServeWS)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	apiCreate.Use(api.TimeoutMiddleware(30 * time.Second))

	apiCreate.Handle("/auth/token", http.HandlerFunc(m.CreateToken)).Methods("POST")
	apiCreate.Handle("/auth/logout", api.Middleware(http.HandlerFunc(api.RevokeToken))).Methods("DELETE")

	apiCreate.Handle("/chat/{case_id}/messages", api.Middleware(http.HandlerFunc(c.MessagesByCaseIDHandler))).Methods("GET")
	apiCreate.Handle("/chat/{case_id}/messages/read", api.Middleware(http.HandlerFunc(c.MarkMessagesReadHandler))).Methods("PUT")
	apiCreate.Handle("/chat/{case_id}/unread", api.Middleware(http.HandlerFunc(c.UnreadCountHandler))).Methods("GET")
	apiCreate.Handle("/chat/messages/{message_id}/report", api.Middleware(http.HandlerFunc(c.ReportMessageHandler))).Methods("POST")

	apiCreate.Handle("/moderation/warn", api.Middleware(http.HandlerFunc(mod.WarnHandler))).Methods("POST")
	apiCreate.Handle("/moderation/mute", api.Middleware(http.HandlerFunc(mod.MuteHandler))).Methods("POST")
	apiCreate.Handle("/moderation/ban", api.Middleware(http.HandlerFunc(mod.BanHandler))).Methods("POST")
	apiCreate.Handle("/moderation/slowmode", api.Middleware(http.HandlerFunc(mod.SlowmodeHandler))).Methods("POST")
	apiCreate.Handle("/moderation/messages/delete", api.Middleware(http.HandlerFunc(mod.DeleteMessagesHandler))).Methods("POST")
	apiCreate.Handle("/moderation/spam-cleanup", api.Middleware(http.HandlerFunc(mod.SpamCleanupHandler))).Methods("POST")

	apiCreate.Handle("/moderation/notifications", api.Middleware(http.HandlerFunc(in.QueryHandler))).Methods("GET")
	apiCreate.Handle("/moderation/notifications/stats", api.Middleware(http.HandlerFunc(in.StatsHandler))).Methods("GET")
	apiCreate.Handle("/moderation/notifications/bulk", api.Middleware(http.HandlerFunc(in.BulkHandler))).Methods("PUT")
	apiCreate.Handle("/moderation/notifications/{notification_id}/read", api.Middleware(http.HandlerFunc(in.MarkReadHandler))).Methods("PUT")
	apiCreate.Handle("/moderation/notifications/{notification_id}/resolve", api.Middleware(http.HandlerFunc(in.ResolveHandler))).Methods("PUT")

	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("amberline-api has connected to the database")

	a.Hub = gateway.NewHub()
	if a.Config.RedisURL != "" {
		opts, err := redis.ParseURL(a.Config.RedisURL)
		if err != nil {
			zap.S().With(err).Error("failed to parse redis url")
			return err
		}
		relay := gateway.NewRelay(redis.NewClient(opts), a.Hub)
		a.Hub.SetRelay(relay)
		go relay.Listen(context.Background())
		zap.S().Info("redis relay enabled for chat broadcasts")
	}

	a.Scheduler = scheduler.NewScheduler(&a.Config,
		databases.NewUserDatabase(a.dbHelper),
		databases.NewModNotificationDatabase(a.dbHelper))
	a.Scheduler.Start()

	// initialize api router
	a.initializeRoutes()
	return nil

}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
