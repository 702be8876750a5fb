package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"clubsync/internal/alerts"
	"clubsync/internal/clubapi"
	"clubsync/internal/config"
	"clubsync/internal/handlers"
	"clubsync/internal/middleware"
	"clubsync/internal/modal"
	"clubsync/internal/models"
	"clubsync/internal/observability"
	"clubsync/internal/presence"
	"clubsync/internal/rabbitmq"
	"clubsync/internal/realtime"
	"clubsync/internal/rooms"
	"clubsync/internal/session"
	"clubsync/internal/store"
	"clubsync/internal/telemetry"
	"clubsync/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.OTLPEndpoint, "clubsync", cfg.Env)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	log.Printf("event publisher mode=%s", rabbitmq.Mode(publisher))

	audit := telemetry.NewAuditEmitter(publisher, "audit.clubsync", "clubsync", cfg.Env)

	durable, err := store.OpenSQLite(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open durable store: %v", err)
	}
	defer durable.Close()
	sessionStore := store.NewMemory()

	sess := session.New()
	api := clubapi.New(cfg.ServerBaseURL, func() string {
		user, _ := sess.Current()
		return user.Token
	})

	manager := realtime.NewManager(realtime.Options{
		URL: cfg.ChannelURL,
		Token: func() string {
			user, _ := sess.Current()
			return user.Token
		},
		BackoffBase:       cfg.BackoffBase,
		BackoffCap:        cfg.BackoffCap,
		HeartbeatInterval: cfg.HeartbeatInterval,
	})

	syncer := rooms.New(api, manager, func() (string, string) {
		user, _ := sess.Current()
		return user.ID, user.Name
	}, cfg.MessagePageSize)

	tracker := presence.NewTracker(manager, cfg.TypingDebounce, cfg.TypingTTL, nil)
	policy := alerts.NewDismissalPolicy(sessionStore, cfg.DismissalTTL, nil)
	aggregator := alerts.New(api, api, policy, cfg.DueSoonDays, nil)

	hub := ws.NewHub()
	arbiter := modal.New(cfg.ModalCoalesceDelay, func(kind string, payload any) {
		hub.Broadcast(ws.UIEvent{Type: ws.UIModalOpen, Payload: gin.H{"kind": kind, "payload": payload}})
	})

	go syncer.Run(ctx, manager.Events())
	go tracker.Run(ctx, manager.Events())
	go aggregator.Run(ctx, sess.Subscribe())
	go watchAuth(ctx, sess, manager, syncer, sessionStore)
	go bridge(ctx, manager, syncer, tracker, aggregator, hub, audit)

	roomHandler := handlers.NewRoomHandler(syncer, tracker)
	alertHandler := handlers.NewAlertHandler(aggregator, arbiter, manager, audit, durable)
	sessionHandler := handlers.NewSessionHandler(sess)
	promptHandler := handlers.NewPromptHandler(durable)
	uiWS := ws.NewUIHandler(hub, cfg.LocalAPIToken)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("clubsync"))
	router.Use(observability.HTTPMetricsMiddleware())

	auth := middleware.LocalToken(cfg.LocalAPIToken)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", uiWS.Handle)

	router.PUT("/session", auth, sessionHandler.PutSession)
	router.DELETE("/session", auth, sessionHandler.DeleteSession)
	router.GET("/session", auth, sessionHandler.GetSession)

	router.GET("/rooms", auth, roomHandler.ListRooms)
	router.POST("/rooms/:room_id/active", auth, roomHandler.SetActive)
	router.DELETE("/rooms/active", auth, roomHandler.ClearActive)
	router.GET("/rooms/:room_id/messages", auth, roomHandler.GetMessages)
	router.POST("/rooms/:room_id/messages", auth, roomHandler.PostMessage)
	router.POST("/rooms/:room_id/messages/older", auth, roomHandler.LoadOlder)
	router.POST("/rooms/:room_id/read", auth, roomHandler.MarkRead)
	router.GET("/rooms/:room_id/typing", auth, roomHandler.GetTyping)
	router.POST("/rooms/:room_id/typing", auth, roomHandler.PostTyping)

	router.GET("/alerts", auth, alertHandler.ListAlerts)
	router.POST("/alerts/refresh", auth, alertHandler.RefreshAlerts)
	router.POST("/alerts/:alert_id/dismiss", auth, alertHandler.DismissAlert)

	router.GET("/connection", auth, alertHandler.GetConnection)
	router.POST("/modals/:kind", auth, alertHandler.RequestModal)
	router.DELETE("/modals/:kind", auth, alertHandler.CloseModal)
	router.DELETE("/modals", auth, alertHandler.ForceCloseModals)

	router.GET("/prompts/:kind", auth, promptHandler.GetPrompt)
	router.POST("/prompts/:kind/decline", auth, promptHandler.DeclinePrompt)

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("clubsync listening addr=%s env=%s", addr, cfg.Env)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// watchAuth drives the connection lifecycle from auth transitions: the
// channel lives while a user is logged in, and session-scoped state dies on
// logout.
func watchAuth(ctx context.Context, sess *session.Session, manager *realtime.Manager, syncer *rooms.Synchronizer, sessionStore *store.Memory) {
	events := sess.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.LoggedIn {
				manager.Connect()
				if err := syncer.RefreshRooms(ctx); err != nil {
					log.Printf("room refresh on login failed: %v", err)
				}
			} else {
				manager.Disconnect()
				_ = syncer.SetActiveRoom(ctx, "")
				_ = sessionStore.Clear()
			}
		}
	}
}

// bridge forwards component change signals to the UI hub and publishes
// connection transitions as audit events.
func bridge(ctx context.Context, manager *realtime.Manager, syncer *rooms.Synchronizer, tracker *presence.Tracker, aggregator *alerts.Aggregator, hub *ws.Hub, audit *telemetry.AuditEmitter) {
	states := manager.States()
	events := manager.Events()
	roomUpdates := syncer.Updates()
	typingUpdates := tracker.Updates()
	alertUpdates := aggregator.Subscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			switch ev.Type {
			case models.EventPresence:
				var payload models.PresenceChangedPayload
				if err := ev.Decode(&payload); err == nil {
					hub.Broadcast(ws.UIEvent{Type: ws.UIPresenceChanged, Payload: payload})
				}
			case models.EventCreated:
				// A new poll or open-play event may imply a fresh alert.
				if err := aggregator.Refresh(ctx); err != nil {
					log.Printf("alert refresh on event push failed: %v", err)
				}
			}
		case change := <-states:
			observability.SetChannelConnected(change.State == models.ConnConnected)
			hub.Broadcast(ws.UIEvent{Type: ws.UIConnChanged, Payload: gin.H{
				"state":   change.State,
				"attempt": change.Attempt,
			}})
			audit.Emit(ctx, "INFO", "channel state: "+string(change.State), "")
		case update := <-roomUpdates:
			hub.Broadcast(ws.UIEvent{Type: ws.UIRoomsChanged, Payload: gin.H{"room_id": update.RoomID}})
		case update := <-typingUpdates:
			hub.Broadcast(ws.UIEvent{Type: ws.UITypingChanged, Payload: gin.H{"room_id": update.RoomID}})
		case list := <-alertUpdates:
			hub.Broadcast(ws.UIEvent{Type: ws.UIAlertsChanged, Payload: gin.H{"alerts": list}})
		}
	}
}
