// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"html/template"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"
	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/nskitch/hive-rag/internal/ai"
	"github.com/nskitch/hive-rag/internal/config"
	"github.com/nskitch/hive-rag/internal/database"
	"github.com/nskitch/hive-rag/internal/embeddings"
	"github.com/nskitch/hive-rag/internal/ingest"
	"github.com/nskitch/hive-rag/internal/jobs"
	"github.com/nskitch/hive-rag/internal/logger"
	"github.com/nskitch/hive-rag/internal/proto"
	"github.com/nskitch/hive-rag/internal/query"
	"github.com/nskitch/hive-rag/internal/queue"
	"github.com/nskitch/hive-rag/internal/rules"
	"github.com/nskitch/hive-rag/internal/server"
	"github.com/nskitch/hive-rag/internal/vectordb"
	"github.com/nskitch/hive-rag/internal/worker"
)

var (
	grpcPort    = flag.Int("grpc-port", 50051, "gRPC server port")
	httpPort    = flag.Int("http-port", 8081, "HTTP server port")
	dbPath      = flag.String("db-path", "./hive.db", "SQLite database path")
	templateDir = flag.String("template-dir", "./frontend/template", "Template directory")
	staticDir   = flag.String("static-dir", "./frontend/static", "Static assets directory")
	workerCount = flag.Int("worker-count", 5, "Number of background workers")
)

// wsNotificationSender forwards to *server.WebSocketManager's
// SendNotificationRaw, which takes the loosely-typed arguments the
// analyst pool expects, since the pool has no dependency on the server
// package's wire types.
type wsNotificationSender struct {
	wsManager *server.WebSocketManager
}

func (s *wsNotificationSender) SendNotification(clientID string, notificationType, message, level string) error {
	if s.wsManager == nil {
		return nil
	}
	return s.wsManager.SendNotificationRaw(clientID, notificationType, message, level)
}

func main() {
	// Initialize logger first (before loading .env so we can log the process)
	logFile := "hive-server.log"
	if _, err := logger.Init(logFile); err != nil {
		log.Printf("Failed to initialize logger: %v, using stdout only", err)
	} else {
		logger.Printf("Logger initialized, writing to %s", logFile)
	}

	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		logger.Printf("No .env file found, using environment variables: %v", err)
	} else {
		logger.Printf("Loaded .env file")
	}

	// Verify environment variables are loaded
	apiKeyLen := len(os.Getenv("OPENAI_API_KEY"))
	logger.Printf("Loaded API Key length: %d", apiKeyLen)
	if apiKeyLen > 0 {
		logger.Printf("OPENAI_API_KEY is set (length: %d)", apiKeyLen)
	} else {
		logger.Printf("OPENAI_API_KEY is not set - will use dummy embeddings")
	}

	flag.Parse()

	db, err := sql.Open("sqlite3", *dbPath)
	if err != nil {
		logger.Fatalf("failed to open sqlite database: %v", err)
	}
	defer db.Close()

	if err := initDatabase(db); err != nil {
		logger.Fatalf("failed to initialize schema: %v", err)
	}

	stores, err := initStores(db)
	if err != nil {
		logger.Fatalf("failed to initialize stores: %v", err)
	}

	// Connect to Qdrant via gRPC (optional - will use mock if unavailable)
	var vectorDB vectordb.VectorDB
	qdrantConn, err := grpc.Dial("localhost:6334", grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Printf("warning: failed to connect to Qdrant: %v, using mock vector DB", err)
		log.Printf("UI-only mode: Search functionality will be disabled")
		vectorDB = vectordb.NewMockVectorDB()
	} else {
		defer qdrantConn.Close()
		// Create Qdrant client (kept for compatibility, but vectordb uses connection directly)
		_ = qdrant.NewQdrantClient(qdrantConn)

		var vdbErr error
		vectorDB, vdbErr = vectordb.NewQdrantVectorDB(qdrantConn)
		if vdbErr != nil {
			log.Printf("warning: failed to init vector db: %v, using mock vector DB", vdbErr)
			log.Printf("UI-only mode: Search functionality will be disabled")
			vectorDB = vectordb.NewMockVectorDB()
		} else {
			log.Printf("Connected to Qdrant successfully")
		}
	}

	// Initialize embedder (after .env is loaded)
	embedder := initEmbedder()

	// Initialize the LLM gateway (after .env is loaded)
	gateway := initGateway()

	ingestPipeline := ingest.NewPipeline(vectorDB, embedder, gateway)
	queryPipeline := query.NewPipeline(vectorDB, embedder, gateway)

	// Initialize Redis and job queue
	ctx := context.Background()
	redisURL := os.Getenv("REDIS_ADDR")
	if redisURL == "" {
		redisURL = "127.0.0.1:6379"
	}
	redisClient, err := config.NewRedisClient(ctx)
	if err != nil {
		logger.Warnf("failed to connect to Redis at %s: %v, job queue will not be available", redisURL, err)
		redisClient = nil
	} else {
		logger.Printf("Connected to Redis at %s", redisURL)
	}

	wsManager := server.NewWebSocketManager(redisClient)

	var jobQueue queue.Queue
	var workerCancel context.CancelFunc
	if redisClient != nil {
		queueKey := os.Getenv("JOB_QUEUE_KEY")
		if queueKey == "" {
			queueKey = "jobs:default"
		}
		jobQueue, err = queue.NewRedisQueue(redisClient, queueKey)
		if err != nil {
			logger.Fatalf("failed to create job queue: %v", err)
		}

		// Start background workers
		workerCtx, cancel := context.WithCancel(ctx)
		workerCancel = cancel

		ingestJobHandler := jobs.HandleIngest(ingestPipeline)

		// Create a handler that routes jobs to appropriate handlers
		handler := func(ctx context.Context, job queue.Job) error {
			switch job.Type {
			case jobs.JobTypeIngest:
				return ingestJobHandler(ctx, job)
			case jobs.JobTypeRecalcIssuePriority:
				return jobs.HandleRecalcIssuePriority(ctx, job)
			default:
				logger.Printf("unknown job type: %s", job.Type)
				return nil
			}
		}

		go func() {
			logger.Printf("Starting %d background workers", *workerCount)
			if err := worker.StartWorkers(workerCtx, jobQueue, handler, *workerCount); err != nil {
				logger.Errorf("worker error: %v", err)
			}
		}()
	}

	analystPool := worker.NewAnalystPool(
		stores.ruleStore,
		&wsNotificationSender{wsManager: wsManager},
		stores.graphStore,
		vectorDB,
		embedder,
		gateway,
		stores.ruleMatchStore,
		stores.ruleEventStore,
		*workerCount,
	)
	analystPool.Start()

	grpcServer := grpc.NewServer()
	hiveService := server.NewHiveService(db, vectorDB, embedder)
	hiveService.SetWebSocketManager(wsManager)
	proto.RegisterHiveServer(grpcServer, hiveService)

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", *grpcPort))
	if err != nil {
		logger.Fatalf("failed to listen on grpc port: %v", err)
	}

	go func() {
		logger.Printf("gRPC server listening on %d", *grpcPort)
		if err := grpcServer.Serve(grpcListener); err != nil && err != grpc.ErrServerStopped {
			logger.Fatalf("gRPC server error: %v", err)
		}
	}()

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", *httpPort),
		Handler: routes(db, vectorDB, embedder, jobQueue, ingestPipeline, queryPipeline, wsManager, analystPool, stores, *templateDir, *staticDir),
	}

	go func() {
		logger.Printf("HTTP server listening on %d", *httpPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("HTTP server error: %v", err)
		}
	}()

	waitForShutdown(grpcServer, httpServer, workerCancel, analystPool)
}

// initEmbedder initializes the embedder after .env is loaded
func initEmbedder() embeddings.Embedder {
	embedderType := os.Getenv("EMBEDDER_TYPE")
	if embedderType == "" {
		// Auto-detect based on OPENAI_API_KEY
		if len(os.Getenv("OPENAI_API_KEY")) > 0 {
			embedderType = "openai"
			log.Printf("EMBEDDER_TYPE not set, auto-detected: openai (OPENAI_API_KEY found)")
		} else {
			embedderType = "mock" // default to mock for development
			log.Printf("EMBEDDER_TYPE not set, using: mock (no OPENAI_API_KEY)")
		}
	}

	embedderConfig := map[string]string{
		"api_key":   os.Getenv("OPENAI_API_KEY"),
		"model":     os.Getenv("EMBEDDER_MODEL"),
		"base_url":  os.Getenv("OLLAMA_BASE_URL"),
		"dimension": os.Getenv("EMBEDDER_DIMENSION"),
	}

	embedder, err := embeddings.NewEmbedder(embedderType, embedderConfig)
	if err != nil {
		logger.Fatalf("failed to initialize embedder: %v", err)
	}
	logger.Printf("Initialized embedder: %s (dimension: %d)", embedderType, embedder.Dimension())
	return embedder
}

// initGateway initializes the LLM gateway used for generation, contradiction
// checks, and rule-match explanations. A missing OPENAI_API_KEY is not
// fatal: every caller that holds a *ai.Gateway degrades to a non-AI
// fallback when it is nil.
func initGateway() *ai.Gateway {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Printf("OPENAI_API_KEY not set, AI gateway disabled (fallback behavior will be used)")
		return nil
	}

	model := os.Getenv("GATEWAY_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}

	timeout := 120 * time.Second
	if timeoutStr := os.Getenv("GATEWAY_TIMEOUT_SECONDS"); timeoutStr != "" {
		var seconds int
		if _, err := fmt.Sscanf(timeoutStr, "%d", &seconds); err == nil && seconds > 0 {
			timeout = time.Duration(seconds) * time.Second
		}
	}

	logger.Printf("Initialized AI gateway: model=%s timeout=%s", model, timeout)
	return ai.NewGateway(apiKey, model, timeout)
}

func initDatabase(db *sql.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		uploaded_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		metadata TEXT
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		content TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		scope_id TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (document_id) REFERENCES documents(id)
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id);
	`
	_, err := db.Exec(schema)
	return err
}

// appStores bundles every database-backed store the HTTP routes need. It
// keeps main() and routes() from ballooning into a dozen positional
// parameters apiece.
type appStores struct {
	apiKeyStore    *database.APIKeyStore
	auditLogStore  *database.AuditLogStore
	eventLogger    *database.EventLogger
	graphStore     *database.GraphStore
	metadataStore  *database.SystemMetadataStore
	userStore      *database.UserStore
	orgStore       *database.OrganizationStore
	chatStore      *database.ChatStore
	usageStore     *database.UsageStore
	domainStore    *database.CustomDomainStore
	ruleMatchStore *database.RuleMatchStore
	ruleEventStore *database.RuleEventStore
	ruleStore      *rules.Store
}

func initStores(db *sql.DB) (*appStores, error) {
	apiKeyStore, err := database.NewAPIKeyStore(db)
	if err != nil {
		return nil, fmt.Errorf("api key store: %w", err)
	}
	auditLogStore, err := database.NewAuditLogStore(db)
	if err != nil {
		return nil, fmt.Errorf("audit log store: %w", err)
	}
	eventLogger, err := database.NewEventLogger(db)
	if err != nil {
		return nil, fmt.Errorf("event logger: %w", err)
	}
	graphStore, err := database.NewGraphStore(db)
	if err != nil {
		return nil, fmt.Errorf("graph store: %w", err)
	}
	metadataStore, err := database.NewSystemMetadataStore(db)
	if err != nil {
		return nil, fmt.Errorf("system metadata store: %w", err)
	}
	userStore, err := database.NewUserStore(db)
	if err != nil {
		return nil, fmt.Errorf("user store: %w", err)
	}
	orgStore, err := database.NewOrganizationStore(db)
	if err != nil {
		return nil, fmt.Errorf("organization store: %w", err)
	}
	chatStore, err := database.NewChatStore(db)
	if err != nil {
		return nil, fmt.Errorf("chat store: %w", err)
	}
	usageStore, err := database.NewUsageStore(db)
	if err != nil {
		return nil, fmt.Errorf("usage store: %w", err)
	}
	domainStore, err := database.NewCustomDomainStore(db)
	if err != nil {
		return nil, fmt.Errorf("custom domain store: %w", err)
	}
	ruleMatchStore, err := database.NewRuleMatchStore(db)
	if err != nil {
		return nil, fmt.Errorf("rule match store: %w", err)
	}
	ruleEventStore, err := database.NewRuleEventStore(db)
	if err != nil {
		return nil, fmt.Errorf("rule event store: %w", err)
	}
	ruleStore, err := rules.NewStore(db)
	if err != nil {
		return nil, fmt.Errorf("rule store: %w", err)
	}

	return &appStores{
		apiKeyStore:    apiKeyStore,
		auditLogStore:  auditLogStore,
		eventLogger:    eventLogger,
		graphStore:     graphStore,
		metadataStore:  metadataStore,
		userStore:      userStore,
		orgStore:       orgStore,
		chatStore:      chatStore,
		usageStore:     usageStore,
		domainStore:    domainStore,
		ruleMatchStore: ruleMatchStore,
		ruleEventStore: ruleEventStore,
		ruleStore:      ruleStore,
	}, nil
}

func routes(db *sql.DB, vectorDB vectordb.VectorDB, embedder embeddings.Embedder, jobQueue queue.Queue, ingestPipeline *ingest.Pipeline, queryPipeline *query.Pipeline, wsManager *server.WebSocketManager, analystPool *worker.AnalystPool, stores *appStores, templateDir, staticDir string) http.Handler {
	mux := http.NewServeMux()

	staticPath, _ := filepath.Abs(staticDir)
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticPath))))

	// Helper function to render templates
	renderTemplate := func(w http.ResponseWriter, tmplName string, data interface{}) {
		basePath := filepath.Join(templateDir, "base.html")
		tmplPath := filepath.Join(templateDir, tmplName)

		tmpl, err := template.ParseFiles(basePath, tmplPath)
		if err != nil {
			log.Printf("failed to parse template %s: %v", tmplName, err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
			log.Printf("failed to execute template %s: %v", tmplName, err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	}

	// Create handlers with dependencies
	ingestHandler := server.NewIngestHandler(ingestPipeline, wsManager, analystPool, stores.eventLogger, stores.auditLogStore)
	searchHandler := server.NewSearchHandler(vectorDB, embedder, stores.auditLogStore)
	queryHandler := server.NewQueryHandler(queryPipeline, stores.auditLogStore)
	chatHandler := server.NewChatHandler(queryPipeline, stores.auditLogStore, stores.chatStore, stores.orgStore, stores.usageStore)
	purgeHandler := server.NewPurgeHandler(vectorDB, db, stores.auditLogStore)

	server.SetHealthAPIKeyStore(stores.apiKeyStore)

	requireAPIKey := server.AuthMiddleware(stores.apiKeyStore)
	requireLogin := server.RequireLogin(stores.userStore)
	requireLicense := server.LicensingMiddleware()

	// Web interface handlers
	mux.HandleFunc("/", server.HandleWeb)
	mux.HandleFunc("/settings", server.HandleSettings)
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		server.HandleLoginPage(w, r, stores.metadataStore, stores.orgStore)
	})
	mux.HandleFunc("/change-password", func(w http.ResponseWriter, r *http.Request) {
		server.HandleChangePasswordPage(w, r, stores.metadataStore, stores.orgStore)
	})
	mux.Handle("/chat", requireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.HandleChatPage(w, r, stores.metadataStore, stores.orgStore)
	})))
	mux.Handle("/analyst", requireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.HandleAnalystPage(w, r, stores.metadataStore, stores.orgStore)
	})))

	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		renderTemplate(w, "search.html", nil)
	})

	mux.Handle("/api/v1/ws", requireAPIKey(http.HandlerFunc(wsManager.HandleWebSocket)))

	// Auth endpoints
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		server.HandleLogin(w, r, stores.userStore, stores.metadataStore)
	})
	mux.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		server.HandleLogout(w, r, stores.userStore)
	})
	mux.Handle("/api/auth/me", requireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.HandleMe(w, r, stores.userStore)
	})))

	// User management endpoints (session-authenticated). HandleUpdateUserPassword/
	// HandleUpdateUserRole/HandleDeleteUser parse the user ID directly out of
	// r.URL.Path (expecting a /api/v1/users/{id}/... shape), so the {id}
	// wildcard below exists only to route the method+prefix -- the handlers
	// don't read it via r.PathValue.
	mux.Handle("GET /api/v1/users", requireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.HandleListUsers(w, r, stores.userStore)
	})))
	mux.Handle("POST /api/v1/users", requireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.HandleCreateUser(w, r, stores.userStore)
	})))
	mux.Handle("POST /api/v1/users/me/password", requireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.HandleUpdateCurrentUserPassword(w, r, stores.userStore)
	})))
	mux.Handle("POST /api/v1/users/{id}/password", requireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.HandleUpdateUserPassword(w, r, stores.userStore)
	})))
	mux.Handle("POST /api/v1/users/{id}/role", requireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.HandleUpdateUserRole(w, r, stores.userStore)
	})))
	mux.Handle("DELETE /api/v1/users/{id}", requireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.HandleDeleteUser(w, r, stores.userStore)
	})))

	// Chat endpoints. HandleGetSessionMessages/HandleDeleteSession parse the
	// session ID directly out of r.URL.Path under an /api/v1/chat/sessions/
	// prefix, so they're routed with wildcard patterns rather than flat paths.
	mux.Handle("/api/v1/chat", requireLogin(http.HandlerFunc(chatHandler.HandleChat)))
	mux.Handle("/api/chat/sessions", requireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			server.HandleCreateSession(w, r, stores.chatStore)
			return
		}
		server.HandleGetSessions(w, r, stores.chatStore)
	})))
	mux.Handle("GET /api/v1/chat/sessions/{id}/messages", requireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.HandleGetSessionMessages(w, r, stores.chatStore)
	})))
	mux.Handle("DELETE /api/v1/chat/sessions/{id}", requireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.HandleDeleteSession(w, r, stores.chatStore)
	})))

	// Tenant / organization endpoints. HandleUpdateOrganization parses the
	// org ID directly out of r.URL.Path under an /api/v1/admin/organizations/
	// prefix, so it's routed separately from the flat list/create endpoint.
	mux.Handle("/api/organizations", requireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			server.HandleCreateOrganization(w, r, stores.orgStore, stores.userStore)
			return
		}
		server.HandleListOrganizations(w, r, stores.orgStore, stores.userStore, stores.usageStore)
	})))
	mux.Handle("PUT /api/v1/admin/organizations/{id}", requireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.HandleUpdateOrganization(w, r, stores.orgStore)
	})))
	mux.Handle("PATCH /api/v1/admin/organizations/{id}", requireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.HandleUpdateOrganization(w, r, stores.orgStore)
	})))
	mux.HandleFunc("/api/domain/check", func(w http.ResponseWriter, r *http.Request) {
		server.HandleCheckDomain(w, r, stores.domainStore)
	})

	// Misc tenant config / admin endpoints
	mux.Handle("/api/admin/login-as", requireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.HandleLoginAs(w, r, stores.orgStore, stores.userStore, stores.metadataStore)
	})))
	mux.Handle("/api/admin/rule-matches", requireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.HandleGetRuleMatches(w, r, stores.ruleMatchStore)
	})))
	mux.Handle("/api/admin/rule-events", requireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.HandleGetRuleEvents(w, r, stores.ruleEventStore)
	})))
	mux.Handle("/api/admin/audit-logs/export", requireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.HandleExportAuditLogs(w, r, stores.auditLogStore)
	})))
	mux.HandleFunc("/api/admin/logos", server.HandleListLogos)
	mux.Handle("/api/admin/logos/upload", requireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.HandleUploadLogo(w, r, stores.userStore)
	})))
	mux.Handle("/api/tenant/system-context", requireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			server.HandleSaveSystemContext(w, r, stores.orgStore)
			return
		}
		server.HandleGetSystemContext(w, r, stores.orgStore)
	})))
	mux.Handle("/api/tenant/openai-key", requireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			server.HandleUpdateTenantOpenAIKey(w, r, stores.orgStore)
			return
		}
		server.HandleGetTenantOpenAIKey(w, r, stores.orgStore)
	})))

	// Rule management endpoints
	mux.Handle("/api/rules", requireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			server.HandleAddRule(w, r, stores.ruleStore)
		case http.MethodPut:
			server.HandleUpdateRule(w, r, stores.ruleStore)
		case http.MethodDelete:
			server.HandleDeleteRule(w, r, stores.ruleStore)
		default:
			server.HandleGetRules(w, r, stores.ruleStore)
		}
	})))

	// Graph and audit endpoints
	mux.Handle("/api/graph", requireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.HandleGraph(w, r, stores.graphStore)
	})))
	mux.Handle("/api/audit-logs", requireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.HandleAuditLogs(w, r, stores.auditLogStore)
	})))

	// API key management endpoints (requires a logged-in session)
	mux.Handle("/api/keys", requireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			server.HandleGenerateAPIKey(w, r, stores.apiKeyStore)
			return
		}
		server.HandleListAPIKeys(w, r, stores.apiKeyStore)
	})))
	mux.Handle("/api/keys/revoke", requireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.HandleRevokeAPIKey(w, r, stores.apiKeyStore)
	})))
	mux.HandleFunc("/api/client/shutdown", func(w http.ResponseWriter, r *http.Request) {
		server.HandleClientShutdown(w, r, stores.apiKeyStore)
	})

	mux.HandleFunc("/api/v1/health", server.HandleHealth)

	// Core ingest/search/query API, gated behind API-key auth and the
	// trial/licensing check.
	mux.Handle("/api/v1/ingest", requireAPIKey(requireLicense(http.HandlerFunc(ingestHandler.HandleIngest))))
	mux.Handle("/api/v1/search", requireAPIKey(http.HandlerFunc(searchHandler.HandleSearch)))
	mux.Handle("/api/v1/query", requireAPIKey(http.HandlerFunc(queryHandler.HandleQuery)))
	mux.Handle("/api/v1/purge", requireAPIKey(requireLicense(http.HandlerFunc(purgeHandler.HandlePurge))))
	mux.Handle("/api/v1/timeline", requireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.HandleTimeline(w, r, stores.eventLogger)
	})))

	// Configuration endpoints
	mux.HandleFunc("/api/v1/config", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			server.HandleGetConfig(w, r)
		} else if r.Method == http.MethodPost {
			server.HandleSaveConfig(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/logs/stream", server.HandleLogStream)

	// Stats endpoint
	mux.HandleFunc("/api/v1/stats", func(w http.ResponseWriter, r *http.Request) {
		server.HandleStats(w, r, vectorDB, db)
	})

	mux.HandleFunc("/api/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusMethodNotAllowed)
			w.Write([]byte(`{"error":"method not allowed"}`))
			return
		}

		q := r.FormValue("query")
		if q == "" {
			// Try JSON body
			var req struct {
				Query string `json:"query"`
				TopK  int    `json:"top_k"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
				q = req.Query
			}
		}

		if q == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"query parameter is required"}`))
			return
		}

		topK := 10
		if topKStr := r.FormValue("top_k"); topKStr != "" {
			fmt.Sscanf(topKStr, "%d", &topK)
		}

		ctx := r.Context()

		scopeID := ""
		if orgIDVal := ctx.Value("organization_id"); orgIDVal != nil {
			if orgIDStr, ok := orgIDVal.(string); ok {
				scopeID = orgIDStr
			}
		}

		// Generate query embedding
		queryVector, err := embedder.EmbedText(ctx, q)
		if err != nil {
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `<div class="bg-yellow-50 p-4 rounded-lg text-yellow-700">Search is not available: failed to generate embedding. Please ensure Qdrant is running for full functionality.</div>`)
			return
		}

		var filter vectordb.Filter
		if scopeID != "" {
			filter = vectordb.Filter{"scope_id": scopeID}
		}

		// Search in vector database across every modality space
		matches, err := vectorDB.SearchMerged(ctx, queryVector, searchSpacesForHTMX, topK, 0, filter)
		if err != nil {
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `<div class="bg-yellow-50 p-4 rounded-lg text-yellow-700">Search is not available: %v. Please ensure Qdrant is running for full functionality.</div>`, err)
			return
		}

		type searchMatch struct {
			ChunkID       string
			DocumentID    string
			Content       string
			Score         float32
			MatchedSpaces []string
		}

		results := make([]searchMatch, 0, len(matches))
		for _, match := range matches {
			results = append(results, searchMatch{
				ChunkID:       match.ChunkID,
				DocumentID:    match.Payload.SourceFile,
				Content:       match.Payload.Content,
				Score:         match.Similarity,
				MatchedSpaces: match.MatchedSpaces,
			})
		}

		// Render HTML template for HTMX
		tmplPath := filepath.Join(templateDir, "search_results.html")
		tmpl, err := template.ParseFiles(tmplPath)
		if err != nil {
			log.Printf("failed to parse search results template: %v", err)
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprintf(w, `<div class="bg-red-50 p-4 rounded-lg text-red-700">Error rendering results: %v</div>`, err)
			return
		}

		data := map[string]interface{}{
			"Matches": results,
			"Count":   len(results),
		}

		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		if err := tmpl.Execute(w, data); err != nil {
			log.Printf("failed to execute search results template: %v", err)
			fmt.Fprintf(w, `<div class="bg-red-50 p-4 rounded-lg text-red-700">Error rendering results: %v</div>`, err)
		}
	})

	// Job queue API endpoints
	mux.HandleFunc("/api/jobs/ingest", func(w http.ResponseWriter, r *http.Request) {
		if jobQueue == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"job queue not available"}`))
			return
		}
		if r.Method != http.MethodPost {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusMethodNotAllowed)
			w.Write([]byte(`{"error":"method not allowed"}`))
			return
		}

		var payload jobs.IngestPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(fmt.Sprintf(`{"error":"invalid request: %v"}`, err)))
			return
		}

		if err := jobs.EnqueueIngest(r.Context(), jobQueue, payload); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(fmt.Sprintf(`{"error":"failed to enqueue job: %v"}`, err)))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"status":"job enqueued"}`))
	})

	mux.HandleFunc("/api/jobs/recalc-priority", func(w http.ResponseWriter, r *http.Request) {
		if jobQueue == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"job queue not available"}`))
			return
		}

		if r.Method != http.MethodPost {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusMethodNotAllowed)
			w.Write([]byte(`{"error":"method not allowed"}`))
			return
		}

		// Parse request body
		var payload jobs.RecalcIssuePriorityPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(fmt.Sprintf(`{"error":"invalid request: %v"}`, err)))
			return
		}

		// Enqueue job
		ctx := r.Context()
		if err := jobs.EnqueueRecalcIssuePriority(ctx, jobQueue, payload); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(fmt.Sprintf(`{"error":"failed to enqueue job: %v"}`, err)))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"status":"job enqueued"}`))
	})

	return mux
}

var searchSpacesForHTMX = []string{vectordb.SpaceText, vectordb.SpaceImage, vectordb.SpaceAudio}

func waitForShutdown(grpcServer *grpc.Server, httpServer *http.Server, workerCancel context.CancelFunc, analystPool *worker.AnalystPool) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Println("Shutting down servers...")

	// Stop workers
	if workerCancel != nil {
		workerCancel()
	}
	if analystPool != nil {
		analystPool.Stop()
	}

	grpcServer.GracefulStop()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Errorf("HTTP shutdown error: %v", err)
	}

	// Close logger
	if err := logger.GetDefault().Close(); err != nil {
		log.Printf("Failed to close logger: %v", err)
	}
}
