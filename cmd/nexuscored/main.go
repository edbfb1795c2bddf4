// Command nexuscored is the repeater/remote-base controller daemon: it
// loads configuration, brings up the node controllers and their DTMF/link
// wiring, serves the dashboard API and websocket feed, and keeps the node
// lookup table refreshed in the background.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/dbehnke/nexus-core/backend/api"
	"github.com/dbehnke/nexus-core/backend/database"
	"github.com/dbehnke/nexus-core/backend/middleware"
	"github.com/dbehnke/nexus-core/backend/models"
	"github.com/dbehnke/nexus-core/backend/repository"
	"github.com/dbehnke/nexus-core/internal/config"
	"github.com/dbehnke/nexus-core/internal/dtmf"
	"github.com/dbehnke/nexus-core/internal/echolink"
	"github.com/dbehnke/nexus-core/internal/nodelookup"
	"github.com/dbehnke/nexus-core/internal/rptnode"
	"github.com/dbehnke/nexus-core/internal/web"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var buildVersion = ""
var buildTime = ""

func main() {
	configFile := flag.String("config", "", "Path to config file (default: search ./config.yaml, data/config.yaml, etc.)")
	flag.Parse()

	cfg := config.Load(*configFile)

	logger, _ := zap.NewProduction()
	defer logger.Sync()
	sugar := logger.Sugar()

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("database open error: %v", err)
	}
	defer db.CloseSafe()
	defer func() {
		cctx, ccancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer ccancel()
		if err := db.Checkpoint(cctx); err != nil {
			sugar.Warnw("WAL checkpoint on shutdown failed", "err", err)
		}
	}()
	if err := db.Migrate(); err != nil {
		log.Fatalf("migrate error: %v", err)
	}

	gormDB, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		log.Fatalf("GORM database open error: %v", err)
	}
	if err := gormDB.AutoMigrate(&models.User{}, &models.TransmissionLog{}, &models.NodeInfo{}, &models.LinkStat{}); err != nil {
		log.Fatalf("GORM auto-migrate error: %v", err)
	}
	logger.Info("database ready")

	txLogRepo := repository.NewTransmissionLogRepository(gormDB)
	nodeInfoRepo := repository.NewNodeInfoRepository(gormDB)
	linkStatsRepo := repository.NewLinkStatsRepo(db.DB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cumulative per-adjacent-node TX seconds, seeded from whatever the
	// last run persisted so a restart doesn't reset §4.8's link-stats
	// counters back to zero. Keyed by the peer's node number, not name,
	// since a peer can rejoin under the same dial target from any of this
	// process's nodes.
	linkStatsTotals := map[int]int{}
	var linkStatsMu sync.Mutex
	if seed, err := linkStatsRepo.GetAll(ctx); err != nil {
		sugar.Warnw("link stats seed load failed, starting from zero", "err", err)
	} else {
		for _, s := range seed {
			linkStatsTotals[s.Node] = s.TotalTxSeconds
		}
	}

	// Node lookup: the Store-backed downloader fetches astdb.txt and
	// mirrors it into the SQLite node_info table, while nodelookup.Service
	// reads the flat file directly for in-process callsign/description
	// enrichment and for the API's /api/node-lookup search.
	store := newNodeInfoStore(nodeInfoRepo)
	downloader := nodelookup.NewDownloader(cfg.AstDBURL, cfg.AstDBPath, cfg.AstDBUpdateHours, store, logger)
	if err := downloader.DownloadAndImport(ctx); err != nil {
		logger.Warn("astdb download/import failed, node lookup may be stale", zap.Error(err))
	}
	go func() {
		interval := time.Duration(cfg.AstDBUpdateHours) * time.Hour
		if interval <= 0 {
			interval = 24 * time.Hour
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := downloader.DownloadAndImport(ctx); err != nil {
					logger.Warn("astdb refresh failed", zap.Error(err))
				}
			}
		}
	}()
	nodeLookupSvc := nodelookup.NewService(cfg.AstDBPath)

	// One echolink.Directory + PendingAuthTable per configured Echolink
	// instance; these hold the resolved peer table and pending-auth cache
	// that a session layer would consult, but no RTP transport loop is
	// wired here yet (see DESIGN.md: Echolink RTP serving).
	echolinkDirs := make(map[string]*echolink.Directory, len(cfg.Echolinks))
	for name := range cfg.Echolinks {
		echolinkDirs[name] = echolink.NewDirectory()
		if authTable, err := echolink.NewPendingAuthTable(20); err == nil {
			_ = authTable // held by a future session layer; constructed here to prove the wiring
		}
		logger.Info("echolink directory initialized", zap.String("instance", name))
	}

	talkerLog := web.NewTalkerLog(200, 24*time.Hour)
	txEvents := make(chan web.TxEvent, 64)

	nodes := make(map[string]*rptnode.Node, len(cfg.Nodes))
	var primaryNodeName string
	for name, nodeCfg := range cfg.Nodes {
		nodeID := name
		node := rptnode.New(name, nodeCfg, func(msg string, kv ...any) { sugar.Debugw(msg, append([]any{"node", nodeID}, kv...)...) })
		nodes[name] = node
		if primaryNodeName == "" {
			primaryNodeName = name
		}

		dispatcher := dtmf.NewDispatcher()
		buildFunctionTable := func(src dtmf.Source, stanza string) {
			t := dispatcher.Table(src)
			if stanza != "" {
				if entries, ok := cfg.FunctionTables[stanza]; ok {
					if err := dtmf.LoadTable(t, entries); err != nil {
						sugar.Warnw("function table load failed, using defaults", "node", nodeID, "table", stanza, "err", err)
						dtmf.RegisterDefaults(t)
					}
					return
				}
				sugar.Warnw("function table stanza not found, using defaults", "node", nodeID, "table", stanza)
			}
			dtmf.RegisterDefaults(t)
		}
		buildFunctionTable(dtmf.SourceRadio, nodeCfg.Functions)
		buildFunctionTable(dtmf.SourceLink, nodeCfg.LinkFunctions)
		buildFunctionTable(dtmf.SourcePhone, nodeCfg.PhoneFunctions)
		buildFunctionTable(dtmf.SourceDPhone, nodeCfg.DPhoneFunctions)
		buildFunctionTable(dtmf.SourceAltPhone, nodeCfg.AltFunctions)
		// REMOTE and RPT-INTERNAL have no dedicated config stanza among the
		// node config keys; they fall back to the same default table as
		// local radio commands.
		dtmf.RegisterDefaults(dispatcher.Table(dtmf.SourceRemote))
		dtmf.RegisterDefaults(dispatcher.Table(dtmf.SourceRptInternal))

		// NewChannelHandler is the seam a real audio backend (a sound-card
		// or network channel.Channel implementation) would drive with
		// decoded frames; none is constructed here since this process has
		// no audio I/O of its own (see DESIGN.md: channel backend).
		_ = rptnode.NewChannelHandler(node, dispatcher, dtmf.SourceRadio)

		loop := rptnode.NewLoop(node, dispatcher, scheduleFromConfig(nodeCfg))

		tracker := rptnode.NewKeyingTracker(name, 2*time.Second)
		tracker.SetCallbacks(
			func(localNode, adjacentNode string, at time.Time) {
				talkerLog.Record(web.TxEvent{Type: "TX_START", LocalNode: localNode, Adjacent: adjacentNode, StartTime: at, Timestamp: at})
				select {
				case txEvents <- web.TxEvent{Type: "TX_START", LocalNode: localNode, Adjacent: adjacentNode, StartTime: at, Timestamp: at}:
				default:
				}
				if nodeNum, perr := strconv.Atoi(adjacentNode); perr == nil {
					lctx, lcancel := context.WithTimeout(context.Background(), 2*time.Second)
					if err := linkStatsRepo.TouchConnected(lctx, nodeNum, sql.NullTime{Time: at, Valid: true}); err != nil {
						sugar.Warnw("link stats connected_since touch failed", "node", localNode, "adjacent", adjacentNode, "err", err)
					}
					lcancel()
				}
			},
			func(localNode, adjacentNode string, at time.Time, duration time.Duration) {
				end := at
				evt := web.TxEvent{Type: "TX_END", LocalNode: localNode, Adjacent: adjacentNode, EndTime: &end, DurationMS: duration.Milliseconds(), Timestamp: at}
				talkerLog.Record(evt)
				select {
				case txEvents <- evt:
				default:
				}
				if err := txLogRepo.LogTransmission(0, 0, adjacentNode, at.Add(-duration), at, int(duration.Seconds())); err != nil {
					sugar.Warnw("transmission log write failed", "node", localNode, "err", err)
				}
				if nodeNum, perr := strconv.Atoi(adjacentNode); perr == nil {
					linkStatsMu.Lock()
					linkStatsTotals[nodeNum] += int(duration.Seconds())
					total := linkStatsTotals[nodeNum]
					linkStatsMu.Unlock()
					start := at.Add(-duration)
					lctx, lcancel := context.WithTimeout(context.Background(), 2*time.Second)
					err := linkStatsRepo.Upsert(lctx, models.LinkStat{Node: nodeNum, TotalTxSeconds: total, LastTxStart: &start, LastTxEnd: &end})
					lcancel()
					if err != nil {
						sugar.Warnw("link stats persist failed", "node", localNode, "adjacent", adjacentNode, "err", err)
					}
				}
			},
		)

		go runNodeLoop(ctx, loop, tracker, time.Duration(cfg.TickMS)*time.Millisecond)
	}

	apiLayer := api.New(gormDB, cfg.JWTSecret, cfg.TokenTTL)
	apiLayer.SetNodes(nodes)
	apiLayer.SetNodeLookup(nodeLookupSvc)
	apiLayer.SetTalkerLog(talkerLog)
	apiLayer.SetBuildInfo(buildVersion, buildTime)
	apiLayer.SetTriggerPoll(func(nodeID int) {})

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", api.Health)
	mux.HandleFunc("/api/dashboard/summary", apiLayer.DashboardSummary)

	limiter := middleware.RateLimiter(cfg.AuthRateLimitRPM)
	mux.Handle("/api/auth/register", limiter(http.HandlerFunc(apiLayer.Register)))
	mux.Handle("/api/auth/login", limiter(http.HandlerFunc(apiLayer.Login)))

	userRepo := repository.NewUserRepo(db.DB)
	userLoader := func(email string) (*repository.SafeUser, error) {
		lctx, lcancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer lcancel()
		u, err := userRepo.GetByEmail(lctx, email)
		if err != nil || u == nil {
			return nil, err
		}
		return &repository.SafeUser{ID: u.ID, Email: u.Email, Role: u.Role}, nil
	}
	authMW := middleware.Auth(cfg.JWTSecret, userLoader)
	adminMW := middleware.RequireRole("admin", "superadmin")

	mux.Handle("/api/me", authMW(http.HandlerFunc(apiLayer.Me)))
	mux.Handle("/api/admin/summary", authMW(adminMW(http.HandlerFunc(apiLayer.AdminSummary))))

	publicLimiter := middleware.RateLimiter(cfg.PublicStatsRateLimitRPM)
	wrapPublicOrAuth := func(h http.HandlerFunc) http.Handler {
		if cfg.AllowAnonDashboard {
			return publicLimiter(h)
		}
		return authMW(h)
	}
	mux.Handle("/api/node-lookup", wrapPublicOrAuth(apiLayer.NodeLookup))
	mux.Handle("/api/talker-log", wrapPublicOrAuth(apiLayer.TalkerLog))
	mux.Handle("/api/poll-now", wrapPublicOrAuth(apiLayer.PollNow))
	mux.Handle("/api/link-stats", wrapPublicOrAuth(apiLayer.LinkStatsHandler))
	mux.Handle("/api/link-stats/top", wrapPublicOrAuth(apiLayer.TopLinkStatsHandler))
	mux.Handle("/api/link-stats/{node}", wrapPublicOrAuth(apiLayer.LinkStatByNodeHandler))

	mux.Handle("/api/rpt-stats", authMW(http.HandlerFunc(apiLayer.RPTStats)))
	mux.Handle("/api/voter-stats", authMW(http.HandlerFunc(apiLayer.VoterStats)))

	hub := web.NewHub(sugar)

	// The Hub tracks a single StatusSource; with multiple configured nodes
	// the dashboard follows the first one, the same "primary node" choice
	// the teacher's StateManager made (sm.SetNodeID(cfg.Nodes[0].NodeID)).
	var primarySrc *nodeStatusSource
	if primaryNode, ok := nodes[primaryNodeName]; ok {
		primarySrc = newNodeStatusSource(primaryNode, nil)
	}

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if primarySrc == nil {
			http.Error(w, "no nodes configured", http.StatusServiceUnavailable)
			return
		}
		hub.HandleWS(primarySrc, func(r *http.Request) (bool, bool) { return cfg.AllowAnonDashboard, false })(w, r)
	})

	if primarySrc != nil {
		go hub.HeartbeatLoop(primarySrc, 10*time.Second)
	}
	go hub.TxEventLoop(txEvents)

	staticDir := os.Getenv("NEXUS_STATIC_DIR")
	if staticDir == "" {
		staticDir = "frontend/dist"
	}
	mux.Handle("/", http.FileServer(http.Dir(staticDir)))

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux}
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
}

// runNodeLoop drives a node's controller Loop and KeyingTracker on a fixed
// tick, the host-owned ticker the teacher's AMI poller equivalent never
// needed but a real controlling loop does (internal/rptnode/loop.go).
func runNodeLoop(ctx context.Context, loop *rptnode.Loop, tracker *rptnode.KeyingTracker, period time.Duration) {
	if period <= 0 {
		period = 20 * time.Millisecond
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now
			loop.Tick(now, elapsed)
			tracker.Advance(now)
		}
	}
}

// scheduleFromConfig converts a node's configured scheduler rows
// (config.NodeConfig.Scheduler) into the rptnode.ScheduleEntry table its
// Loop evaluates once per minute.
func scheduleFromConfig(cfg config.NodeConfig) []rptnode.ScheduleEntry {
	entries := make([]rptnode.ScheduleEntry, 0, len(cfg.Scheduler))
	for _, e := range cfg.Scheduler {
		entries = append(entries, rptnode.ScheduleEntry(e))
	}
	return entries
}
