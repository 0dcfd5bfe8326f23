package router

import (
	"database/sql"
	"net/http"

	fsmem "vet-exam-orders/internal/adapters/files/memory"
	fsminio "vet-exam-orders/internal/adapters/files/minio"
	hintsmem "vet-exam-orders/internal/adapters/hints/memory"
	redishints "vet-exam-orders/internal/adapters/hints/redis"
	dummynotify "vet-exam-orders/internal/adapters/notify/dummy"
	sendgridnotify "vet-exam-orders/internal/adapters/notify/sendgrid"
	mem "vet-exam-orders/internal/adapters/storage/memory"
	pg "vet-exam-orders/internal/adapters/storage/postgres"
	"vet-exam-orders/internal/domain/emaillog"
	"vet-exam-orders/internal/domain/exams"
	"vet-exam-orders/internal/domain/suggestions"
	"vet-exam-orders/internal/middleware"
	"vet-exam-orders/internal/platform/config"
	"vet-exam-orders/internal/platform/logger"
	"vet-exam-orders/internal/ports/auth"
	"vet-exam-orders/internal/ports/files"

	_ "vet-exam-orders/docs"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	Cfg config.Config
	Log logger.Logger

	// Opcional: si viene, usa esta DB en vez de abrir por DSN.
	DB *sql.DB
}

// NewRouter arma todo el árbol de dependencias según la config:
// cada colaborador externo (Record Store, hints, archivos, gateway de
// correos) cae a su versión in-memory cuando no está configurado, así
// el servicio levanta sin infraestructura.
func NewRouter(opts Options) http.Handler {
	log := opts.Log
	if log == nil {
		log = logger.NewFromEnv()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	// Record Store + log de correos
	var (
		examsRepo exams.Repository
		logRepo   emaillog.Repository
	)

	db := opts.DB
	if db == nil && opts.Cfg.DatabaseDSN != "" {
		opened, err := pg.Open(opts.Cfg.DatabaseDSN)
		if err != nil {
			log.Warn("postgres unavailable, using in-memory stores", map[string]any{"err": err.Error()})
		} else {
			db = opened
		}
	}

	if db != nil {
		examsRepo = pg.NewExamsRepo(db)
		logRepo = pg.NewEmailLogRepo(db)
	} else {
		examsRepo = mem.NewExamsRepo()
		logRepo = mem.NewEmailLogRepo()
	}

	// File/PDF store
	var fileStore files.Store
	if opts.Cfg.MinioEndpoint != "" {
		st, err := fsminio.NewStore(fsminio.Config{
			Endpoint:  opts.Cfg.MinioEndpoint,
			AccessKey: opts.Cfg.MinioAccessKey,
			SecretKey: opts.Cfg.MinioSecretKey,
			Bucket:    opts.Cfg.MinioBucket,
			UseSSL:    opts.Cfg.MinioUseSSL,
		}, examsRepo)
		if err != nil {
			log.Warn("minio unavailable, using in-memory file store", map[string]any{"err": err.Error()})
		} else {
			fileStore = st
		}
	}
	if fileStore == nil {
		fileStore = fsmem.NewStore(examsRepo)
	}

	// Gateway de notificaciones
	var gateway emaillog.Gateway
	if opts.Cfg.SendgridAPIKey != "" {
		gw, err := sendgridnotify.NewGateway(sendgridnotify.Config{
			APIKey:    opts.Cfg.SendgridAPIKey,
			FromName:  opts.Cfg.NotifyFromName,
			FromEmail: opts.Cfg.NotifyFrom,
			To:        opts.Cfg.NotifyTo,
		}, logRepo)
		if err != nil {
			log.Warn("sendgrid not configured, using dummy gateway", map[string]any{"err": err.Error()})
		} else {
			gateway = gw
		}
	}
	if gateway == nil {
		gateway = dummynotify.NewGateway(logRepo, log)
	}

	// Hints de autocompletado
	var hintStore suggestions.Store
	if opts.Cfg.RedisAddr != "" {
		hintStore = redishints.NewStore(opts.Cfg.RedisAddr, opts.Cfg.RedisPassword)
	} else {
		hintStore = hintsmem.NewStore()
	}

	// Services por módulo
	hintsSvc := suggestions.NewService(hintStore)
	pipeline := exams.NewPipeline(examsRepo, fileStore, gateway, log)
	examsSvc := exams.NewService(examsRepo, pipeline, hintsSvc, log)

	// Rutas por módulo
	exams.RegisterRoutes(r, examsSvc, log)
	suggestions.RegisterRoutes(r, hintsSvc)

	return r
}
