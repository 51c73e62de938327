package bootstrap

import (
	"context"
	"os"

	"clinic_server/adapter/in/worker"
	"clinic_server/adapter/out/mongodb"
	"clinic_server/adapter/out/persistence"
	"clinic_server/adapter/out/provider"
	"clinic_server/config"
	"clinic_server/core/port/out"
	"clinic_server/core/service/auth"
	"clinic_server/core/service/patient"
	"clinic_server/core/service/schedule"
	"clinic_server/core/service/specialist"
	"clinic_server/infra/database"
	"clinic_server/pkg/lock"
	"clinic_server/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
)

type Dependencies struct {
	Config  *config.Config
	DB      *pgxpool.Pool
	SQLDB   *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client

	// Repositories
	AppointmentRepo out.AppointmentRepository
	PatientRepo     out.PatientRepository
	SpecialistRepo  out.SpecialistRepository
	CredentialRepo  out.CredentialRepository
	AuditRepo       out.AuditRepository

	// Providers
	CalendarProvider *provider.GoogleCalendarAdapter
	TokenProvider    *auth.TokenProviderService

	// Locking
	Locker lock.Locker

	// Background worker
	CleanupWorker *worker.CleanupWorker

	// Services
	ScheduleService   *schedule.Service
	OAuthService      *auth.OAuthService
	PatientService    *patient.Service
	SpecialistService *specialist.Service
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()

	// Database (pgxpool, for health checks and pool stats)
	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	deps.DB = db
	cleanups = append(cleanups, func() { db.Close() })

	// Database (sqlx for the adapters)
	sqlDB, err := database.NewSQLx(cfg.DatabaseURL)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	deps.SQLDB = sqlDB
	cleanups = append(cleanups, func() { sqlDB.Close() })

	// Redis (optional; without it calendar locks degrade to no-ops)
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis connection failed: %v", err)
		} else {
			deps.Redis = redisClient
			cleanups = append(cleanups, func() { redisClient.Close() })
		}
	}
	if deps.Redis != nil {
		deps.Locker = lock.NewRedisCalendarLocker(deps.Redis, cfg.CalendarLockTTL)
	} else {
		deps.Locker = lock.NoopLocker{}
		logger.Warn("Redis not available, calendar locking disabled")
	}

	// MongoDB (optional; booking audit trail)
	if cfg.MongoDBURL != "" {
		mongoClient, err := mongodb.NewClient(cfg.MongoDBURL, cfg.MongoDBName)
		if err != nil {
			logger.Warn("MongoDB connection failed: %v", err)
		} else {
			deps.MongoDB = mongoClient
			cleanups = append(cleanups, func() {
				mongoClient.Disconnect(context.Background())
			})

			auditAdapter := mongodb.NewAuditAdapter(mongoClient.Database(cfg.MongoDBName))
			if err := auditAdapter.EnsureIndexes(context.Background()); err != nil {
				logger.Warn("Failed to ensure audit indexes: %v", err)
			}
			deps.AuditRepo = auditAdapter
		}
	}

	// Repositories
	deps.AppointmentRepo = persistence.NewAppointmentAdapter(sqlDB)
	deps.PatientRepo = persistence.NewPatientAdapter(sqlDB)
	deps.SpecialistRepo = persistence.NewSpecialistAdapter(sqlDB)
	credentialRepo := persistence.NewCredentialAdapter(sqlDB)
	deps.CredentialRepo = credentialRepo

	// Google Calendar provider
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Scopes: []string{
			calendar.CalendarEventsScope,
			"https://www.googleapis.com/auth/userinfo.email",
		},
		Endpoint: google.Endpoint,
	}
	deps.CalendarProvider = provider.NewGoogleCalendarAdapter(oauthConfig)
	deps.TokenProvider = auth.NewTokenProviderService(credentialRepo, oauthConfig)

	// Background worker for remote event cleanup
	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		With().Timestamp().Logger()
	deps.CleanupWorker = worker.NewCleanupWorker(
		deps.CalendarProvider,
		deps.TokenProvider,
		&worker.Config{MaxWorkers: cfg.WorkerCount},
		zlog,
	)

	// Services
	deps.ScheduleService = schedule.NewService(
		deps.AppointmentRepo,
		deps.SpecialistRepo,
		deps.AuditRepo,
		deps.CalendarProvider,
		deps.TokenProvider,
		deps.Locker,
		deps.CleanupWorker,
	)
	deps.OAuthService = auth.NewOAuthService(credentialRepo, oauthConfig)
	deps.PatientService = patient.NewService(deps.PatientRepo)
	deps.SpecialistService = specialist.NewService(deps.SpecialistRepo)

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	return deps, cleanup, nil
}

func (d *Dependencies) HealthCheck(ctx context.Context) error {
	if err := d.DB.Ping(ctx); err != nil {
		return err
	}

	if d.Redis != nil {
		if err := d.Redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}

	return nil
}
