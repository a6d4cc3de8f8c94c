package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/claveora/OSIS-Integrated-Administration/osis/audit"
	"github.com/claveora/OSIS-Integrated-Administration/osis/auth"
	"github.com/claveora/OSIS-Integrated-Administration/osis/schema"
	"github.com/claveora/OSIS-Integrated-Administration/osis/seed"
	"github.com/claveora/OSIS-Integrated-Administration/osis/services"
	"github.com/claveora/OSIS-Integrated-Administration/osis/storage"
	"github.com/claveora/OSIS-Integrated-Administration/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type serverEnv struct {
	PublicHostname string
	DataDir        string
	UploadsDir     string
	JwtSecret      string

	AdminUsername string
	AdminEmail    string
	AdminPassword string

	DatabaseUri string

	AllowAnyOrigin bool
}

func loadEnvFile(envFile string) {
	slog.Info(fmt.Sprintf("loading env from file %v", envFile))
	err := godotenv.Load(envFile)
	if err != nil {
		log.Fatalf("error loading .env file '%v': %v", envFile, err)
	}
}

// All variables used by the server are loaded here so the full configuration
// surface is visible in one place.
func loadEnv() serverEnv {
	missingEnvs := []string{}

	requiredEnv := func(key string) string {
		env := os.Getenv(key)
		if env == "" {
			missingEnvs = append(missingEnvs, key)
			slog.Error("missing required env variable", "key", key)
		}
		return env
	}

	env := serverEnv{
		PublicHostname: requiredEnv("PUBLIC_HOSTNAME"),
		DataDir:        requiredEnv("DATA_DIR"),
		JwtSecret:      requiredEnv("JWT_SECRET"),

		AdminUsername: requiredEnv("ADMIN_USERNAME"),
		AdminEmail:    requiredEnv("ADMIN_EMAIL"),
		AdminPassword: requiredEnv("ADMIN_PASSWORD"),

		DatabaseUri: requiredEnv("DATABASE_URI"),

		// Permissive CORS is for local frontend development only.
		AllowAnyOrigin: utils.BoolEnvVar("ALLOW_ANY_ORIGIN"),
	}

	if len(missingEnvs) > 0 {
		log.Fatalf("The following required env vars are missing: %s", strings.Join(missingEnvs, ", "))
	}

	env.UploadsDir = utils.OptionalEnv("UPLOADS_DIR")
	if env.UploadsDir == "" {
		env.UploadsDir = filepath.Join(env.DataDir, "uploads")
	}

	return env
}

func (env *serverEnv) postgresDsn() string {
	parts, err := url.Parse(env.DatabaseUri)
	if err != nil {
		log.Fatalf("error parsing db uri: %v", err)
	}
	pwd, _ := parts.User.Password()
	dbname := strings.TrimPrefix(parts.Path, "/")
	return fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v", parts.Hostname(), parts.User.Username(), pwd, dbname, parts.Port())
}

func initLogging(logFile *os.File) {
	log.SetFlags(log.Lshortfile | log.Ltime | log.Ldate)
	log.SetOutput(io.MultiWriter(logFile, os.Stderr))
	slog.SetDefault(slog.New(slog.NewJSONHandler(io.MultiWriter(logFile, os.Stderr), nil)))
	slog.Info("logging initialized", "log_file", logFile.Name())
}

func initDb(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("error opening database connection: %v", err)
	}

	err = db.AutoMigrate(schema.AllTables()...)
	if err != nil {
		log.Fatalf("error migrating db schema: %v", err)
	}

	return db
}

func main() {
	envFile := flag.String("env", "", "File to load env variables from. If not specified will just load them from the environment variables already defined.")
	port := flag.Int("port", utils.IntEnvVar("SERVER_PORT", 8000), "Port to run server on")

	flag.Parse()

	if *envFile != "" {
		loadEnvFile(*envFile)
	}
	env := loadEnv()

	err := os.MkdirAll(filepath.Join(env.DataDir, "logs/"), 0777)
	if err != nil {
		log.Fatalf("error creating log dir: %v", err)
	}

	logFile, err := os.OpenFile(filepath.Join(env.DataDir, "logs/server.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer logFile.Close()

	auditLog, err := os.OpenFile(filepath.Join(env.DataDir, "logs/audit.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		log.Fatalf("error opening audit log file: %v", err)
	}
	defer auditLog.Close()

	initLogging(logFile)

	db := initDb(env.postgresDsn())

	adminRoleId, err := seed.EnsureDefaults(db)
	if err != nil {
		log.Fatalf("error seeding default roles and settings: %v", err)
	}

	mediaStorage := storage.NewSharedDisk(env.UploadsDir)
	slog.Info("serving proker media uploads", "location", mediaStorage.Location())

	identityProvider, err := auth.NewBasicIdentityProvider(
		db,
		auth.NewAuditLogger(auditLog),
		auth.BasicProviderArgs{
			Secret:        []byte(env.JwtSecret),
			AdminUsername: env.AdminUsername,
			AdminEmail:    env.AdminEmail,
			AdminPassword: env.AdminPassword,
			AdminRoleId:   adminRoleId,
		},
	)
	if err != nil {
		log.Fatalf("error creating basic identity provider: %v", err)
	}

	recorder := audit.NewRecorder(db)

	admin := services.NewOsisAdmin(db, mediaStorage, identityProvider, recorder)

	allowedOrigins := []string{env.PublicHostname}
	if env.AllowAnyOrigin {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Mount("/api/v1", admin.Routes())
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", services.MediaFiles(mediaStorage)))

	slog.Info("starting server", "port", *port)
	err = http.ListenAndServe(fmt.Sprintf(":%d", *port), r)
	if err != nil {
		log.Fatalf("listen and serve returned error: %v", err.Error())
	}
}
