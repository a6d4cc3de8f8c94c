package services

import (
	"log"
	"net/http"
	"os"

	"github.com/claveora/OSIS-Integrated-Administration/osis/audit"
	"github.com/claveora/OSIS-Integrated-Administration/osis/auth"
	"github.com/claveora/OSIS-Integrated-Administration/osis/storage"
	"github.com/claveora/OSIS-Integrated-Administration/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

// OsisAdmin ties the per-resource services together under a single router.
type OsisAdmin struct {
	dashboard   DashboardService
	division    DivisionService
	user        UserService
	proker      ProkerService
	transaction TransactionService
	message     MessageService
	setting     SettingService

	db *gorm.DB
}

func NewOsisAdmin(db *gorm.DB, store storage.Storage, userAuth auth.IdentityProvider, recorder *audit.Recorder) OsisAdmin {
	return OsisAdmin{
		dashboard:   DashboardService{db: db, userAuth: userAuth, audit: recorder},
		division:    DivisionService{db: db, userAuth: userAuth, audit: recorder},
		user:        UserService{db: db, userAuth: userAuth, audit: recorder},
		proker:      ProkerService{db: db, userAuth: userAuth, audit: recorder, storage: store},
		transaction: TransactionService{db: db, userAuth: userAuth, audit: recorder},
		message:     MessageService{db: db, userAuth: userAuth, audit: recorder},
		setting:     SettingService{db: db, userAuth: userAuth, audit: recorder},
		db:          db,
	}
}

func (o *OsisAdmin) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger: log.New(os.Stderr, "", log.LstdFlags), NoColor: false,
	}))

	r.Mount("/dashboard", o.dashboard.Routes())
	r.Mount("/divisions", o.division.Routes())
	r.Mount("/users", o.user.Routes())
	r.Mount("/prokers", o.proker.Routes())
	r.Mount("/transactions", o.transaction.Routes())
	r.Mount("/messages", o.message.Routes())
	r.Mount("/settings", o.setting.Routes())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteSuccess(w)
	})

	return r
}
