package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/rollcall/rollcall/apps/api/echo"
	"github.com/rollcall/rollcall/core"
	"github.com/rollcall/rollcall/core/attendance"
	"github.com/rollcall/rollcall/core/lecture"
	"github.com/rollcall/rollcall/core/record"
	"github.com/rollcall/rollcall/core/user"
	emailsvc "github.com/rollcall/rollcall/services/email"
	logsvc "github.com/rollcall/rollcall/services/logger"
	"github.com/rollcall/rollcall/storage/database"
	inmemdb "github.com/rollcall/rollcall/storage/database/inmem"
	sqlxrepos "github.com/rollcall/rollcall/storage/database/sqlx"
)

type repositories struct {
	db      echoapi.Pinger
	user    user.Repository
	lecture lecture.Repository
	record  record.Repository
	close   func() error
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB
	repos, err := setUpRepositories(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = repos.close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// the fence is checked once, a misconfigured deployment does not start
	pipeline, err := attendance.NewPipeline(conf.Attendance)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up attendance: %v", err), err)
	}
	if conf.Attendance.TokenSecret == "" {
		logger.Warn("TOKEN_SECRET is not set: QR codes are issued unsigned")
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	usrSvc := user.NewService(repos.user)
	lectureSvc := lecture.NewService(repos.lecture, pipeline, conf)
	recordSvc := record.NewService(repos.record, lectureSvc, usrSvc, mailSvc, pipeline, conf)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	lecture.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewFloat("geofence_radius_meters").Set(pipeline.Fence.AllowedRadiusMeters)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			DB:         repos.db,
			UserSvc:    usrSvc,
			LectureSvc: lectureSvc,
			RecordSvc:  recordSvc,
			Validate:   validate,
			Translator: translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpRepositories(conf *core.Config) (*repositories, error) {
	if conf.Database.InMemory() {
		db := inmemdb.Open()
		return &repositories{
			db:      db,
			user:    inmemdb.NewUserRepository(db),
			lecture: inmemdb.NewLectureRepository(db),
			record:  inmemdb.NewRecordRepository(db),
			close:   func() error { return nil },
		}, nil
	}

	db, err := setUpDB(conf)
	if err != nil {
		return nil, err
	}
	return &repositories{
		db:      db,
		user:    sqlxrepos.NewUserRepository(db),
		lecture: sqlxrepos.NewLectureRepository(db),
		record:  sqlxrepos.NewRecordRepository(db),
		close:   db.Close,
	}, nil
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
