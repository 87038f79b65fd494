package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/rollcall/rollcall/core"
	"github.com/rollcall/rollcall/core/attendance"
	"github.com/rollcall/rollcall/core/user"
	logsvc "github.com/rollcall/rollcall/services/logger"
	"github.com/rollcall/rollcall/storage/database"
	inmemdb "github.com/rollcall/rollcall/storage/database/inmem"
	sqlxrepos "github.com/rollcall/rollcall/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	fence, err := attendance.NewGeofenceConfig(conf.Attendance)
	if err != nil {
		logger.Fatal(fmt.Sprintf("invalid geofence: %v", err), err)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	cli := commandLine{
		conf:     conf,
		validate: validate,
		fence:    fence,
		out:      os.Stdout,
	}

	// set up DB
	var usrRepo user.Repository
	if conf.Database.InMemory() {
		usrRepo = inmemdb.NewUserRepository(inmemdb.Open())
	} else {
		var db *sqlx.DB
		if db, err = database.Open(conf); err != nil {
			logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
		}
		defer func() { _ = db.Close() }()
		cli.db = db
		usrRepo = sqlxrepos.NewUserRepository(db)
	}
	cli.usrSvc = user.NewService(usrRepo)

	// start CLI
	if err = cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
