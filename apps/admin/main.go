package main

import (
	"log"
	"os"

	"github.com/trezcool/mafunzo/core"
	"github.com/trezcool/mafunzo/core/bulkimport"
	"github.com/trezcool/mafunzo/core/user"
	emailsvc "github.com/trezcool/mafunzo/services/email"
	logsvc "github.com/trezcool/mafunzo/services/logger"
	"github.com/trezcool/mafunzo/storage/database"
	sqlxrepos "github.com/trezcool/mafunzo/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.DB.Ping())

	// set up services
	appLogger := logsvc.NewRollbarLogger(logger, conf)
	appLogger.Enable(!conf.Debug)

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, appLogger)
	}
	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo, mailSvc, conf)

	// start CLI
	cli := commandLine{
		db:        db,
		usrRepo:   usrRepo,
		colRepo:   sqlxrepos.NewCollegeRepository(db),
		importSvc: bulkimport.NewService(db, sqlxrepos.NewImportRepository(db), usrSvc, appLogger),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
