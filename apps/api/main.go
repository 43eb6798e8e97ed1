package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/exam"
	"github.com/trezcool/academia/core/finance"
	"github.com/trezcool/academia/core/school"
	"github.com/trezcool/academia/core/user"
	emailsvc "github.com/trezcool/academia/services/email"
	logsvc "github.com/trezcool/academia/services/logger"
	"github.com/trezcool/academia/storage/database"
	sqlxrepos "github.com/trezcool/academia/storage/database/sqlx"
)

func main() {
	// set up loggers
	var logger core.Logger
	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	if core.Conf.Debug {
		logger = core.NewStdLogger(std)
	} else {
		logger = logsvc.NewRollbarLogger(std)
	}

	// set up DB
	db, err := setUpDB()
	if err != nil {
		logger.Fatal("setting up database", err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if core.Conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}

	schoolRepo := sqlxrepos.NewSchoolRepository(db)
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), mailSvc)
	schoolSvc := school.NewService(schoolRepo)
	examSvc := exam.NewService(sqlxrepos.NewExamRepository(db), schoolRepo, mailSvc)
	finSvc := finance.NewService(sqlxrepos.NewFinanceRepository(db), schoolRepo, mailSvc)

	// start API server
	app := echoapi.NewServer(&echoapi.Options{
		Addr:       core.Conf.Server.Addr,
		UserSvc:    usrSvc,
		SchoolSvc:  schoolSvc,
		ExamSvc:    examSvc,
		FinanceSvc: finSvc,
		Logger:     logger,
	})
	app.Start()
}

func setUpDB() (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(); err != nil {
		return nil, err
	}
	db, err := database.Open()
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
