package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/hourwatch/slot-reservation/internal/config"
	"github.com/hourwatch/slot-reservation/internal/database"
	"github.com/hourwatch/slot-reservation/internal/handler"
	"github.com/hourwatch/slot-reservation/internal/ics"
	"github.com/hourwatch/slot-reservation/internal/notify"
	"github.com/hourwatch/slot-reservation/internal/queue"
	"github.com/hourwatch/slot-reservation/internal/repository"
	"github.com/hourwatch/slot-reservation/internal/router"
	"github.com/hourwatch/slot-reservation/internal/service"
	"github.com/hourwatch/slot-reservation/internal/slot"
	"github.com/hourwatch/slot-reservation/internal/token"
)

func main() {
	_ = godotenv.Load() // .env is optional, real deployments use the environment
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	window, err := slot.NewWindow(cfg.WindowStart, cfg.WindowEnd)
	if err != nil {
		log.Fatalf("reservation window: %v", err)
	}

	codec := token.NewCodec(cfg.TokenKey)
	repo := repository.NewReservationRepo(db)
	publisher := queue.NewPublisher(cfg.AMQPURL)
	svc := service.NewBookingService(repo, codec, window, publisher, nil)

	// The consumer turns reservation events into mails.  It lives in the
	// same process; losing it only delays notifications, never bookings.
	sender := notify.NewSMTPSender(notify.SMTPConfig{
		Host:      cfg.SMTPHost,
		Port:      cfg.SMTPPort,
		Username:  cfg.SMTPUser,
		Password:  cfg.SMTPPass,
		FromEmail: cfg.FromEmail,
		FromName:  cfg.FromName,
		BCCEmail:  cfg.BCCEmail,
	})
	composer := notify.NewComposer(notify.ComposerConfig{
		BaseURL:   cfg.BaseURL,
		EventName: cfg.EventName,
		TeamEmail: cfg.TeamEmail,
		TeamName:  cfg.TeamName,
		Location:  cfg.Location,
	}, codec, ics.Builder{
		Domain:         cfg.Domain,
		OrganizerName:  cfg.OrganizerName,
		OrganizerEmail: cfg.OrganizerEmail,
		Location:       cfg.EventLocation,
	}, sender, nil)
	consumer := queue.NewConsumer(cfg.AMQPURL, composer.Handle, nil)
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	router.Register(e, handler.NewBookingHandler(svc), handler.NewActionHandler(svc), config.NewRedisClient())

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
