package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"chore-planner/internal/bot"
	"chore-planner/internal/config"
	"chore-planner/internal/repository"
	"chore-planner/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	setupLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	householdRepo := repository.NewHouseholdRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	executionRepo := repository.NewExecutionRepository(db)

	var clock service.Clock
	photos := service.DirPhotoStore{Root: cfg.PhotoDir}
	householdSvc := service.NewHouseholdService(householdRepo, memberRepo)
	workloadSvc := service.NewWorkloadService(taskRepo, executionRepo, cfg.PriorityWeights)
	ledgerSvc := service.NewLedgerService(taskRepo, memberRepo, executionRepo, photos, clock)
	rotationSvc := service.NewRotationService(taskRepo, memberRepo, workloadSvc, clock)
	assignmentSvc := service.NewAssignmentService(taskRepo, memberRepo, executionRepo, workloadSvc, rotationSvc, clock)
	taskSvc := service.NewTaskService(taskRepo, memberRepo, ledgerSvc, photos, clock)

	var telegramBot *bot.Bot
	if !cfg.BotDisabled {
		telegramBot, err = bot.New(cfg.TelegramToken, bot.Services{
			Households:  householdSvc,
			Tasks:       taskSvc,
			Ledger:      ledgerSvc,
			Workload:    workloadSvc,
			Assignments: assignmentSvc,
			Clock:       clock,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("bot")
		}
	}

	if cfg.AutoAssignSchedule != "" {
		var onPlan func(context.Context, *service.Plan)
		if telegramBot != nil {
			onPlan = telegramBot.NotifyPlan
		}
		runner := service.NewAutoAssignRunner(householdSvc, assignmentSvc, onPlan)

		scheduler := service.NewSchedulerService(time.UTC)
		if _, err := scheduler.Schedule(cfg.AutoAssignSchedule, func() {
			jobCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
			defer cancel()
			if err := runner.Run(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("scheduled auto-assign")
			}
		}); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.AutoAssignSchedule).Msg("schedule auto-assign")
		}
		scheduler.Start()
		defer scheduler.Stop()
		log.Info().Str("schedule", cfg.AutoAssignSchedule).Msg("auto-assign scheduled")
	}

	log.Info().Str("database", cfg.DatabaseURL).Bool("bot", telegramBot != nil).Msg("chore planner started")
	if telegramBot != nil {
		if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatal().Err(err).Msg("bot stopped with error")
		}
	} else {
		<-ctx.Done()
	}
	log.Info().Msg("shutdown complete")
}

func setupLogger(level, format string) {
	zerolog.TimeFieldFormat = time.RFC3339
	if format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
