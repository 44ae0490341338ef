package handlers

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/recoverly/followup-agent/internal/scheduler"
	"github.com/recoverly/followup-agent/internal/store"
	"github.com/recoverly/followup-agent/internal/usage"
	"github.com/recoverly/followup-agent/pkg/env"
	"github.com/recoverly/followup-agent/pkg/logger"
	"github.com/recoverly/followup-agent/pkg/mongo"
)

type Handler struct {
	cfg         *env.Config
	redisClient *redis.Client
	mongoClient *mongo.Client
	store       *store.Store
	tracker     *usage.Tracker
	scheduler   *scheduler.Scheduler
	logger      *zap.Logger
}

func NewHandler(
	cfg *env.Config,
	redisClient *redis.Client,
	mongoClient *mongo.Client,
	st *store.Store,
	tracker *usage.Tracker,
	sched *scheduler.Scheduler,
) *Handler {
	log := logger.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		cfg:         cfg,
		redisClient: redisClient,
		mongoClient: mongoClient,
		store:       st,
		tracker:     tracker,
		scheduler:   sched,
		logger:      log,
	}
}
