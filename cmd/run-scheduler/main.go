package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/recoverly/followup-agent/internal/scheduler"
	"github.com/recoverly/followup-agent/internal/store/mongostore"
	"github.com/recoverly/followup-agent/internal/usage"
	"github.com/recoverly/followup-agent/pkg/env"
	"github.com/recoverly/followup-agent/pkg/logger"
	"github.com/recoverly/followup-agent/pkg/mongo"
	"github.com/recoverly/followup-agent/pkg/sms"
	"github.com/recoverly/followup-agent/pkg/vapi"
)

// Runs one scheduling pass and exits. Useful for external cron setups
// where the long-lived worker in the server is disabled.
func main() {
	cfg, err := env.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Init(cfg.LogLevel, cfg.AppEnv); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	mongoClient, err := mongo.NewClient(cfg.MongoURI, cfg.DBName)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	defer mongoClient.Disconnect(ctx)

	st := mongostore.New(mongoClient)
	tracker := usage.NewTracker(st.Usage, cfg.DefaultMinutesAlloc)

	vapiClient := vapi.NewClient(
		cfg.VapiAPIKey,
		cfg.VapiPhoneNumberID,
		cfg.VapiBaseURL,
		time.Duration(cfg.VapiTimeoutMs)*time.Millisecond,
	)
	smsSender := sms.NewSender(cfg.SMSProviderURL, cfg.SMSProviderToken, 10*time.Second)

	sched := scheduler.New(st, tracker, vapiClient, smsSender, scheduler.Config{
		SelectionBatchSize: cfg.SelectionBatchSize,
		ReconcileBatchSize: cfg.ReconcileBatchSize,
		ReconcileAfter:     time.Duration(cfg.ReconcileAfterMin) * time.Minute,
		DefaultMaxAttempts: cfg.DefaultMaxAttempts,
		Location:           time.Local,
	})

	result, err := sched.Run(ctx)
	if err != nil {
		log.Fatalf("Scheduler run failed: %v", err)
	}

	out, _ := json.Marshal(result)
	fmt.Println(string(out))
}
