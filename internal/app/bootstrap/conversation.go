package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/appointments"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/approval"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/availability"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/booking"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/calendar"
	appconfig "github.com/lucasdmc/atendeai-lify-admin-sub007/internal/config"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/confirm"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/conversation"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/escalation"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/extract"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/loop"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/notify"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/observability/metrics"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/validate"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/whatsapp"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/pkg/logging"
)

// Coarse clinic-wide gate for typed-in times. Fine-grained availability
// still comes from the rule store; this only rejects the obviously closed
// hours before a slot lookup happens.
var (
	defaultWorkingHours = []int{8, 9, 10, 11, 12, 13, 14, 15, 16, 17}
	defaultOpenWeekdays = map[time.Weekday]bool{
		time.Monday:    true,
		time.Tuesday:   true,
		time.Wednesday: true,
		time.Thursday:  true,
		time.Friday:    true,
	}
)

// Runtime bundles the collaborators the binaries share: the conversation
// engine for message processing plus the services the admin API exposes.
type Runtime struct {
	Engine       *conversation.Engine
	Approvals    *approval.Service
	Availability *availability.Engine
	Rules        *availability.Store
	Transcript   *conversation.TranscriptStore
	Notifier     *notify.Service
}

// RuntimeDeps carries the externally-built resources BuildRuntime assembles
// the pipeline from. Messenger and Metrics are optional.
type RuntimeDeps struct {
	DB         *sql.DB
	StateStore booking.Store
	Messenger  conversation.Messenger
	Metrics    *metrics.ConversationMetrics
}

// BuildMessenger constructs the WhatsApp gateway client, or returns nil
// when no gateway is configured (replies are then logged and dropped).
func BuildMessenger(cfg *appconfig.Config, logger *logging.Logger) (conversation.Messenger, error) {
	if cfg == nil || cfg.WhatsAppBaseURL == "" {
		return nil, nil
	}
	client, err := whatsapp.New(whatsapp.Config{
		BaseURL:    cfg.WhatsAppBaseURL,
		APIToken:   cfg.WhatsAppAPIToken,
		InstanceID: cfg.WhatsAppInstanceID,
		MaxRetries: cfg.WhatsAppSendMaxRetry,
		RetryBase:  cfg.WhatsAppRetryBase,
		SendRate:   cfg.WhatsAppSendRate,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: whatsapp client: %w", err)
	}
	return sendAdapter{client}, nil
}

// sendAdapter drops the gateway message ID so the client satisfies the
// narrower Messenger contract the pipeline works against.
type sendAdapter struct {
	client *whatsapp.Client
}

func (a sendAdapter) Send(ctx context.Context, to, message string) error {
	_, err := a.client.Send(ctx, to, message)
	return err
}

// BuildRuntime wires the full booking pipeline from config and the shared
// resources. The database is mandatory; everything else degrades.
func BuildRuntime(ctx context.Context, cfg *appconfig.Config, deps RuntimeDeps, logger *logging.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("bootstrap: database is required")
	}
	if deps.StateStore == nil {
		return nil, fmt.Errorf("bootstrap: state store is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ruleStore := availability.NewStore(deps.DB)
	apptStore := appointments.NewStore(deps.DB)
	availEngine := availability.NewEngine(ruleStore, apptStore, logger)

	var agenda *calendar.Client
	if cfg.CalendarBaseURL != "" {
		var err error
		agenda, err = calendar.New(calendar.Config{
			BaseURL:  cfg.CalendarBaseURL,
			APIToken: cfg.CalendarAPIToken,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("bootstrap: calendar client: %w", err)
		}
	} else {
		logger.Warn("no calendar configured, bookings recorded locally only")
	}
	apptService := appointments.NewService(apptStore, nil, logger)
	if agenda != nil {
		apptService = appointments.NewService(apptStore, agenda, logger)
	}

	var emailSender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		emailSender = sg
	}
	notifier := notify.NewService(
		emailSender,
		deps.Messenger,
		notify.Config{
			ClinicName:     cfg.ClinicName,
			OperatorEmails: cfg.OperatorEmails,
			OperatorPhones: cfg.OperatorPhones,
		},
		logger,
	)

	approvalOpts := []approval.ServiceOption{
		approval.WithNotifier(notifier),
		approval.WithMutator(apptService),
	}
	if deps.Messenger != nil {
		approvalOpts = append(approvalOpts, approval.WithMessenger(deps.Messenger))
	}
	if deps.Metrics != nil {
		approvalOpts = append(approvalOpts, approval.WithMetrics(deps.Metrics))
	}
	approvals := approval.NewService(approval.NewStore(deps.DB), logger, approvalOpts...)

	machine := booking.NewMachine(
		availEngine,
		extract.New(nil),
		validate.New(defaultWorkingHours, defaultOpenWeekdays),
		confirm.NewSupervisor(cfg.ConfirmMaxAttempts, logger),
		logger,
		booking.WithCalendar(apptService),
		booking.WithApprovals(approvals),
		booking.WithClinicName(cfg.ClinicName),
	)

	transcript := conversation.NewTranscriptStore(deps.DB)

	engineOpts := []conversation.EngineOption{
		conversation.WithEngineClinicName(cfg.ClinicName),
		conversation.WithTranscript(transcript),
	}
	if deps.Metrics != nil {
		engineOpts = append(engineOpts, conversation.WithMetrics(deps.Metrics))
	}
	if cfg.GeminiAPIKey != "" {
		llm, err := conversation.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Warn("gemini unavailable, replies stay scripted", "error", err)
		} else {
			engineOpts = append(engineOpts, conversation.WithLLM(llm))
		}
	}

	engine := conversation.NewEngine(
		deps.StateStore,
		machine,
		extract.New(nil),
		loop.NewDetector(logger),
		escalation.NewSupervisor(notifier, logger),
		logger,
		engineOpts...,
	)

	return &Runtime{
		Engine:       engine,
		Approvals:    approvals,
		Availability: availEngine,
		Rules:        ruleStore,
		Transcript:   transcript,
		Notifier:     notifier,
	}, nil
}
