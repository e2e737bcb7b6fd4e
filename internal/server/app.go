package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cortexai/cortexbi/internal/agent"
	"github.com/cortexai/cortexbi/internal/config"
	"github.com/cortexai/cortexbi/internal/security"
	"github.com/cortexai/cortexbi/internal/service"
	"github.com/cortexai/cortexbi/internal/session"
)

// App holds the long-lived services shared by the HTTP server and the CLI.
type App struct {
	Backend       service.Backend
	Executor      *service.Executor
	Analyst       *agent.Analyst
	Conversations *session.Manager

	PIIDetector *security.PIIDetector
	PromptVal   *security.PromptValidator
	AuditLogger *security.AuditLogger
}

// NewApp connects the warehouse and the language model selected in cfg.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	// ─── Security ───────────────────────────────────────────────────────────────
	auditLogger := security.NewAuditLogger(cfg.EnableAuditLogging)
	costTracker := security.NewCostTracker(cfg.MaxQueryBytesProcessed, cfg.EnableQueryCostTracking)
	dataMasker := security.NewDataMasker(cfg.SensitiveColumns, cfg.EnableDataMasking)
	promptVal := security.NewPromptValidator(config.DefaultMaxPromptLength)
	var piiDetector *security.PIIDetector
	if cfg.EnablePIIDetection {
		piiDetector = security.NewPIIDetector(cfg.PIIKeywords)
	}

	// ─── Warehouse ──────────────────────────────────────────────────────────────
	backend, err := service.Open(ctx, cfg, costTracker)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}
	exec := service.NewExecutor(backend, service.ExecutorOptions{
		MaxParallel: cfg.MaxParallel,
		MaxRows:     cfg.MaxRows,
		Timeout:     time.Duration(cfg.QueryTimeoutMs) * time.Millisecond,
		Masker:      dataMasker,
		Audit:       auditLogger,
	})

	// ─── AI Agent ───────────────────────────────────────────────────────────────
	llm, err := newCompleter(ctx, cfg)
	if err != nil {
		backend.Close()
		return nil, err
	}
	analyst := agent.NewAnalyst(llm, backend, agent.Options{
		Timeout:        time.Duration(cfg.AgentTimeout) * time.Second,
		SchemaCacheTTL: time.Duration(cfg.SchemaCacheTTLSec) * time.Second,
	})

	// ─── Conversations ──────────────────────────────────────────────────────────
	convs := session.NewManager(session.Collaborators{
		Generator: analyst,
		Executor:  exec,
		Charts:    analyst,
		Insights:  analyst,
	}, cfg.ConversationTTL(), session.WithObserver(stageLogger(auditLogger)))

	log.Info().
		Str("backend", backend.Name()).
		Str("llm_provider", cfg.LLMProvider).
		Str("model", llm.Model()).
		Bool("auth_enabled", cfg.EnableAuth && len(cfg.APIKeys) > 0).
		Bool("data_masking", cfg.EnableDataMasking).
		Bool("audit_logging", cfg.EnableAuditLogging).
		Bool("pii_detection", cfg.EnablePIIDetection).
		Msg("service configuration")

	return &App{
		Backend:       backend,
		Executor:      exec,
		Analyst:       analyst,
		Conversations: convs,
		PIIDetector:   piiDetector,
		PromptVal:     promptVal,
		AuditLogger:   auditLogger,
	}, nil
}

func newCompleter(ctx context.Context, cfg *config.Config) (agent.Completer, error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, errors.New("GEMINI_API_KEY not set")
		}
		return agent.NewGeminiCompleter(ctx, cfg.GeminiAPIKey, cfg.Model())
	default:
		if cfg.AnthropicAPIKey == "" {
			return nil, errors.New("ANTHROPIC_API_KEY not set")
		}
		return agent.NewAnthropicCompleter(cfg.AnthropicAPIKey, cfg.Model(), cfg.AnthropicBaseURL), nil
	}
}

// stageLogger reports every pipeline transition to the audit log.
func stageLogger(audit *security.AuditLogger) func(session.Event) {
	return func(ev session.Event) {
		sessionID, errKind := "", ""
		if ev.Session != nil {
			sessionID = ev.Session.ID
		}
		if ev.Err != nil {
			errKind = string(ev.Err.Kind)
			if sessionID == "" {
				sessionID = ev.Err.SessionID
			}
		}
		audit.LogStage(ev.ConversationID, sessionID, string(ev.Stage), ev.Question, errKind)
	}
}

// Close releases the warehouse connection.
func (a *App) Close() error {
	if a.Backend == nil {
		return nil
	}
	return a.Backend.Close()
}
