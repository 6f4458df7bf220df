package httpapi

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/clarimed/auditchain/internal/domain"
	apperrors "github.com/clarimed/auditchain/internal/errors"
	"github.com/clarimed/auditchain/internal/service"
)

// AuditHandler serves the audit entry endpoints.
type AuditHandler struct {
	writer     *service.Writer
	entries    domain.EntryRepository
	classifier *apperrors.ErrorClassifier
}

func NewAuditHandler(writer *service.Writer, entries domain.EntryRepository, classifier *apperrors.ErrorClassifier) *AuditHandler {
	return &AuditHandler{writer: writer, entries: entries, classifier: classifier}
}

func (h *AuditHandler) Register(router fiber.Router) {
	audit := router.Group("/audit")
	audit.Post("/entries", h.AppendEntry, RequirePrincipal())
	audit.Get("/entries", h.ListEntries)
}

type appendEntryRequest struct {
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	Payload      map[string]any `json:"payload"`
	// System marks entries originated by the platform itself rather than
	// the authenticated principal (actor_id stays empty).
	System bool `json:"system,omitempty"`
}

func (h *AuditHandler) AppendEntry(c fiber.Ctx) error {
	var req appendEntryRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed request body"})
	}

	input := service.AppendInput{
		Action:       domain.Action(req.Action),
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		Payload:      req.Payload,
	}
	if !req.System {
		if p, ok := domain.PrincipalFromContext(c.Context()); ok {
			input.ActorID = p.ID
		}
	}

	entry, err := h.writer.Append(c.Context(), input)
	if err != nil {
		return h.respondError(c, err, "append_audit_entry")
	}
	return c.Status(fiber.StatusCreated).JSON(entry)
}

func (h *AuditHandler) ListEntries(c fiber.Ctx) error {
	afterSeq, err := strconv.ParseInt(c.Query("after_seq", "0"), 10, 64)
	if err != nil || afterSeq < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "after_seq must be a non-negative integer"})
	}
	limit, err := strconv.Atoi(c.Query("limit", "100"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "limit must be an integer"})
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	entries, err := h.entries.ListAfter(c.Context(), afterSeq, limit)
	if err != nil {
		return h.respondError(c, err, "list_audit_entries")
	}
	return c.JSON(fiber.Map{"entries": entries, "count": len(entries)})
}

func (h *AuditHandler) respondError(c fiber.Ctx, err error, operation string) error {
	status, message := h.classifier.LogAndStatus(c.Context(), h.classifier.Classify(err, operation))
	return c.Status(status).JSON(fiber.Map{"error": message})
}

// VerificationHandler serves manual verification triggers and run history.
type VerificationHandler struct {
	verification *service.VerificationService
	classifier   *apperrors.ErrorClassifier
}

func NewVerificationHandler(verification *service.VerificationService, classifier *apperrors.ErrorClassifier) *VerificationHandler {
	return &VerificationHandler{verification: verification, classifier: classifier}
}

func (h *VerificationHandler) Register(router fiber.Router) {
	verification := router.Group("/verification")
	verification.Post("/runs", h.TriggerRun, RequirePrincipal())
	verification.Get("/runs", h.ListRuns)
}

func (h *VerificationHandler) TriggerRun(c fiber.Ctx) error {
	incremental := c.Query("scope", "full") == "incremental"

	run, err := h.verification.Run(c.Context(), service.VerificationOptions{Incremental: incremental})
	if err != nil {
		return h.respondError(c, err, "trigger_verification_run")
	}
	return c.Status(fiber.StatusCreated).JSON(run)
}

func (h *VerificationHandler) ListRuns(c fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "limit must be an integer"})
	}

	runs, err := h.verification.List(c.Context(), limit)
	if err != nil {
		return h.respondError(c, err, "list_verification_runs")
	}
	return c.JSON(fiber.Map{"runs": runs, "count": len(runs)})
}

func (h *VerificationHandler) respondError(c fiber.Ctx, err error, operation string) error {
	status, message := h.classifier.LogAndStatus(c.Context(), h.classifier.Classify(err, operation))
	return c.Status(status).JSON(fiber.Map{"error": message})
}

// AlertsHandler serves the alert lifecycle endpoints.
type AlertsHandler struct {
	alerts     *service.AlertsService
	classifier *apperrors.ErrorClassifier
}

func NewAlertsHandler(alerts *service.AlertsService, classifier *apperrors.ErrorClassifier) *AlertsHandler {
	return &AlertsHandler{alerts: alerts, classifier: classifier}
}

func (h *AlertsHandler) Register(router fiber.Router) {
	alerts := router.Group("/alerts")
	alerts.Get("/", h.ListAlerts)
	alerts.Post("/:id/acknowledgment", h.Acknowledge, RequirePrincipal())
}

type acknowledgeRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (h *AlertsHandler) Acknowledge(c fiber.Ctx) error {
	alertID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed alert id"})
	}

	var req acknowledgeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed request body"})
	}

	principal, _ := domain.PrincipalFromContext(c.Context())
	ack, err := h.alerts.Acknowledge(c.Context(), service.AcknowledgeRequest{
		AlertID:    alertID,
		Status:     req.Status,
		Notes:      req.Notes,
		OperatorID: principal.ID,
	})
	if err != nil {
		return h.respondError(c, err, "acknowledge_alert")
	}
	return c.JSON(ack)
}

func (h *AlertsHandler) ListAlerts(c fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "limit must be an integer"})
	}

	alerts, err := h.alerts.ListAlerts(c.Context(), c.Query("status", ""), limit)
	if err != nil {
		return h.respondError(c, err, "list_alerts")
	}
	return c.JSON(fiber.Map{"alerts": alerts, "count": len(alerts)})
}

func (h *AlertsHandler) respondError(c fiber.Ctx, err error, operation string) error {
	status, message := h.classifier.LogAndStatus(c.Context(), h.classifier.Classify(err, operation))
	return c.Status(status).JSON(fiber.Map{"error": message})
}

// ReportsHandler serves the compliance report endpoint.
type ReportsHandler struct {
	reports    *service.ReportsService
	classifier *apperrors.ErrorClassifier
}

func NewReportsHandler(reports *service.ReportsService, classifier *apperrors.ErrorClassifier) *ReportsHandler {
	return &ReportsHandler{reports: reports, classifier: classifier}
}

func (h *ReportsHandler) Register(router fiber.Router) {
	reports := router.Group("/reports")
	reports.Get("/compliance", h.Compliance)
}

func (h *ReportsHandler) Compliance(c fiber.Ctx) error {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "from must be an RFC3339 timestamp"})
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "to must be an RFC3339 timestamp"})
	}

	report, err := h.reports.Generate(c.Context(), from, to)
	if err != nil {
		return h.respondError(c, err, "generate_compliance_report")
	}
	return c.JSON(report)
}

func (h *ReportsHandler) respondError(c fiber.Ctx, err error, operation string) error {
	status, message := h.classifier.LogAndStatus(c.Context(), h.classifier.Classify(err, operation))
	return c.Status(status).JSON(fiber.Map{"error": message})
}
