package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"dexsync/internal/application/port"
	"dexsync/internal/application/service"
	"dexsync/internal/domain/model"
)

// Handler exposes the sync and read operations over HTTP.
type Handler struct {
	extractor *service.Extractor
	orch      *service.Orchestrator
	accounts  *service.Accounts
	fetcher   port.Fetcher
}

func NewHandler(extractor *service.Extractor, orch *service.Orchestrator, accounts *service.Accounts, fetcher port.Fetcher) *Handler {
	return &Handler{
		extractor: extractor,
		orch:      orch,
		accounts:  accounts,
		fetcher:   fetcher,
	}
}

func (h *Handler) Register(app *fiber.App) {
	app.Get("/health", h.health)
	app.Post("/sync/session-state", h.syncSessionState)
	app.Post("/sync/ledger-data", h.syncLedgerData)
	app.Get("/sync/status/:accountId", h.syncStatus)
	app.Get("/account/:accountId", h.accountOverview)
	app.Get("/markets", h.markets)
}

func (h *Handler) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true})
}

// syncSessionState extracts records from an uploaded session snapshot
// and runs one sync pass. A snapshot with no extractable owner is a
// client error, not a failed pass.
func (h *Handler) syncSessionState(c *fiber.Ctx) error {
	var snap model.SessionSnapshot
	if err := c.BodyParser(&snap); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid snapshot body")
	}

	batch, err := h.extractor.Extract(&snap)
	if err != nil {
		// ownerless snapshots and malformed persisted blobs are both
		// client errors
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	res, err := h.orch.RunSync(c.UserContext(), model.SourceSessionState, batch.WalletAddress, batch)
	if err != nil {
		log.Error().Err(err).Str("account", batch.WalletAddress).Msg("session-state sync failed")
		return fiber.NewError(fiber.StatusInternalServerError, "sync failed")
	}
	return c.JSON(res)
}

type ledgerSyncRequest struct {
	AccountID      string `json:"accountId"`
	ServiceBaseURL string `json:"serviceBaseUrl"`
}

// syncLedgerData pulls the account's remote ledger data and runs one
// sync pass over it.
func (h *Handler) syncLedgerData(c *fiber.Ctx) error {
	var req ledgerSyncRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.AccountID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "accountId is required")
	}

	batch := h.fetcher.FetchAll(c.UserContext(), req.AccountID, req.ServiceBaseURL)
	res, err := h.orch.RunSync(c.UserContext(), model.SourceLedger, req.AccountID, batch)
	if err != nil {
		log.Error().Err(err).Str("account", req.AccountID).Msg("ledger-data sync failed")
		return fiber.NewError(fiber.StatusInternalServerError, "sync failed")
	}
	return c.JSON(res)
}

func (h *Handler) syncStatus(c *fiber.Ctx) error {
	entries, err := h.accounts.SyncStatus(c.UserContext(), c.Params("accountId"))
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "status read failed")
	}
	if entries == nil {
		entries = []model.SyncLedgerEntry{}
	}
	return c.JSON(entries)
}

func (h *Handler) accountOverview(c *fiber.Ctx) error {
	b, err := h.accounts.Overview(c.UserContext(), c.Params("accountId"))
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "overview read failed")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(b)
}

func (h *Handler) markets(c *fiber.Ctx) error {
	b, err := h.accounts.Markets(c.UserContext())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "markets read failed")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(b)
}
