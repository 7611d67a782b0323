package inventory

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/stockcore/stockcore/internal/platform/httpx"
	"github.com/stockcore/stockcore/internal/shared"
)

// Handler wires HTTP endpoints for the inventory module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	ledger   *LedgerService
	validate *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, ledger *LedgerService) *Handler {
	return &Handler{logger: logger, service: service, ledger: ledger, validate: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/items", h.handleRegisterItem)
	r.Get("/items", h.handleListItems)
	r.Get("/items/by-sku", h.handleGetItemBySKU)
	r.Get("/items/low-stock", h.handleLowStockItems)
	r.Get("/items/over-stock", h.handleOverStockItems)
	r.Get("/items/{itemID}", h.handleGetItem)
	r.Post("/stock-in", h.handleStockIn)
	r.Post("/stock-out", h.handleStockOut)
	r.Post("/transfers", h.handleTransfer)
	r.Post("/adjustments", h.handleAdjustment)
	r.Post("/counts", h.handleCount)
	r.Post("/reservations", h.handleReserve)
	r.Post("/reservations/release", h.handleRelease)
	r.Post("/serials/reserve", h.handleReserveSerials)
	r.Post("/serials/release", h.handleReleaseSerials)
	r.Post("/serials/{serialNumber}/damaged", h.handleSerialDamaged)
	r.Post("/serials/{serialNumber}/returned", h.handleSerialReturned)
	r.Post("/serials/{serialNumber}/available", h.handleSerialAvailable)
	r.Get("/serials", h.handleListSerials)
	r.Get("/batches", h.handleListBatches)
	r.Get("/transactions", h.handleListTransactions)
	r.Get("/transactions/{number}", h.handleGetTransaction)
	r.Post("/ledger/generate", h.handleGenerateLedger)
	r.Get("/ledger", h.handleLedgerHistory)
	r.Get("/ledger/entry", h.handleLedgerEntry)
	r.Get("/ledger/value", h.handleLedgerValue)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("inventory request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return false
	}
	return true
}

type registerItemRequest struct {
	SKU            string          `json:"sku" validate:"required"`
	Name           string          `json:"name" validate:"required"`
	Description    string          `json:"description"`
	WarehouseID    string          `json:"warehouse_id" validate:"required"`
	ReorderLevel   decimal.Decimal `json:"reorder_level"`
	MaxStockLevel  decimal.Decimal `json:"max_stock_level"`
	CostPrice      decimal.Decimal `json:"cost_price"`
	SellingPrice   decimal.Decimal `json:"selling_price"`
	BatchTracking  bool            `json:"batch_tracking"`
	SerialTracking bool            `json:"serial_tracking"`
	ExpiryTracking bool            `json:"expiry_tracking"`
	Attributes     map[string]any  `json:"attributes"`
}

func (h *Handler) handleRegisterItem(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	var req registerItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.service.RegisterItem(r.Context(), RegisterItemInput{
		TenantID:       tenantID,
		SKU:            req.SKU,
		Name:           req.Name,
		Description:    req.Description,
		WarehouseID:    req.WarehouseID,
		ReorderLevel:   req.ReorderLevel,
		MaxStockLevel:  req.MaxStockLevel,
		CostPrice:      req.CostPrice,
		SellingPrice:   req.SellingPrice,
		BatchTracking:  req.BatchTracking,
		SerialTracking: req.SerialTracking,
		ExpiryTracking: req.ExpiryTracking,
		Attributes:     req.Attributes,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	page := shared.Pagination{
		Page:    queryInt(r, "page", 1),
		PerPage: queryInt(r, "per_page", 50),
	}
	items, meta, err := h.service.ListItems(r.Context(), tenantID, r.URL.Query().Get("warehouse_id"), page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "pagination": meta})
}

func (h *Handler) handleGetItemBySKU(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	q := r.URL.Query()
	item, err := h.service.GetItemBySKU(r.Context(), tenantID, q.Get("sku"), q.Get("warehouse_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleLowStockItems(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	items, err := h.service.ListLowStockItems(r.Context(), tenantID, r.URL.Query().Get("warehouse_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) handleOverStockItems(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	items, err := h.service.ListOverStockItems(r.Context(), tenantID, r.URL.Query().Get("warehouse_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) handleGetItem(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	item, err := h.service.GetItem(r.Context(), tenantID, chi.URLParam(r, "itemID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

type batchRequest struct {
	BatchNumber         string     `json:"batch_number" validate:"required"`
	LotNumber           string     `json:"lot_number"`
	ManufacturingDate   *time.Time `json:"manufacturing_date"`
	ExpiryDate          *time.Time `json:"expiry_date"`
	SupplierID          string     `json:"supplier_id"`
	SupplierName        string     `json:"supplier_name"`
	PurchaseOrderNumber string     `json:"purchase_order_number"`
}

type stockInRequest struct {
	ItemID          string          `json:"item_id" validate:"required"`
	WarehouseID     string          `json:"warehouse_id" validate:"required"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	Reason          string          `json:"reason"`
	Batch           *batchRequest   `json:"batch"`
	SerialNumbers   []string        `json:"serial_numbers"`
	WarrantyExpiry  *time.Time      `json:"warranty_expiry"`
	ReferenceType   string          `json:"reference_type"`
	ReferenceID     string          `json:"reference_id"`
	ReferenceNumber string          `json:"reference_number"`
	Notes           string          `json:"notes"`
	PerformedBy     string          `json:"performed_by"`
}

func (h *Handler) handleStockIn(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	var req stockInRequest
	if !h.decode(w, r, &req) {
		return
	}
	input := StockInInput{
		TenantID:        tenantID,
		ItemID:          req.ItemID,
		WarehouseID:     req.WarehouseID,
		Quantity:        req.Quantity,
		UnitCost:        req.UnitCost,
		Reason:          req.Reason,
		SerialNumbers:   req.SerialNumbers,
		WarrantyExpiry:  req.WarrantyExpiry,
		ReferenceType:   req.ReferenceType,
		ReferenceID:     req.ReferenceID,
		ReferenceNumber: req.ReferenceNumber,
		Notes:           req.Notes,
		PerformedBy:     req.PerformedBy,
	}
	if req.Batch != nil {
		input.Batch = &BatchInput{
			BatchNumber:         req.Batch.BatchNumber,
			LotNumber:           req.Batch.LotNumber,
			ManufacturingDate:   req.Batch.ManufacturingDate,
			ExpiryDate:          req.Batch.ExpiryDate,
			SupplierID:          req.Batch.SupplierID,
			SupplierName:        req.Batch.SupplierName,
			PurchaseOrderNumber: req.Batch.PurchaseOrderNumber,
		}
	}
	txn, err := h.service.StockIn(r.Context(), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, txn)
}

type manualAllocationRequest struct {
	BatchID  string          `json:"batch_id" validate:"required"`
	Quantity decimal.Decimal `json:"quantity"`
}

type stockOutRequest struct {
	ItemID            string                    `json:"item_id" validate:"required"`
	WarehouseID       string                    `json:"warehouse_id" validate:"required"`
	Quantity          decimal.Decimal           `json:"quantity"`
	Reason            string                    `json:"reason"`
	Strategy          string                    `json:"strategy" validate:"omitempty,oneof=FIFO FEFO LIFO MANUAL"`
	ManualAllocations []manualAllocationRequest `json:"manual_allocations" validate:"dive"`
	SerialNumbers     []string                  `json:"serial_numbers"`
	FromReserved      bool                      `json:"from_reserved"`
	ReferenceType     string                    `json:"reference_type"`
	ReferenceID       string                    `json:"reference_id"`
	ReferenceNumber   string                    `json:"reference_number"`
	Notes             string                    `json:"notes"`
	PerformedBy       string                    `json:"performed_by"`
}

func (h *Handler) handleStockOut(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	var req stockOutRequest
	if !h.decode(w, r, &req) {
		return
	}
	manual := make([]ManualAllocation, 0, len(req.ManualAllocations))
	for _, m := range req.ManualAllocations {
		manual = append(manual, ManualAllocation{BatchID: m.BatchID, Quantity: m.Quantity})
	}
	txn, err := h.service.StockOut(r.Context(), StockOutInput{
		TenantID:          tenantID,
		ItemID:            req.ItemID,
		WarehouseID:       req.WarehouseID,
		Quantity:          req.Quantity,
		Reason:            req.Reason,
		Strategy:          StrategyType(req.Strategy),
		ManualAllocations: manual,
		SerialNumbers:     req.SerialNumbers,
		FromReserved:      req.FromReserved,
		ReferenceType:     req.ReferenceType,
		ReferenceID:       req.ReferenceID,
		ReferenceNumber:   req.ReferenceNumber,
		Notes:             req.Notes,
		PerformedBy:       req.PerformedBy,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, txn)
}

type transferRequest struct {
	ItemID          string          `json:"item_id" validate:"required"`
	FromWarehouseID string          `json:"from_warehouse_id" validate:"required"`
	ToWarehouseID   string          `json:"to_warehouse_id" validate:"required"`
	Quantity        decimal.Decimal `json:"quantity"`
	SerialNumbers   []string        `json:"serial_numbers"`
	Notes           string          `json:"notes"`
	PerformedBy     string          `json:"performed_by"`
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	var req transferRequest
	if !h.decode(w, r, &req) {
		return
	}
	out, in, err := h.service.Transfer(r.Context(), TransferInput{
		TenantID:        tenantID,
		ItemID:          req.ItemID,
		FromWarehouseID: req.FromWarehouseID,
		ToWarehouseID:   req.ToWarehouseID,
		Quantity:        req.Quantity,
		SerialNumbers:   req.SerialNumbers,
		Notes:           req.Notes,
		PerformedBy:     req.PerformedBy,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"out": out, "in": in})
}

type adjustmentRequest struct {
	ItemID      string          `json:"item_id" validate:"required"`
	WarehouseID string          `json:"warehouse_id" validate:"required"`
	Delta       decimal.Decimal `json:"delta"`
	Reason      string          `json:"reason"`
	BatchID     string          `json:"batch_id"`
	ReferenceID string          `json:"reference_id"`
	Notes       string          `json:"notes"`
	PerformedBy string          `json:"performed_by"`
}

func (h *Handler) handleAdjustment(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	var req adjustmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	txn, err := h.service.Adjust(r.Context(), AdjustmentInput{
		TenantID:    tenantID,
		ItemID:      req.ItemID,
		WarehouseID: req.WarehouseID,
		Delta:       req.Delta,
		Reason:      req.Reason,
		BatchID:     req.BatchID,
		ReferenceID: req.ReferenceID,
		Notes:       req.Notes,
		PerformedBy: req.PerformedBy,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, txn)
}

type countRequest struct {
	ItemID      string          `json:"item_id" validate:"required"`
	WarehouseID string          `json:"warehouse_id" validate:"required"`
	CountedQty  decimal.Decimal `json:"counted_qty"`
	Notes       string          `json:"notes"`
	PerformedBy string          `json:"performed_by"`
}

func (h *Handler) handleCount(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	var req countRequest
	if !h.decode(w, r, &req) {
		return
	}
	txn, err := h.service.PhysicalCount(r.Context(), PhysicalCountInput{
		TenantID:    tenantID,
		ItemID:      req.ItemID,
		WarehouseID: req.WarehouseID,
		CountedQty:  req.CountedQty,
		Notes:       req.Notes,
		PerformedBy: req.PerformedBy,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, txn)
}

type reservationRequest struct {
	ItemID      string          `json:"item_id" validate:"required"`
	WarehouseID string          `json:"warehouse_id" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
	Strategy    string          `json:"strategy" validate:"omitempty,oneof=FIFO FEFO LIFO"`
	PerformedBy string          `json:"performed_by"`
}

func (h *Handler) handleReserve(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	var req reservationRequest
	if !h.decode(w, r, &req) {
		return
	}
	err := h.service.ReserveStock(r.Context(), ReserveInput{
		TenantID:    tenantID,
		ItemID:      req.ItemID,
		WarehouseID: req.WarehouseID,
		Quantity:    req.Quantity,
		Strategy:    StrategyType(req.Strategy),
		PerformedBy: req.PerformedBy,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	var req reservationRequest
	if !h.decode(w, r, &req) {
		return
	}
	released, err := h.service.ReleaseReservation(r.Context(), ReserveInput{
		TenantID:    tenantID,
		ItemID:      req.ItemID,
		WarehouseID: req.WarehouseID,
		Quantity:    req.Quantity,
		PerformedBy: req.PerformedBy,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"released": released})
}

type serialReservationRequest struct {
	ItemID        string   `json:"item_id" validate:"required"`
	WarehouseID   string   `json:"warehouse_id" validate:"required"`
	ReferenceID   string   `json:"reference_id"`
	SerialNumbers []string `json:"serial_numbers" validate:"required,min=1"`
}

func (h *Handler) handleReserveSerials(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	var req serialReservationRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.ReserveSerials(r.Context(), tenantID, req.ItemID, req.WarehouseID, req.ReferenceID, req.SerialNumbers); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleReleaseSerials(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	var req serialReservationRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.ReleaseSerialReservation(r.Context(), tenantID, req.ItemID, req.WarehouseID, req.SerialNumbers); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

type serialStatusRequest struct {
	ItemID string `json:"item_id" validate:"required"`
	Notes  string `json:"notes"`
}

func (h *Handler) handleSerialDamaged(w http.ResponseWriter, r *http.Request) {
	h.serialStatus(w, r, func(tenantID, itemID, sn, notes string) error {
		return h.service.MarkSerialDamaged(r.Context(), tenantID, itemID, sn, notes)
	})
}

func (h *Handler) handleSerialReturned(w http.ResponseWriter, r *http.Request) {
	h.serialStatus(w, r, func(tenantID, itemID, sn, _ string) error {
		return h.service.MarkSerialReturned(r.Context(), tenantID, itemID, sn)
	})
}

func (h *Handler) handleSerialAvailable(w http.ResponseWriter, r *http.Request) {
	h.serialStatus(w, r, func(tenantID, itemID, sn, _ string) error {
		return h.service.MakeSerialAvailable(r.Context(), tenantID, itemID, sn)
	})
}

func (h *Handler) serialStatus(w http.ResponseWriter, r *http.Request, apply func(tenantID, itemID, sn, notes string) error) {
	tenantID := shared.TenantFromContext(r.Context())
	var req serialStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := apply(tenantID, req.ItemID, chi.URLParam(r, "serialNumber"), req.Notes); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleListSerials(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	q := r.URL.Query()
	serials, err := h.service.ListSerials(r.Context(), SerialFilter{
		TenantID:     tenantID,
		ItemID:       q.Get("item_id"),
		WarehouseID:  q.Get("warehouse_id"),
		SerialNumber: q.Get("serial_number"),
		Status:       SerialStatus(q.Get("status")),
		Limit:        queryInt(r, "limit", 200),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"serials": serials})
}

func (h *Handler) handleListBatches(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	q := r.URL.Query()
	batches, err := h.service.ListBatches(r.Context(), BatchFilter{
		TenantID:      tenantID,
		ItemID:        q.Get("item_id"),
		WarehouseID:   q.Get("warehouse_id"),
		ActiveOnly:    q.Get("active") == "true",
		ExpiringInDay: queryInt(r, "expiring_in", 0),
		Limit:         queryInt(r, "limit", 200),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"batches": batches})
}

func (h *Handler) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	q := r.URL.Query()
	filter := TransactionFilter{
		TenantID:      tenantID,
		ItemID:        q.Get("item_id"),
		WarehouseID:   q.Get("warehouse_id"),
		Type:          TransactionType(q.Get("type")),
		ReferenceType: q.Get("reference_type"),
		ReferenceID:   q.Get("reference_id"),
		From:          queryDate(r, "from"),
		Limit:         queryInt(r, "limit", 200),
		Offset:        queryInt(r, "offset", 0),
	}
	if to := queryDate(r, "to"); !to.IsZero() {
		filter.To = to.Add(24*time.Hour - time.Nanosecond)
	}
	txns, err := h.service.ListTransactions(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"transactions": txns})
}

func (h *Handler) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	txn, err := h.service.GetTransaction(r.Context(), tenantID, chi.URLParam(r, "number"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, txn)
}

type generateLedgerRequest struct {
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	ItemID      string `json:"item_id"`
	WarehouseID string `json:"warehouse_id"`
	To          string `json:"to" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) handleGenerateLedger(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	var req generateLedgerRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, _ := time.Parse("2006-01-02", req.Date)
	switch {
	case req.ItemID != "" && req.To != "":
		to, _ := time.Parse("2006-01-02", req.To)
		entries, err := h.ledger.GenerateRange(r.Context(), tenantID, req.ItemID, req.WarehouseID, date, to)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
	case req.ItemID != "":
		entry, err := h.ledger.GenerateEntry(r.Context(), tenantID, req.ItemID, req.WarehouseID, date)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, entry)
	default:
		generated, err := h.ledger.GenerateForDate(r.Context(), tenantID, date)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"generated": generated})
	}
}

func (h *Handler) handleLedgerHistory(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	q := r.URL.Query()
	entries, err := h.ledger.History(r.Context(), LedgerFilter{
		TenantID:    tenantID,
		ItemID:      q.Get("item_id"),
		WarehouseID: q.Get("warehouse_id"),
		From:        queryDate(r, "from"),
		To:          queryDate(r, "to"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) handleLedgerEntry(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	q := r.URL.Query()
	date := queryDate(r, "date")
	if date.IsZero() {
		date = time.Now().UTC()
	}
	entry, err := h.ledger.Entry(r.Context(), tenantID, q.Get("item_id"), q.Get("warehouse_id"), date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) handleLedgerValue(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	date := queryDate(r, "date")
	if date.IsZero() {
		date = time.Now().UTC()
	}
	value, qty, err := h.ledger.WarehouseStockValue(r.Context(), tenantID, r.URL.Query().Get("warehouse_id"), date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"value": value, "quantity": qty})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func queryDate(r *http.Request, key string) time.Time {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
