package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/medrefill/internal/domain/models"
	"github.com/mamadbah2/medrefill/internal/domain/status"
)

const dateLayout = "2006-01-02"

// MedicineService is the medicine surface the HTTP layer depends on.
type MedicineService interface {
	Create(ctx context.Context, ownerID string, input models.MedicineInput) (models.Medicine, error)
	Get(ctx context.Context, ownerID, id string) (models.Medicine, error)
	List(ctx context.Context, ownerID string) ([]models.Medicine, error)
	ListByStatus(ctx context.Context, ownerID string, st models.MedicineStatus) ([]models.Medicine, error)
	Update(ctx context.Context, ownerID, id string, input models.MedicineInput) (models.Medicine, error)
	Delete(ctx context.Context, ownerID, id string) error
	TakeDose(ctx context.Context, ownerID, id string) (models.Medicine, error)
	Refill(ctx context.Context, ownerID, id string, quantity int) (models.Medicine, error)
	DashboardSummary(ctx context.Context, ownerID string) (models.DashboardSummary, error)
	Today() time.Time
}

// MedicineHandler serves /api/medicines.
type MedicineHandler struct {
	svc       MedicineService
	refillURL string
	logger    *zap.Logger
}

// NewMedicineHandler constructs the medicine HTTP handler.
func NewMedicineHandler(svc MedicineService, refillURL string, logger *zap.Logger) *MedicineHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MedicineHandler{svc: svc, refillURL: refillURL, logger: logger}
}

type medicineRequest struct {
	Name                 string `json:"medicineName"`
	DosagePerDay         int    `json:"dosagePerDay"`
	TotalQuantity        int    `json:"totalQuantity"`
	StartDate            string `json:"startDate"`
	CurrentQuantity      *int   `json:"currentQuantity"`
	NotificationsEnabled *bool  `json:"notificationsEnabled"`
	LowStockThreshold    *int   `json:"lowStockThreshold"`
}

func (r medicineRequest) toInput() (models.MedicineInput, error) {
	input := models.MedicineInput{
		Name:                 r.Name,
		DosagePerDay:         r.DosagePerDay,
		TotalQuantity:        r.TotalQuantity,
		CurrentQuantity:      r.CurrentQuantity,
		NotificationsEnabled: r.NotificationsEnabled,
		LowStockThreshold:    r.LowStockThreshold,
	}
	if r.StartDate != "" {
		start, err := parseDate(r.StartDate)
		if err != nil {
			return models.MedicineInput{}, models.NewValidationError("startDate", "must be a date formatted as YYYY-MM-DD")
		}
		input.StartDate = start
	}
	return input, nil
}

func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

type medicineResponse struct {
	ID                   string                `json:"id"`
	Name                 string                `json:"medicineName"`
	DosagePerDay         int                   `json:"dosagePerDay"`
	TotalQuantity        int                   `json:"totalQuantity"`
	StartDate            string                `json:"startDate"`
	RefillDate           string                `json:"refillDate"`
	CurrentQuantity      *int                  `json:"currentQuantity"`
	NotificationsEnabled bool                  `json:"notificationsEnabled"`
	LowStockThreshold    int                   `json:"lowStockThreshold"`
	Status               models.MedicineStatus `json:"status"`
	CreatedAt            time.Time             `json:"createdAt"`
	UpdatedAt            time.Time             `json:"updatedAt"`
	DaysLeft             int                   `json:"daysLeft"`
	RemainingDoses       int                   `json:"remainingDoses"`
	RefillURL            string                `json:"refillUrl"`
}

type dashboardResponse struct {
	TotalMedicines  int                `json:"totalMedicines"`
	RefillNeeded    int64              `json:"refillNeeded"`
	LowStock        int64              `json:"lowStock"`
	OK              int64              `json:"ok"`
	RecentMedicines []medicineResponse `json:"recentMedicines"`
}

func (h *MedicineHandler) toResponse(m models.Medicine, today time.Time) medicineResponse {
	return medicineResponse{
		ID:                   m.ID,
		Name:                 m.Name,
		DosagePerDay:         m.DosagePerDay,
		TotalQuantity:        m.TotalQuantity,
		StartDate:            formatDate(m.StartDate),
		RefillDate:           formatDate(m.RefillDate),
		CurrentQuantity:      m.CurrentQuantity,
		NotificationsEnabled: m.NotificationsEnabled,
		LowStockThreshold:    m.LowStockThreshold,
		Status:               m.Status,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
		DaysLeft:             status.DaysLeft(m.RefillDate, today),
		RemainingDoses:       m.RemainingDoses(),
		RefillURL:            h.refillURL + url.QueryEscape(m.Name),
	}
}

func (h *MedicineHandler) toResponses(medicines []models.Medicine) []medicineResponse {
	today := h.svc.Today()
	out := make([]medicineResponse, 0, len(medicines))
	for _, m := range medicines {
		out = append(out, h.toResponse(m, today))
	}
	return out
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

// List returns the caller's medicines ordered by refill date.
func (h *MedicineHandler) List(c *gin.Context) {
	medicines, err := h.svc.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, h.toResponses(medicines))
}

// Get returns one medicine.
func (h *MedicineHandler) Get(c *gin.Context) {
	m, err := h.svc.Get(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, h.toResponse(m, h.svc.Today()))
}

// Create stores a new medicine.
func (h *MedicineHandler) Create(c *gin.Context) {
	input, ok := h.bindInput(c)
	if !ok {
		return
	}

	m, err := h.svc.Create(c.Request.Context(), currentUserID(c), input)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, h.toResponse(m, h.svc.Today()))
}

// Update edits an existing medicine.
func (h *MedicineHandler) Update(c *gin.Context) {
	input, ok := h.bindInput(c)
	if !ok {
		return
	}

	m, err := h.svc.Update(c.Request.Context(), currentUserID(c), c.Param("id"), input)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, h.toResponse(m, h.svc.Today()))
}

// Delete removes a medicine.
func (h *MedicineHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Medicine deleted successfully"})
}

// TakeDose consumes one unit of a medicine.
func (h *MedicineHandler) TakeDose(c *gin.Context) {
	m, err := h.svc.TakeDose(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, h.toResponse(m, h.svc.Today()))
}

// Refill adds ?quantity= units to a medicine.
func (h *MedicineHandler) Refill(c *gin.Context) {
	quantity, err := strconv.Atoi(c.Query("quantity"))
	if err != nil {
		respondError(c, h.logger, models.NewValidationError("quantity", "must be an integer"))
		return
	}

	m, err := h.svc.Refill(c.Request.Context(), currentUserID(c), c.Param("id"), quantity)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, h.toResponse(m, h.svc.Today()))
}

// ListByStatus returns medicines with the status in the path.
func (h *MedicineHandler) ListByStatus(c *gin.Context) {
	st, ok := models.ParseMedicineStatus(c.Param("status"))
	if !ok {
		respondError(c, h.logger, models.NewValidationError("status", "must be one of OK, LOW, REFILL_NEEDED"))
		return
	}

	medicines, err := h.svc.ListByStatus(c.Request.Context(), currentUserID(c), st)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, h.toResponses(medicines))
}

// DashboardSummary returns status counts and the next medicines to refill.
func (h *MedicineHandler) DashboardSummary(c *gin.Context) {
	summary, err := h.svc.DashboardSummary(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dashboardResponse{
		TotalMedicines:  summary.TotalMedicines,
		RefillNeeded:    summary.RefillNeeded,
		LowStock:        summary.LowStock,
		OK:              summary.OK,
		RecentMedicines: h.toResponses(summary.RecentMedicines),
	})
}

func (h *MedicineHandler) bindInput(c *gin.Context) (models.MedicineInput, bool) {
	var req medicineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid medicine payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return models.MedicineInput{}, false
	}

	input, err := req.toInput()
	if err != nil {
		respondError(c, h.logger, err)
		return models.MedicineInput{}, false
	}
	return input, true
}
