package odontogram

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/odontogram-api/internal/middleware"
	"github.com/jwalitptl/odontogram-api/internal/model"
	"github.com/jwalitptl/odontogram-api/internal/odontogram"
	apperrors "github.com/jwalitptl/odontogram-api/pkg/errors"
	"github.com/jwalitptl/odontogram-api/pkg/httputil"
	"github.com/jwalitptl/odontogram-api/pkg/validator"
)

type Handler struct {
	service *odontogram.Service
}

func NewHandler(service *odontogram.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	odontograms := r.Group("/odontograms")
	{
		odontograms.POST("", h.Initialize)
		odontograms.PUT("/:id/teeth/:fdi", h.ChangeToothStatus)

		odontograms.GET("/patient/:patientId", h.GetCurrent)
		odontograms.GET("/patient/:patientId/chart", h.Chart)
		odontograms.GET("/patient/:patientId/findings", h.AllFindings)
		odontograms.GET("/patient/:patientId/treatments", h.PendingTreatments)
		odontograms.GET("/patient/:patientId/history-suggestions", h.HistorySuggestions)

		odontograms.GET("/teeth/:toothId/findings", h.FindingsForTooth)
		odontograms.POST("/teeth/:toothId/findings", h.RegisterFinding)
		odontograms.POST("/teeth/:toothId/reset", h.ResetTooth)
		odontograms.POST("/teeth/:toothId/selection", h.ApplySelection)
		odontograms.GET("/teeth/:toothId/treatments", h.TreatmentsForTooth)
		odontograms.POST("/teeth/:toothId/treatments", h.AssignTreatment)

		odontograms.DELETE("/treatments/:assignmentId", h.RemoveTreatment)
	}

	r.GET("/treatments/suggested/:findingType", h.SuggestedTreatments)
	r.GET("/fdi/:fdi", h.ResolveFDI)
}

type initializeRequest struct {
	PatientID int64  `json:"paciente_id" binding:"required,gt=0"`
	Type      string `json:"tipo" binding:"odonto_type"`
}

type toothStatusRequest struct {
	Estado        string `json:"estado" binding:"required,tooth_status"`
	Observaciones string `json:"observaciones"`
}

type findingRequest struct {
	PatientID int64 `json:"paciente_id" binding:"required,gt=0"`
	model.FindingInput
}

type resetRequest struct {
	PatientID     int64  `json:"paciente_id" binding:"required,gt=0"`
	Observaciones string `json:"observaciones"`
}

type selectionRequest struct {
	PatientID int64 `json:"paciente_id" binding:"required,gt=0"`
	odontogram.SelectionInput
}

type assignRequest struct {
	CatalogID int64 `json:"catalogo_id" binding:"required,gt=0"`
	Force     bool  `json:"force"`
}

// bind decodes the JSON body. Malformed JSON and failed rules are both validation errors.
func bind(c *gin.Context, obj interface{}) error {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return nil
	}
	if translated := validator.Translate(err); apperrors.IsValidation(translated) {
		return translated
	}
	return apperrors.NewValidation("invalid request body", err)
}

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidation(fmt.Sprintf("invalid %s", name), err)
	}
	return id, nil
}

func pathFDI(c *gin.Context) (int, error) {
	fdi, err := strconv.Atoi(c.Param("fdi"))
	if err != nil {
		return 0, apperrors.NewValidation("invalid fdi", err)
	}
	return fdi, nil
}

// GetCurrent answers 200 even when the backend is down; the body then carries
// degraded=true and a notice for the user.
func (h *Handler) GetCurrent(c *gin.Context) {
	patientID, err := pathID(c, "patientId")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	view, err := h.service.GetCurrent(c.Request.Context(), middleware.Session(c), patientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, view)
}

func (h *Handler) Initialize(c *gin.Context) {
	var req initializeRequest
	if err := bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	view, err := h.service.Initialize(c.Request.Context(), middleware.Session(c), model.InitializeOdontogramRequest{
		PatientID: req.PatientID,
		Type:      model.OdontogramType(req.Type),
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondCreated(c, view)
}

func (h *Handler) ChangeToothStatus(c *gin.Context) {
	odontogramID, err := pathID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	fdi, err := pathFDI(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	var req toothStatusRequest
	if err := bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	err = h.service.ChangeToothStatus(c.Request.Context(), middleware.Session(c), odontogramID, fdi, req.Estado, req.Observaciones)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{
		"odontograma_id": odontogramID,
		"numero_fdi":     fdi,
		"estado":         req.Estado,
	})
}

func (h *Handler) Chart(c *gin.Context) {
	patientID, err := pathID(c, "patientId")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	chart, err := h.service.Chart(c.Request.Context(), middleware.Session(c), patientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, chart)
}

func (h *Handler) AllFindings(c *gin.Context) {
	patientID, err := pathID(c, "patientId")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	findings, err := h.service.AllFindings(c.Request.Context(), middleware.Session(c), patientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, findings)
}

func (h *Handler) FindingsForTooth(c *gin.Context) {
	toothID, err := pathID(c, "toothId")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	items, err := h.service.FindingsForTooth(c.Request.Context(), toothID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"items": items})
}

func (h *Handler) RegisterFinding(c *gin.Context) {
	toothID, err := pathID(c, "toothId")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	var req findingRequest
	if err := bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	reg, err := h.service.RegisterFinding(c.Request.Context(), middleware.Session(c), req.PatientID, toothID, req.FindingInput)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondCreated(c, reg)
}

func (h *Handler) ResetTooth(c *gin.Context) {
	toothID, err := pathID(c, "toothId")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	var req resetRequest
	if err := bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	f, err := h.service.ResetToothToSound(c.Request.Context(), middleware.Session(c), req.PatientID, toothID, req.Observaciones)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondCreated(c, f)
}

// ApplySelection runs the chart selector flow. When a later step fails after
// the finding was stored, the error says which part did not complete.
func (h *Handler) ApplySelection(c *gin.Context) {
	toothID, err := pathID(c, "toothId")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	var req selectionRequest
	if err := bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	result, err := h.service.ApplySelection(c.Request.Context(), middleware.Session(c), req.PatientID, toothID, req.SelectionInput)
	if err != nil {
		httputil.RespondWithError(c, partial(err))
		return
	}
	httputil.RespondWithSuccess(c, result)
}

// partial keeps the classification of a wrapped AppError and prefixes its
// message with the context added by the flow ("finding recorded but ...").
func partial(err error) error {
	var appErr *apperrors.AppError
	if !stderrors.As(err, &appErr) {
		return err
	}
	prefix := strings.TrimSuffix(err.Error(), ": "+appErr.Error())
	if prefix == err.Error() {
		return err
	}
	return &apperrors.AppError{Code: appErr.Code, Message: prefix + ": " + appErr.Message, Err: err}
}

func (h *Handler) TreatmentsForTooth(c *gin.Context) {
	toothID, err := pathID(c, "toothId")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	items, err := h.service.Engine().ForTooth(c.Request.Context(), toothID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"items": items})
}

func (h *Handler) AssignTreatment(c *gin.Context) {
	toothID, err := pathID(c, "toothId")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	var req assignRequest
	if err := bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	a, err := h.service.AssignTreatment(c.Request.Context(), middleware.Session(c), toothID, req.CatalogID, req.Force)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondCreated(c, a)
}

func (h *Handler) RemoveTreatment(c *gin.Context) {
	assignmentID, err := pathID(c, "assignmentId")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if err := h.service.RemoveTreatment(c.Request.Context(), middleware.Session(c), assignmentID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"id": assignmentID})
}

func (h *Handler) PendingTreatments(c *gin.Context) {
	patientID, err := pathID(c, "patientId")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	plan, err := h.service.AllPendingTreatments(c.Request.Context(), middleware.Session(c), patientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, plan)
}

func (h *Handler) HistorySuggestions(c *gin.Context) {
	patientID, err := pathID(c, "patientId")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	draft, err := h.service.HistorySuggestions(c.Request.Context(), middleware.Session(c), patientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, draft)
}

func (h *Handler) SuggestedTreatments(c *gin.Context) {
	suggestions, err := h.service.Engine().Suggest(c.Request.Context(), c.Param("findingType"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, suggestions)
}

// ResolveFDI returns the geometry of a tooth number and the placement of its surfaces.
func (h *Handler) ResolveFDI(c *gin.Context) {
	fdi, err := pathFDI(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	g, err := odontogram.ResolveFDI(fdi)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{
		"geometry": g,
		"surfaces": odontogram.SurfaceMap(g, nil, odontogram.ResolveFirst),
	})
}
