package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"secure-ehr-gateway/internal/access"
	"secure-ehr-gateway/internal/completeness"
	"secure-ehr-gateway/internal/integrity"
	"secure-ehr-gateway/internal/middleware"
	"secure-ehr-gateway/internal/models"
	"secure-ehr-gateway/internal/service"
	"secure-ehr-gateway/internal/storage"
	"secure-ehr-gateway/internal/utils"
)

// PatientHandler handles patient record requests.
type PatientHandler struct {
	Patients *service.PatientService
}

// NewPatientHandler creates a new PatientHandler.
func NewPatientHandler(patients *service.PatientService) *PatientHandler {
	return &PatientHandler{Patients: patients}
}

// InsertPatientRequest represents the request body for inserting a patient.
type InsertPatientRequest struct {
	FirstName     string  `json:"firstName" binding:"required"`
	LastName      string  `json:"lastName" binding:"required"`
	Gender        string  `json:"gender" binding:"required,oneof=F M O"`
	Age           int     `json:"age" binding:"required,gte=0,lte=150"`
	Weight        float64 `json:"weight" binding:"required,gt=0"`
	Height        float64 `json:"height" binding:"gte=0"`
	HealthHistory string  `json:"healthHistory"`
}

// InsertPatient handles the write path. Role H only; the route already
// enforces the role, the service enforces it again.
func (h *PatientHandler) InsertPatient(c *gin.Context) {
	sess, ok := middleware.GetSessionFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var req InsertPatientRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	view := models.PatientView{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Gender:        req.Gender,
		Age:           req.Age,
		Weight:        req.Weight,
		Height:        req.Height,
		HealthHistory: req.HealthHistory,
	}
	id, err := h.Patients.InsertPatient(c.Request.Context(), sess, view)
	if err != nil {
		if errors.Is(err, access.ErrForbidden) {
			utils.Forbidden(c, "Only role H may insert patient records")
			return
		}
		utils.InternalServerError(c, "Failed to insert patient: "+err.Error())
		return
	}

	utils.Created(c, "Patient record created", gin.H{"id": id})
}

// UpdatePatientRequest represents the request body for updating a patient.
// Weight is absent deliberately: a weight correction is a new insert.
type UpdatePatientRequest struct {
	FirstName     string  `json:"firstName" binding:"required"`
	LastName      string  `json:"lastName" binding:"required"`
	Gender        string  `json:"gender" binding:"required,oneof=F M O"`
	Age           int     `json:"age" binding:"required,gte=0,lte=150"`
	Height        float64 `json:"height" binding:"gte=0"`
	HealthHistory string  `json:"healthHistory"`
}

// UpdatePatient rewrites a record's mutable fields. Role H only.
func (h *PatientHandler) UpdatePatient(c *gin.Context) {
	sess, ok := middleware.GetSessionFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var req UpdatePatientRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	view := models.PatientView{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Gender:        req.Gender,
		Age:           req.Age,
		Height:        req.Height,
		HealthHistory: req.HealthHistory,
	}
	err := h.Patients.UpdatePatient(c.Request.Context(), sess, c.Param("id"), view)
	if err != nil {
		switch {
		case errors.Is(err, access.ErrForbidden):
			utils.Forbidden(c, "Only role H may update patient records")
		case errors.Is(err, storage.ErrNotFound):
			utils.NotFound(c, "Patient record not found")
		default:
			var violation *integrity.ViolationError
			if errors.As(err, &violation) {
				integrityViolation(c, []string{violation.RowID}, nil)
				return
			}
			utils.InternalServerError(c, "Failed to update patient: "+err.Error())
		}
		return
	}

	utils.Success(c, "Patient record updated", nil)
}

// QueryResponse is the verified query answer returned to the client.
type QueryResponse struct {
	Records        []models.PatientView `json:"records"`
	TamperedRowIDs []string             `json:"tamperedRowIds,omitempty"`
	Confidence     float64              `json:"detectionConfidence"`
}

// QueryPatients handles the verified read path. Optional weight_min and
// weight_max query parameters select a range; both roles may query.
func (h *PatientHandler) QueryPatients(c *gin.Context) {
	sess, ok := middleware.GetSessionFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var filter service.Filter
	if v := c.Query("weight_min"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			utils.BadRequest(c, "Invalid weight_min: "+err.Error())
			return
		}
		filter.WeightMin = &f
	}
	if v := c.Query("weight_max"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			utils.BadRequest(c, "Invalid weight_max: "+err.Error())
			return
		}
		filter.WeightMax = &f
	}

	result, err := h.Patients.QueryByFilter(c.Request.Context(), sess, filter)
	if err != nil {
		// Verification failures are surfaced distinctly, with the verified
		// subset attached, never as a silently shortened result.
		var violation *integrity.ViolationError
		if errors.As(err, &violation) {
			integrityViolation(c, result.TamperedRowIDs, result)
			return
		}
		var incomplete *completeness.IncompleteError
		if errors.As(err, &incomplete) {
			utils.Conflict(c, "Result may be missing rows", QueryResponse{
				Records:        result.Records,
				TamperedRowIDs: result.TamperedRowIDs,
				Confidence:     incomplete.Confidence,
			}, incomplete.Error())
			return
		}
		utils.InternalServerError(c, "Query failed: "+err.Error())
		return
	}

	utils.Success(c, "Query successful", QueryResponse{
		Records:        result.Records,
		TamperedRowIDs: result.TamperedRowIDs,
		Confidence:     result.Confidence,
	})
}

// GetPatient returns one verified record with its Merkle inclusion proof.
func (h *PatientHandler) GetPatient(c *gin.Context) {
	sess, ok := middleware.GetSessionFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	view, proof, err := h.Patients.GetPatient(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			utils.NotFound(c, "Patient record not found")
			return
		}
		var violation *integrity.ViolationError
		if errors.As(err, &violation) {
			integrityViolation(c, []string{violation.RowID}, nil)
			return
		}
		utils.InternalServerError(c, "Failed to fetch patient: "+err.Error())
		return
	}

	utils.Success(c, "Patient fetched successfully", gin.H{
		"record": view,
		"proof":  proof,
	})
}

// ExportManifest returns the digest manifest artifact for client-side caching.
func (h *PatientHandler) ExportManifest(c *gin.Context) {
	m, err := h.Patients.ExportManifest(c.Request.Context())
	if err != nil {
		utils.InternalServerError(c, "Failed to export manifest: "+err.Error())
		return
	}
	utils.Success(c, "Manifest exported", m)
}

func integrityViolation(c *gin.Context, rowIDs []string, result *service.QueryResult) {
	data := gin.H{"tamperedRowIds": rowIDs}
	if result != nil {
		data["records"] = result.Records
		data["detectionConfidence"] = result.Confidence
	}
	utils.Conflict(c, "Integrity violation detected", data,
		"one or more rows failed integrity verification")
}
