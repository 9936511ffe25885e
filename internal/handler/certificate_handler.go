package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/event-nexus-api/internal/service"
	appErrors "github.com/noah-isme/event-nexus-api/pkg/errors"
	"github.com/noah-isme/event-nexus-api/pkg/response"
)

// CertificateHandler wires HTTP endpoints to the certificate service.
type CertificateHandler struct {
	service *service.CertificateService
	events  *service.EventService
	metrics *service.MetricsService
}

// NewCertificateHandler creates a new handler.
func NewCertificateHandler(svc *service.CertificateService, events *service.EventService, metrics *service.MetricsService) *CertificateHandler {
	return &CertificateHandler{service: svc, events: events, metrics: metrics}
}

// Request issues (or returns) the authenticated user's certificate for a
// concluded event.
func (h *CertificateHandler) Request(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	cert, err := h.service.IssueFor(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.ObserveCertificateIssued()
	response.JSON(c, http.StatusOK, cert, nil)
}

// IssueBatch issues certificates for every participant of an owned event.
func (h *CertificateHandler) IssueBatch(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	eventID := c.Param("id")
	event, err := h.events.Get(c.Request.Context(), eventID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if event.CreatedBy != claims.UserID {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "only the event owner can issue certificates"))
		return
	}

	certs, err := h.service.IssueForEvent(c.Request.Context(), eventID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, certs, nil, map[string]interface{}{"issued": len(certs)})
}

// ListMine returns the authenticated user's certificates.
func (h *CertificateHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	certs, err := h.service.ListForUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, certs, nil)
}

// Download streams the certificate PDF to its holder.
func (h *CertificateHandler) Download(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	cert, err := h.service.GetByID(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	pdf, err := h.service.OpenDocument(c.Request.Context(), cert)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("certificate_%s.pdf", cert.EventID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// Email re-sends the certificate to its holder's mailbox.
func (h *CertificateHandler) Email(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	cert, err := h.service.GetByID(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.service.SendByEmail(c.Request.Context(), cert); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send certificate"))
		return
	}
	response.NoContent(c)
}
