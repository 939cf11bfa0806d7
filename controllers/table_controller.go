package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"restaurant-service/config"
	"restaurant-service/middlewares"
	"restaurant-service/session"
	"restaurant-service/utils"
)

// TableController handles QR check-in and table token issuance.
type TableController struct {
	sessions *session.Manager
	cfg      *config.Config
	log      zerolog.Logger
}

func NewTableController(sessions *session.Manager, cfg *config.Config, log zerolog.Logger) *TableController {
	return &TableController{sessions: sessions, cfg: cfg, log: log}
}

type checkinRequest struct {
	Token   string `json:"token"`    // QR-derived table token
	TableID string `json:"table_id"` // manual fallback, lower trust
}

// Checkin binds the authenticated customer to a table. A signed QR token is
// the trusted path; a raw table id is accepted as a manual fallback and
// recorded as such.
func (ctl *TableController) Checkin(c *gin.Context) {
	var req checkinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var (
		tableID string
		source  session.BindingSource
	)
	switch {
	case req.Token != "":
		id, err := utils.ParseTableToken([]byte(ctl.cfg.TableSecret), req.Token)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid table token"})
			return
		}
		tableID, source = id, session.SourceQR
	case req.TableID != "":
		tableID, source = req.TableID, session.SourceManual
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "token or table_id required"})
		return
	}

	customerID := c.GetString(middlewares.CtxUserID)
	if err := ctl.sessions.BindTable(c.Request.Context(), customerID, tableID, source); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not bind table"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"table_id": tableID, "source": source})
}

// IssueTableToken mints the signed token an admin prints into a table's QR
// code.
func (ctl *TableController) IssueTableToken(c *gin.Context) {
	tableID := c.Param("id")
	if tableID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "table id required"})
		return
	}
	token, err := utils.NewTableToken([]byte(ctl.cfg.TableSecret), tableID, ctl.cfg.TableTokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"table_id": tableID, "token": token})
}
