package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ArkLabsHQ/oracle-node/internal/core/application"
	"github.com/ArkLabsHQ/oracle-node/internal/core/domain"
	"github.com/ArkLabsHQ/oracle-node/internal/interface/web/types"
	"github.com/ArkLabsHQ/oracle-node/pkg/protocol"
	"github.com/gin-gonic/gin"
)

// OracleService is the read-only view of the oracle node served by the
// status API.
type OracleService interface {
	Info(ctx context.Context) (*application.Info, error)
	ListTasks(ctx context.Context) ([]domain.Task, error)
	GetLockedTransaction(ctx context.Context, pwtxid string) (*domain.LockedPasswordTransaction, error)
}

type handler struct {
	svc OracleService
}

func (h *handler) info(c *gin.Context) {
	info, err := h.svc.Info(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.Info{
		Version:         info.BuildInfo.Version,
		Commit:          info.BuildInfo.Commit,
		Date:            info.BuildInfo.Date,
		ProtocolVersion: info.ProtocolVersion,
		Identity:        info.Identity,
		Network:         info.Network,
		PendingTasks:    info.PendingTasks,
		LockedTxs:       info.LockedTxs,
		SignedTxs:       info.SignedTxs,
		StartedAt:       info.StartedAt,
	})
}

func (h *handler) ping(c *gin.Context) {
	var ping types.Ping
	// nolint:all
	json.Unmarshal(protocol.PingMessage(), &ping)
	c.JSON(http.StatusOK, ping)
}

func (h *handler) tasks(c *gin.Context) {
	tasks, err := h.svc.ListTasks(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}

	onlyPending := c.Query("pending") == "true"
	list := make([]types.Task, 0, len(tasks))
	for _, task := range tasks {
		if onlyPending && task.Done {
			continue
		}
		list = append(list, types.Task{
			Id:        task.Id,
			CreatedAt: task.CreatedAt,
			Operation: task.Operation,
			Filter:    task.FilterField,
			NextCheck: time.Unix(task.NextCheck, 0).UTC(),
			Done:      task.Done,
		})
	}
	c.JSON(http.StatusOK, types.Tasks{Tasks: list})
}

func (h *handler) lockedTransaction(c *gin.Context) {
	pwtxid := c.Param("pwtxid")
	locked, err := h.svc.GetLockedTransaction(c.Request.Context(), pwtxid)
	if err != nil {
		internalError(c, err)
		return
	}
	if locked == nil {
		c.JSON(http.StatusNotFound, types.Error{Error: "password transaction not found"})
		return
	}

	c.JSON(http.StatusOK, types.LockedTransaction{
		Pwtxid:    locked.Pwtxid,
		Request:   locked.Request,
		Done:      locked.Done,
		CreatedAt: locked.CreatedAt,
	})
}

func internalError(c *gin.Context, err error) {
	// nolint:all
	c.Error(err)
	c.JSON(http.StatusInternalServerError, types.Error{Error: err.Error()})
}
