package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/onemorebsmith/psychcoins/src/model"
	"github.com/onemorebsmith/psychcoins/src/reconciler"
	"github.com/onemorebsmith/psychcoins/src/registry"
	"github.com/pkg/errors"
)

func statusFor(err error) int {
	if errors.Is(err, registry.ErrStageOutOfRange) {
		return http.StatusNotFound
	}
	if errors.Is(err, reconciler.ErrClosed) {
		return http.StatusServiceUnavailable
	}
	switch model.KindOf(err) {
	case model.KindUnknownAction:
		return http.StatusNotFound
	case model.KindNetworkMismatch, model.KindRejected, model.KindSwitchRejected:
		return http.StatusConflict
	case model.KindUnsupportedChain:
		return http.StatusUnprocessableEntity
	case model.KindTimeout:
		return http.StatusGatewayTimeout
	case model.KindConnectivity, model.KindRpc, model.KindNetwork:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{
		"error": err.Error(),
		"kind":  model.KindOf(err),
	})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error": msg,
		"kind":  "bad_request",
	})
}
