package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	apperrors "github.com/cate-nduta/Lash-Business-sub002/services/common/errors"
)

const defaultFailureLimit = 50

type failureQuery struct {
	NaturalKey string `form:"natural_key"`
	Limit      int    `form:"limit" binding:"omitempty,min=1,max=500"`
}

type verifyResponse struct {
	Confirmed   bool   `json:"confirmed"`
	Outcome     string `json:"outcome"`
	NaturalKey  string `json:"natural_key,omitempty"`
	PaymentType string `json:"payment_type,omitempty"`
}

// respondError logs a warning and writes err as {"error": message}.
func (pc *PaymentController) respondError(c *gin.Context, err error) {
	appErr := apperrors.As(err)
	if appErr.Err != nil {
		pc.Logger.Warn(appErr.Message, zap.Error(appErr.Err))
	}
	c.AbortWithStatusJSON(appErr.Code, gin.H{"error": appErr.Message})
}

// bindFailureQuery reads the failure listing filters. Validation failures
// name the offending parameter.
func bindFailureQuery(c *gin.Context) (failureQuery, error) {
	var q failureQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return q, apperrors.ErrBadRequest.Wrap(err)
		}
		problems := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s must satisfy %s=%s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param()))
		}
		return q, apperrors.New(http.StatusBadRequest, strings.Join(problems, "; "), err)
	}
	q.NaturalKey = strings.TrimSpace(q.NaturalKey)
	if q.Limit == 0 {
		q.Limit = defaultFailureLimit
	}
	return q, nil
}
