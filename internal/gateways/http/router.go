package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-openapi/strfmt"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"funds_tracker/internal/entity"
	"funds_tracker/internal/gateways/http/dto"
	"funds_tracker/internal/gateways/http/mw"
	"funds_tracker/internal/usecase"
)

func setupRouter(r *gin.Engine, u UseCases, p Probes, limit gin.HandlerFunc) {
	r.HandleMethodNotAllowed = true

	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	r.GET("/health", func(c *gin.Context) {
		if p.Health != nil {
			if err := p.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if p.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("api/v1/")
	setupAuth(v1, u, limit)

	private := v1.Group("", mw.RequireBearer(u.Accounts))
	setupFunds(private, u)
	setupSubscriptions(private, u, limit)
	setupCustomer(private, u, limit)
	setupTransactions(private, u)
}

func setupAuth(r *gin.RouterGroup, u UseCases, limit gin.HandlerFunc) {
	r.POST("/auth/register", limit, func(c *gin.Context) {
		var input dto.RegisterInput
		if !bindJSON(c, &input) {
			return
		}
		pref := entity.NotifyEmail
		if input.NotificationPreference != "" {
			pref, _ = entity.ParseNotificationPreference(input.NotificationPreference)
		}
		session, err := u.Accounts.Register(c.Request.Context(), usecase.Registration{
			Email:      *input.Email,
			Password:   *input.Password,
			Phone:      input.Phone,
			Preference: pref,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, dto.NewSession(session))
	})

	r.POST("/auth/login", limit, func(c *gin.Context) {
		var input dto.LoginInput
		if !bindJSON(c, &input) {
			return
		}
		session, err := u.Accounts.Login(c.Request.Context(), *input.Email, *input.Password)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.NewSession(session))
	})
}

func setupFunds(r *gin.RouterGroup, u UseCases) {
	r.GET("/funds", func(c *gin.Context) {
		if !requireAcceptJSON(c) {
			return
		}
		funds, err := u.Catalog.List(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		resp := make([]dto.Fund, 0, len(funds))
		for _, f := range funds {
			resp = append(resp, dto.NewFund(f))
		}
		c.JSON(http.StatusOK, resp)
	})

	r.GET("/funds/:id", func(c *gin.Context) {
		if !requireAcceptJSON(c) {
			return
		}
		f, err := u.Catalog.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.NewFund(f))
	})
}

func setupSubscriptions(r *gin.RouterGroup, u UseCases, limit gin.HandlerFunc) {
	r.GET("/subscriptions", func(c *gin.Context) {
		if !requireAcceptJSON(c) {
			return
		}
		subs, err := u.Engine.ListActiveSubscriptions(c.Request.Context(), mw.CustomerID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		resp := make([]dto.Subscription, 0, len(subs))
		for _, s := range subs {
			resp = append(resp, dto.NewSubscription(s))
		}
		c.JSON(http.StatusOK, resp)
	})

	r.POST("/subscriptions", limit, func(c *gin.Context) {
		var input dto.SubscribeInput
		if !bindJSON(c, &input) {
			return
		}
		res, err := u.Engine.Subscribe(c.Request.Context(), mw.CustomerID(c), strings.TrimSpace(*input.FundID), *input.Amount)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, dto.NewSubscription(*res))
	})

	r.OPTIONS("/subscriptions", func(c *gin.Context) {
		c.Writer.Header().Set("Allow", "POST,OPTIONS,GET")
		c.Status(http.StatusNoContent)
	})

	r.DELETE("/subscriptions/:fundId", limit, func(c *gin.Context) {
		if !requireAcceptJSON(c) {
			return
		}
		if err := u.Engine.Cancel(c.Request.Context(), mw.CustomerID(c), c.Param("fundId")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	r.OPTIONS("/subscriptions/:fundId", func(c *gin.Context) {
		c.Writer.Header().Set("Allow", "DELETE,OPTIONS")
		c.Status(http.StatusNoContent)
	})
}

func setupCustomer(r *gin.RouterGroup, u UseCases, limit gin.HandlerFunc) {
	r.GET("/customer/balance", func(c *gin.Context) {
		if !requireAcceptJSON(c) {
			return
		}
		id := mw.CustomerID(c)
		balance, err := u.Engine.GetBalance(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.Balance{CustomerID: id, Balance: balance})
	})

	r.PUT("/customer/notification-preference", limit, func(c *gin.Context) {
		var input dto.PreferenceInput
		if !bindJSON(c, &input) {
			return
		}
		pref, _ := entity.ParseNotificationPreference(*input.NotificationPreference)
		if err := u.Accounts.UpdateNotificationPreference(c.Request.Context(), mw.CustomerID(c), pref); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

func setupTransactions(r *gin.RouterGroup, u UseCases) {
	r.GET("/transactions", func(c *gin.Context) {
		if !requireAcceptJSON(c) {
			return
		}
		txs, err := u.Ledger.History(c.Request.Context(), mw.CustomerID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		resp := make([]dto.Transaction, 0, len(txs))
		for _, t := range txs {
			resp = append(resp, dto.NewTransaction(t))
		}
		c.JSON(http.StatusOK, resp)
	})

	r.GET("/transactions/:id", func(c *gin.Context) {
		if !requireAcceptJSON(c) {
			return
		}
		tx, err := u.Ledger.Get(c.Request.Context(), mw.CustomerID(c), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.NewTransaction(tx))
	})
}

type validatable interface {
	Validate(formats strfmt.Registry) error
}

// bindJSON enforces the JSON content negotiation rules, decodes the body into input and validates it.
// It writes the error response itself and reports whether the handler may continue.
func bindJSON(c *gin.Context, input validatable) bool {
	if !requireAcceptJSON(c) {
		return false
	}
	if c.ContentType() != "" && c.ContentType() != "application/json" {
		c.JSON(http.StatusUnsupportedMediaType, dto.Error{Error: "Use application/json", Code: "unsupported_media_type"})
		return false
	}
	if err := c.ShouldBindJSON(input); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error{Error: err.Error(), Code: "bad_request"})
		return false
	}
	if err := input.Validate(strfmt.Default); err != nil {
		c.JSON(http.StatusUnprocessableEntity, dto.Error{Error: err.Error(), Code: "validation_failed"})
		return false
	}
	return true
}

// errorStatus maps a business kind to its HTTP status and machine code
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, usecase.ErrCustomerNotFound):
		return http.StatusNotFound, "customer_not_found"
	case errors.Is(err, usecase.ErrFundNotFound):
		return http.StatusNotFound, "fund_not_found"
	case errors.Is(err, usecase.ErrSubscriptionNotFound):
		return http.StatusNotFound, "subscription_not_found"
	case errors.Is(err, usecase.ErrTransactionNotFound):
		return http.StatusNotFound, "transaction_not_found"
	case errors.Is(err, usecase.ErrBelowMinimumAmount):
		return http.StatusUnprocessableEntity, "below_minimum_amount"
	case errors.Is(err, usecase.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, "insufficient_balance"
	case errors.Is(err, usecase.ErrInvalidAmount):
		return http.StatusUnprocessableEntity, "invalid_amount"
	case errors.Is(err, usecase.ErrAlreadySubscribed):
		return http.StatusConflict, "already_subscribed"
	case errors.Is(err, usecase.ErrConcurrentModification):
		return http.StatusConflict, "concurrent_modification"
	case errors.Is(err, usecase.ErrEmailTaken):
		return http.StatusConflict, "email_taken"
	case errors.Is(err, usecase.ErrInvalidCredentials), errors.Is(err, usecase.ErrInvalidToken):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "internal"
}

func writeError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError || status == http.StatusGatewayTimeout {
		_ = c.Error(err)
		c.JSON(status, dto.Error{Error: "internal error", Code: code})
		return
	}
	c.JSON(status, dto.Error{Error: err.Error(), Code: code})
}

func acceptsJSON(h string) bool {
	if h == "" || h == "*/*" {
		return true
	}
	parts := strings.Split(h, ",")
	for _, p := range parts {
		mt := strings.TrimSpace(strings.SplitN(p, ";", 2)[0])
		if mt == "application/json" || mt == "*/*" {
			return true
		}
	}
	return false
}

func requireAcceptJSON(c *gin.Context) bool {
	if acceptsJSON(c.GetHeader("Accept")) {
		return true
	}
	c.JSON(http.StatusNotAcceptable, dto.Error{Error: "Accept application/json only", Code: "not_acceptable"})
	return false
}
