package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/config"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/api/handler"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/api/middleware"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/model"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/pkg/jwt"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/pkg/redis"
)

const (
	roleDoctor    = model.RoleDoctor
	roleSalesRep  = model.RoleSalesRep
	roleSalesLead = model.RoleSalesLead
	roleAdmin     = model.RoleAdmin
)

// Setup builds the Gin engine. rdb may be nil; rate limits are then off.
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	handler.RegisterValidators()

	r := gin.New()

	// ── global middleware ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimitBytes))

	// ── health ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		// public website contact form
		v1.POST("/contact",
			middleware.RateLimit(rdb, "contact", cfg.Referral.ContactFormRateLimit, cfg.Referral.ContactFormRateWindow),
			h.ReferralLead.SubmitContactForm)

		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr))
		{
			// order intake gateway
			orders := authorized.Group("/orders")
			{
				orders.POST("", middleware.RoleAuth(roleDoctor),
					middleware.RateLimit(rdb, "orders", cfg.Orders.CreateRateLimit, cfg.Orders.CreateRateWindow),
					h.Order.CreateOrder)
				orders.GET("", middleware.RoleAuth(roleDoctor), h.Order.ListMyOrders)
				orders.POST("/estimate", middleware.RoleAuth(roleDoctor), h.Order.EstimateTotals)
				orders.POST("/:orderId/cancel", middleware.RoleAuth(roleDoctor), h.Order.CancelOrder)
				orders.GET("/sales-rep", middleware.RoleAuth(roleSalesRep, roleSalesLead, roleAdmin), h.Order.ListSalesRepOrders)
				orders.GET("/sales-rep/:orderId", middleware.RoleAuth(roleSalesRep, roleSalesLead, roleAdmin), h.Order.GetSalesRepOrder)
			}

			salesByRep := authorized.Group("/sales-by-rep")
			salesByRep.Use(middleware.RoleAuth(roleAdmin, roleSalesLead))
			{
				salesByRep.GET("", h.Order.SalesByRep)
				salesByRep.GET("/export", h.Export.ExportSalesByRep)
			}

			// referral code registry
			codes := authorized.Group("/referral-codes")
			{
				codes.POST("", middleware.RoleAuth(roleSalesRep, roleAdmin), h.ReferralCode.IssueCode)
				codes.GET("", middleware.RoleAuth(roleSalesRep, roleAdmin), h.ReferralCode.ListCodes)
				codes.GET("/lookup", middleware.RoleAuth(roleSalesRep, roleAdmin), h.ReferralCode.LookupCode)
				codes.GET("/:id", middleware.RoleAuth(roleSalesRep, roleAdmin), h.ReferralCode.GetCode)
				codes.POST("/redeem", middleware.RoleAuth(roleDoctor), h.ReferralCode.RedeemCode)
				codes.POST("/:id/revoke", middleware.RoleAuth(roleSalesRep, roleAdmin), h.ReferralCode.RevokeCode)
				codes.POST("/:id/retire", middleware.RoleAuth(roleSalesRep, roleAdmin), h.ReferralCode.RetireCode)
			}

			// referral lead registry
			authorized.POST("/referrals", middleware.RoleAuth(roleDoctor), h.ReferralLead.CreateReferral)
			leads := authorized.Group("/referral-leads")
			{
				leads.POST("", middleware.RoleAuth(roleSalesRep, roleAdmin), h.ReferralLead.CreateProspect)
				leads.GET("/dashboard", middleware.RoleAuth(roleDoctor, roleSalesRep, roleSalesLead, roleAdmin), h.ReferralLead.Dashboard)
				leads.GET("/:id", middleware.RoleAuth(roleDoctor, roleSalesRep, roleSalesLead, roleAdmin), h.ReferralLead.GetLead)
				leads.PATCH("/:id/status", middleware.RoleAuth(roleSalesRep, roleAdmin), h.ReferralLead.UpdateStatus)
				leads.DELETE("/:id", middleware.RoleAuth(roleSalesRep, roleAdmin), h.ReferralLead.DeleteProspect)
			}

			// credit ledger and crediting authority
			credits := authorized.Group("/credits")
			{
				credits.GET("/me", middleware.RoleAuth(roleDoctor), h.Ledger.GetMySummary)
				credits.POST("/referral", middleware.RoleAuth(roleAdmin), h.Ledger.CreditReferral)
				credits.GET("/:doctorId", middleware.RoleAuth(roleSalesRep, roleSalesLead, roleAdmin), h.Ledger.GetSummary)
				credits.GET("/:doctorId/entries", middleware.RoleAuth(roleSalesRep, roleSalesLead, roleAdmin), h.Ledger.ListEntries)
				credits.POST("/:doctorId/entries", middleware.RoleAuth(roleAdmin), h.Ledger.AppendEntry)
				credits.GET("/:doctorId/export", middleware.RoleAuth(roleAdmin), h.Export.ExportLedgerStatement)
			}
		}
	}

	return r
}
