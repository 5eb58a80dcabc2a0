package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/campus/internal/admission"
	admissiondomain "github.com/smallbiznis/campus/internal/admission/domain"
	"github.com/smallbiznis/campus/internal/config"
	"github.com/smallbiznis/campus/internal/exam"
	examdomain "github.com/smallbiznis/campus/internal/exam/domain"
	"github.com/smallbiznis/campus/internal/fee"
	feedomain "github.com/smallbiznis/campus/internal/fee/domain"
	"github.com/smallbiznis/campus/internal/hostel"
	hosteldomain "github.com/smallbiznis/campus/internal/hostel/domain"
	"github.com/smallbiznis/campus/internal/observability"
	obsmiddleware "github.com/smallbiznis/campus/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/campus/internal/observability/metrics"
	obstracing "github.com/smallbiznis/campus/internal/observability/tracing"
	"github.com/smallbiznis/campus/internal/ratelimit"
	"github.com/smallbiznis/campus/internal/student"
	studentdomain "github.com/smallbiznis/campus/internal/student/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	student.Module,
	admission.Module,
	fee.Module,
	exam.Module,
	hostel.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	db           *gorm.DB
	genID        *snowflake.Node
	policy       *config.PolicyHolder
	studentSvc   studentdomain.Service
	admissionSvc admissiondomain.Service
	feeSvc       feedomain.Service
	examSvc      examdomain.Service
	hostelSvc    hosteldomain.Service
	writeLimiter *ratelimit.WriteLimiter
	obsMetrics   *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	DB           *gorm.DB
	GenID        *snowflake.Node
	Policy       *config.PolicyHolder
	StudentSvc   studentdomain.Service
	AdmissionSvc admissiondomain.Service
	FeeSvc       feedomain.Service
	ExamSvc      examdomain.Service
	HostelSvc    hosteldomain.Service
	WriteLimiter *ratelimit.WriteLimiter `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics     `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		db:           p.DB,
		genID:        p.GenID,
		policy:       p.Policy,
		studentSvc:   p.StudentSvc,
		admissionSvc: p.AdmissionSvc,
		feeSvc:       p.FeeSvc,
		examSvc:      p.ExamSvc,
		hostelSvc:    p.HostelSvc,
		writeLimiter: p.WriteLimiter,
		obsMetrics:   p.ObsMetrics,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	// -------- Students --------
	v1.POST("/students", s.CreateStudent)
	v1.GET("/students", s.ListStudents)
	v1.GET("/students/:id", s.GetStudent)

	// -------- Admissions --------
	v1.POST("/admissions/applications", s.SubmitApplication)
	v1.GET("/admissions/applications", s.ListApplications)
	v1.GET("/admissions/applications/:id", s.GetApplication)

	// -------- Fees --------
	v1.POST("/fees", s.CreateFeeRecord)
	v1.GET("/fees/:id", s.GetFeeRecord)
	v1.POST("/fees/:id/payments", s.RecordPayment)
	v1.GET("/fees/:id/payments", s.GetPaymentHistory)
	v1.PATCH("/fees/:id/structure", s.UpdateFeeStructure)
	v1.PATCH("/fees/:id/due-date", s.UpdateDueDate)

	// -------- Exams --------
	v1.POST("/exams", s.CreateExam)
	v1.GET("/exams/:id", s.GetExam)
	v1.POST("/exams/:id/registrations", s.RegistrationRateLimit(), s.RegisterForExam)
	v1.GET("/exams/:id/registrations", s.ListRegistrations)
	v1.POST("/registrations/:id/cancel", s.CancelRegistration)

	// -------- Hostel --------
	v1.POST("/rooms", s.CreateRoom)
	v1.GET("/rooms/:id", s.GetRoom)
	v1.PATCH("/rooms/:id", s.SetRoomActive)
	v1.POST("/rooms/:id/allocations", s.AllocationRateLimit(), s.AllocateRoom)
	v1.GET("/rooms/:id/allocations", s.ListAllocations)
	v1.POST("/allocations/:id/vacate", s.VacateRoom)
}
