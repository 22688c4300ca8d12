package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"center-service/internal/handler"
	"center-service/internal/middleware"
	"center-service/internal/model"
	"center-service/pkg/config"
	"center-service/pkg/database"
	"center-service/pkg/jwtutil"
	"center-service/pkg/logger"
	"center-service/pkg/mailer"
	"center-service/pkg/validate"
	"center-service/prometheus"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: .env file not found or error loading: %v\n", err)
	}

	// Load configuration
	conf, err := config.Load("center")
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	err = logger.InitLogger(&logger.LogConfig{
		Level:       conf.Log.Level,
		Environment: conf.Server.Env,
		ServiceName: conf.ServiceName,
	})
	if err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.GetLogger()

	// Initialize database connection
	db, err := database.InitDB(&conf.DB)
	if err != nil {
		log.Fatal("Failed to initialize database")
	}

	// Run migrations
	if err := database.MigrateModels(
		&model.Tenant{},
		&model.User{},
		&model.UserRole{},
		&model.Plan{},
		&model.Subscription{},
		&model.Student{},
		&model.Group{},
		&model.GroupSchedule{},
	); err != nil {
		log.Fatal("Failed to migrate database models")
	}

	// Seed the plan catalog on first run
	if err := seedPlans(); err != nil {
		log.Fatal("Failed to seed plan catalog")
	}

	// Initialize JWT utility
	jwt := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
		SigningKey:      conf.JWT.SigningKey,
		ExpirationHours: conf.JWT.ExpirationHours,
	})

	// Invitation mailer: SendGrid when configured, console otherwise
	var mail mailer.Mailer
	if conf.Mail.SendgridKey != "" {
		mail = mailer.NewSendgridMailer(conf.Mail.SendgridKey, conf.Mail.FromName, conf.Mail.FromEmail)
	} else {
		mail = mailer.NewConsoleMailer(log)
	}

	// Wire domain services
	handler.Init(db, jwt, mail, log)

	// Initialize metrics
	prometheus.InitMetrics()

	// Initialize Echo framework
	e := echo.New()
	e.Validator = validate.New()

	// Apply middleware
	e.Use(middleware.RequestIDMiddleware())
	e.Use(logger.Middleware())
	e.Use(prometheus.Middleware())

	// Metrics endpoint
	e.GET("/metrics", echo.WrapHandler(prometheus.GetPrometheusHandler()))

	// Public routes
	e.GET("/health", handler.HealthCheck)
	e.POST("/auth/register", handler.Register)
	e.POST("/auth/login", handler.Login)
	e.POST("/auth/invitations/accept", handler.AcceptInvite)

	// Secured routes - require authentication
	api := e.Group("")
	api.Use(middleware.JWTAuthMiddleware(jwt))

	api.GET("/quota", handler.GetQuota)
	api.GET("/plans", handler.ListPlans)

	api.POST("/users", handler.CreateUser)
	api.POST("/users/invite", handler.InviteUser)
	api.GET("/users", handler.ListUsers)
	api.PUT("/users/:id", handler.UpdateUser)
	api.PUT("/users/:id/approval", handler.ApproveUser)
	api.DELETE("/users/:id", handler.DeleteUser)

	api.POST("/students", handler.CreateStudent)
	api.GET("/students", handler.ListStudents)
	api.PUT("/students/:id", handler.UpdateStudent)
	api.DELETE("/students/:id", handler.DeleteStudent)

	api.POST("/groups", handler.CreateGroup)
	api.GET("/groups", handler.ListGroups)
	api.GET("/groups/:id", handler.GetGroup)
	api.PUT("/groups/:id", handler.UpdateGroup)
	api.DELETE("/groups/:id", handler.DeleteGroup)

	api.POST("/groups/:id/students", handler.AssignStudents)
	api.DELETE("/groups/:id/students/:student_id", handler.RemoveStudent)

	// Start server
	log.Info("Starting center-service on port " + conf.Server.Port)
	e.Logger.Fatal(e.Start(":" + conf.Server.Port))
}

// seedPlans inserts the default catalog when the table is empty. Plans are
// immutable after that; subscriptions reference them by ID.
func seedPlans() error {
	var n int64
	if err := database.GetDB().Model(&model.Plan{}).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	plans := []model.Plan{
		{Name: "Starter", PlanType: model.PlanTypeIndividual, MaxTeachers: 1, MaxAssistants: 1, MaxStudents: 50, Price: 99, DurationDays: 30, Active: true},
		{Name: "Pro", PlanType: model.PlanTypeIndividual, MaxTeachers: 1, MaxAssistants: 3, MaxStudents: 200, Price: 199, DurationDays: 30, Active: true},
		{Name: "Academy", PlanType: model.PlanTypeMultiTeacher, MaxTeachers: 10, MaxAssistants: 10, MaxStudents: 500, Price: 499, DurationDays: 30, Active: true},
		{Name: "Campus", PlanType: model.PlanTypeMultiTeacher, MaxTeachers: 50, MaxAssistants: 50, MaxStudents: 2000, Price: 999, DurationDays: 30, Active: true},
	}
	return database.GetDB().Create(&plans).Error
}
