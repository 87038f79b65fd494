package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env       string // DEV (local; default), TEST, QA, PROD
		Build     string
		Debug     bool
		TestMode  bool
		AppName   string
		SecretKey string
		WorkDir   string
		Timezone  *time.Location

		RollbarToken     string
		SendgridApiKey   string
		defaultFromEmail string

		Server     ServerConfig
		Database   DatabaseConfig
		Attendance AttendanceConfig
	}

	ServerConfig struct {
		Host               string
		Address            string
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
		CORSAllowOrigins   []string
	}

	DatabaseConfig struct {
		Engine        string // postgres | memory
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	// AttendanceConfig is read once at startup and never mutated afterwards.
	AttendanceConfig struct {
		GeofenceLat            float64
		GeofenceLon            float64
		GeofenceRadiusMeters   float64
		TokenSecret            string
		TokenTTL               time.Duration
		ExtendActiveToEndOfDay bool
		QRWidth                int
		QRMargin               int
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c DatabaseConfig) InMemory() bool {
	return strings.EqualFold(c.Engine, "memory")
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: "noreply@localhost"}
	}
	if addr.Name == "" {
		addr.Name = c.AppName
	}
	return *addr
}

// Now returns the current time in the configured school timezone.
func (c *Config) Now() time.Time {
	if c.Timezone == nil {
		return time.Now()
	}
	return time.Now().In(c.Timezone)
}

func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")
	v.SetDefault("app_name", "Rollcall")
	v.SetDefault("secret_key", "k2v!-b8s)wq9$+41=lr&xoth7(m!e)#*r6(#pa4^$zxqu3fd")
	v.SetDefault("default_from_email", "Rollcall <noreply@localhost>")
	v.SetDefault("timezone", "UTC")
	v.SetDefault("rollbar_token", "")
	v.SetDefault("sendgrid_api_key", "")

	v.SetDefault("server_host", "localhost")
	v.SetDefault("server_address", ":8000")
	v.SetDefault("debug_host", "localhost:4000")
	v.SetDefault("shutdown_timeout", 5*time.Second)
	v.SetDefault("jwt_expiration_delta", 7*24*time.Hour)
	v.SetDefault("cors_allow_origins", []string{"http://localhost:3000"})

	v.SetDefault("database_engine", "postgres")
	v.SetDefault("database_host", "localhost")
	v.SetDefault("database_port", "5432")
	v.SetDefault("database_name", "rollcall")
	v.SetDefault("database_user", "rollcall")
	v.SetDefault("database_password", "")
	v.SetDefault("database_admin_user", "")
	v.SetDefault("database_admin_password", "")
	v.SetDefault("database_disable_tls", true)

	// campus reference point and radius of the original deployment
	v.SetDefault("geofence_lat", 40.7128)
	v.SetDefault("geofence_lon", -74.0060)
	v.SetDefault("geofence_radius_meters", 200.0)
	v.SetDefault("token_secret", "")
	v.SetDefault("token_ttl", time.Duration(0))
	v.SetDefault("status_extend_active_to_end_of_day", false)
	v.SetDefault("qr_width", 300)
	v.SetDefault("qr_margin", 2)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("test_mode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	tz, err := time.LoadLocation(v.GetString("timezone"))
	if err != nil {
		log.Printf("config: unknown timezone %q, falling back to UTC", v.GetString("timezone"))
		tz = time.UTC
	}

	return &Config{
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("test_mode"),
		AppName:          v.GetString("app_name"),
		SecretKey:        v.GetString("secret_key"),
		WorkDir:          wd,
		Timezone:         tz,
		RollbarToken:     v.GetString("rollbar_token"),
		SendgridApiKey:   v.GetString("sendgrid_api_key"),
		defaultFromEmail: v.GetString("default_from_email"),
		Server: ServerConfig{
			Host:               v.GetString("server_host"),
			Address:            v.GetString("server_address"),
			DebugHost:          v.GetString("debug_host"),
			ShutdownTimeout:    v.GetDuration("shutdown_timeout"),
			JWTExpirationDelta: v.GetDuration("jwt_expiration_delta"),
			CORSAllowOrigins:   v.GetStringSlice("cors_allow_origins"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database_engine"),
			Host:          v.GetString("database_host"),
			Port:          v.GetString("database_port"),
			Name:          v.GetString("database_name"),
			User:          v.GetString("database_user"),
			Password:      v.GetString("database_password"),
			AdminUser:     v.GetString("database_admin_user"),
			AdminPassword: v.GetString("database_admin_password"),
			DisableTLS:    v.GetBool("database_disable_tls"),
		},
		Attendance: AttendanceConfig{
			GeofenceLat:            v.GetFloat64("geofence_lat"),
			GeofenceLon:            v.GetFloat64("geofence_lon"),
			GeofenceRadiusMeters:   v.GetFloat64("geofence_radius_meters"),
			TokenSecret:            v.GetString("token_secret"),
			TokenTTL:               v.GetDuration("token_ttl"),
			ExtendActiveToEndOfDay: v.GetBool("status_extend_active_to_end_of_day"),
			QRWidth:                v.GetInt("qr_width"),
			QRMargin:               v.GetInt("qr_margin"),
		},
	}
}

// NewTestConfig returns a Config suitable for unit tests: in-memory storage, no .env lookup.
func NewTestConfig() *Config {
	return &Config{
		Env:              "TEST",
		Build:            "test",
		Debug:            false,
		TestMode:         true,
		AppName:          "Rollcall",
		SecretKey:        "test-secret",
		Timezone:         time.UTC,
		defaultFromEmail: "Rollcall <noreply@localhost>",
		Server: ServerConfig{
			Host:               "localhost",
			ShutdownTimeout:    time.Second,
			JWTExpirationDelta: time.Hour,
		},
		Database: DatabaseConfig{Engine: "memory"},
		Attendance: AttendanceConfig{
			GeofenceLat:          40.7128,
			GeofenceLon:          -74.0060,
			GeofenceRadiusMeters: 200,
			QRWidth:              300,
			QRMargin:             2,
		},
	}
}
