package core

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env          string // DEV (local; default), TEST, QA, PROD
		Build        string
		Debug        bool
		TestMode     bool
		AppName      string
		Storage      string // postgres | memory
		RollbarToken string

		Server   ServerConfig
		Database DatabaseConfig
		Grading  GradingConfig
		Reports  ReportsConfig
	}

	ServerConfig struct {
		Host            string
		Address         string
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	GradingConfig struct {
		// Kinds maps every accepted assessment kind to its bucket ("coursework" or "exam").
		Kinds             map[string]string
		CourseworkWeight  float64
		ExamWeight        float64
		CourseworkReducer string
		ExamReducer       string
		// Scale holds the lower bound of each letter, e.g. "A=80,B=70,C=60,D=50,E=40,F=0".
		Scale        string
		StrictScores bool
		// RescaleLoneBucket reports a subject with only one bucket on 100 instead of that bucket's weight.
		RescaleLoneBucket bool
	}

	ReportsConfig struct {
		RequireComplete bool
	}
)

func (dc DatabaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, strconv.Itoa(dc.Port))
}

// NewConfig loads the configuration from defaults, an optional `config/.env.<env>` file and the environment.
// Environment variables are prefixed with the uppercased env, e.g. DEV_DATABASE_NAME.
func NewConfig() (*Config, error) {
	conf := viper.New()
	setDefaults(conf)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		conf.SetDefault("testMode", true)
		conf.SetDefault("storage", "memory")
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "stat %s", dotEnvPath)
	}
	conf.AutomaticEnv()

	kinds, err := parseKinds(conf.GetString("grading.courseworkKinds"), conf.GetString("grading.examKinds"))
	if err != nil {
		return nil, err
	}

	return &Config{
		Env:          env,
		Build:        conf.GetString("build"),
		Debug:        conf.GetBool("debug"),
		TestMode:     conf.GetBool("testMode"),
		AppName:      conf.GetString("appName"),
		Storage:      conf.GetString("storage"),
		RollbarToken: conf.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:            conf.GetString("server.host"),
			Address:         conf.GetString("server.address"),
			DebugHost:       conf.GetString("server.debugHost"),
			ShutdownTimeout: conf.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("database.engine"),
			Host:          conf.GetString("database.host"),
			Port:          conf.GetInt("database.port"),
			Name:          conf.GetString("database.name"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
		},
		Grading: GradingConfig{
			Kinds:             kinds,
			CourseworkWeight:  conf.GetFloat64("grading.courseworkWeight"),
			ExamWeight:        conf.GetFloat64("grading.examWeight"),
			CourseworkReducer: conf.GetString("grading.courseworkReducer"),
			ExamReducer:       conf.GetString("grading.examReducer"),
			Scale:             conf.GetString("grading.scale"),
			StrictScores:      conf.GetBool("grading.strictScores"),
			RescaleLoneBucket: conf.GetBool("grading.rescaleLoneBucket"),
		},
		Reports: ReportsConfig{
			RequireComplete: conf.GetBool("reports.requireComplete"),
		},
	}, nil
}

func setDefaults(conf *viper.Viper) {
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("appName", "Kadi")
	conf.SetDefault("build", "develop")
	conf.SetDefault("storage", "postgres")
	conf.SetDefault("rollbarToken", "")

	conf.SetDefault("server.host", "localhost")
	conf.SetDefault("server.address", ":8000")
	conf.SetDefault("server.debugHost", ":4000")
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)

	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", 5432)
	conf.SetDefault("database.name", "kadi")
	conf.SetDefault("database.user", "kadi")
	conf.SetDefault("database.password", "kadi")
	conf.SetDefault("database.adminUser", "postgres")
	conf.SetDefault("database.adminPassword", "")
	conf.SetDefault("database.disableTLS", true)

	conf.SetDefault("grading.courseworkKinds", "coursework,quiz,test,assignment,project")
	conf.SetDefault("grading.examKinds", "exam,mock")
	conf.SetDefault("grading.courseworkWeight", 20.0)
	conf.SetDefault("grading.examWeight", 80.0)
	conf.SetDefault("grading.courseworkReducer", "mean")
	conf.SetDefault("grading.examReducer", "mean")
	conf.SetDefault("grading.scale", "A=80,B=70,C=60,D=50,E=40,F=0")
	conf.SetDefault("grading.strictScores", false)
	conf.SetDefault("grading.rescaleLoneBucket", false)

	conf.SetDefault("reports.requireComplete", true)
}

// parseKinds builds the closed kind taxonomy from comma separated kind lists.
func parseKinds(coursework, exam string) (map[string]string, error) {
	kinds := make(map[string]string)
	add := func(list, bucket string) error {
		for _, k := range strings.Split(list, ",") {
			k = CleanString(k, true /* lower */)
			if k == "" {
				continue
			}
			if prev, ok := kinds[k]; ok && prev != bucket {
				return fmt.Errorf("config: assessment kind %q is both %s and %s", k, prev, bucket)
			}
			kinds[k] = bucket
		}
		return nil
	}
	if err := add(coursework, "coursework"); err != nil {
		return nil, err
	}
	if err := add(exam, "exam"); err != nil {
		return nil, err
	}
	if len(kinds) == 0 {
		return nil, errors.New("config: no assessment kinds configured")
	}
	return kinds, nil
}
