package logger

// Log levels accepted by Config.Level.
const (
	Debug   = "debug"
	Info    = "info"
	Warning = "warning"
	Error   = "error"
)

// Config holds logger settings.
type Config struct {
	// Level is one of debug, info, warning, error. Defaults to info.
	Level string `yaml:"level" env:"LOGGER_LEVEL"`

	// ServiceName is attached to every log entry.
	ServiceName string `yaml:"service_name" env:"LOGGER_SERVICE_NAME"`
}
