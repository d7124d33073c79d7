package logx

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
)

const (
	defaultMaxSizeMB  = 100
	defaultMaxAgeDays = 7
)

// FileConfig describes the rotating log file. An empty Filename keeps
// logging on the console only.
type FileConfig struct {
	Filename   string
	MaxSizeMB  int
	MaxAgeDays int
}

var (
	mu     sync.RWMutex
	logger = log.New(os.Stdout, "", log.Ldate|log.Ltime|log.Lmicroseconds)
	delay  time.Duration
)

// Configure attaches a lumberjack rotating file next to the console output.
// Zero values fall back to LOGFILE, LOGFILE_MAX_SIZE_MB and
// LOGFILE_MAX_AGE_DAYS, then to built-in defaults.
func Configure(cfg FileConfig) {
	if cfg.Filename == "" {
		if logFile := os.Getenv("LOGFILE"); logFile != "" {
			cfg.Filename = "./logs/" + logFile
		}
	}
	if cfg.Filename == "" {
		SetOutput(os.Stdout)
		return
	}
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = envInt("LOGFILE_MAX_SIZE_MB", defaultMaxSizeMB)
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = envInt("LOGFILE_MAX_AGE_DAYS", defaultMaxAgeDays)
	}

	lumberjackLogger := &lumberjack.Logger{
		Filename: cfg.Filename,
		MaxSize:  cfg.MaxSizeMB, // megabytes
		MaxAge:   cfg.MaxAgeDays, // days
	}
	SetOutput(io.MultiWriter(os.Stdout, lumberjackLogger))
}

// SetOutput redirects every subsequent log line to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds)
}

// SetDelay sets the pause applied after each Info, Warn and Error line so a
// human can follow the console trace. It has no protocol meaning.
func SetDelay(d time.Duration) {
	mu.Lock()
	defer mu.Unlock()
	delay = d
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func write(color, level, category string, content []interface{}, pause bool) {
	message := fmt.Sprint(content...)
	coloredCategory := fmt.Sprintf("%s[%s][%s]%s", color, level, category, ColorReset)

	mu.RLock()
	l, d := logger, delay
	mu.RUnlock()

	l.Printf("%s: %s", coloredCategory, message)
	if pause && d > 0 {
		time.Sleep(d)
	}
}

func Info(category string, content ...interface{}) {
	write(ColorGreen, "INFO", category, content, true)
}

func Error(category string, content ...interface{}) {
	write(ColorRed, "ERROR", category, content, true)
}

func Warn(category string, content ...interface{}) {
	write(ColorYellow, "WARN", category, content, true)
}

func Debug(category string, content ...interface{}) {
	write(ColorBlue, "DEBUG", category, content, false)
}

// Errorf logs an error message and returns a formatted error
func Errorf(format string, args ...interface{}) error {
	err := fmt.Errorf(format, args...)
	Error("ERROR", err.Error())
	return err
}
