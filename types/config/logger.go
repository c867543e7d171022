package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

var (
	logger     echo.Logger
	onceLogger sync.Once

	logOutput     io.Writer = os.Stdout
	logOutputLock sync.RWMutex

	entityLoggerStore EntityLoggerStore = EntityLoggerStore{
		loggers: make(map[string]*LoggerWrapper),
	}
)

type EntityLoggerStore struct {
	sync.RWMutex
	loggers map[string]*LoggerWrapper
}

// SafeBuffer is a thread-safe wrapper around bytes.Buffer
type SafeBuffer struct {
	sync.RWMutex
	buffer bytes.Buffer
}

func (sb *SafeBuffer) Write(p []byte) (n int, err error) {
	sb.Lock()
	defer sb.Unlock()
	return sb.buffer.Write(p)
}

func (sb *SafeBuffer) Bytes() []byte {
	sb.RLock()
	defer sb.RUnlock()
	return sb.buffer.Bytes()
}

func (sb *SafeBuffer) String() string {
	sb.RLock()
	defer sb.RUnlock()
	return sb.buffer.String()
}

func (sb *SafeBuffer) Reset() {
	sb.Lock()
	defer sb.Unlock()
	sb.buffer.Reset()
}

// LoggerWrapper fans every write out to all of its writers
type LoggerWrapper struct {
	sync.Mutex
	writers []io.Writer
	buffer  *SafeBuffer
}

func (lw *LoggerWrapper) Write(p []byte) (n int, err error) {
	lw.Lock()
	defer lw.Unlock()

	for _, writer := range lw.writers {
		n, err = writer.Write(p)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func (lw *LoggerWrapper) AddWriter(writer io.Writer) {
	lw.Lock()
	defer lw.Unlock()

	lw.writers = append(lw.writers, writer)
}

func (lw *LoggerWrapper) GetBuffer() *SafeBuffer {
	lw.Lock()
	defer lw.Unlock()

	return lw.buffer
}

// ParseLevel maps a configured level name onto gommon's levels.
// Unknown names fall back to WARN.
func ParseLevel(level string) log.Lvl {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return log.DEBUG
	case "INFO":
		return log.INFO
	case "WARN", "WARNING":
		return log.WARN
	case "ERROR":
		return log.ERROR
	case "OFF":
		return log.OFF
	}
	return log.WARN
}

// SetLogOutput redirects the global logger and loggers created afterwards
// for entities, e.g. to keep stdout free for command output.
func SetLogOutput(output io.Writer) {
	logOutputLock.Lock()
	logOutput = output
	logOutputLock.Unlock()

	GetLogger().SetOutput(output)
}

func getLogOutput() io.Writer {
	logOutputLock.RLock()
	defer logOutputLock.RUnlock()

	return logOutput
}

func GetLogger() echo.Logger {
	onceLogger.Do(func() {
		config := GetConfig()
		e := echo.New()
		e.Logger.SetLevel(ParseLevel(config.Log.Level))
		e.Logger.SetPrefix("stac-validator")
		e.Logger.SetOutput(getLogOutput())

		logger = e.Logger
	})
	return logger
}

func entityKey(entityType string, entityId interface{}) string {
	return fmt.Sprintf("%s:%v", entityType, entityId)
}

// GetLoggerForEntity returns a logger whose output goes to stdout and to a
// buffer kept per entity, so a validation run can hand its own log back.
func GetLoggerForEntity(entityType string, entityId interface{}) (echo.Logger, *SafeBuffer) {
	key := entityKey(entityType, entityId)
	level := GetLogger().Level()

	entityLoggerStore.RLock()
	existingLogger, found := entityLoggerStore.loggers[key]
	entityLoggerStore.RUnlock()

	if !found {
		newBuffer := &SafeBuffer{}
		existingLogger = &LoggerWrapper{
			writers: []io.Writer{newBuffer, getLogOutput()},
			buffer:  newBuffer,
		}

		entityLoggerStore.Lock()
		entityLoggerStore.loggers[key] = existingLogger
		entityLoggerStore.Unlock()
	}

	e := echo.New()
	e.Logger.SetLevel(level)
	e.Logger.SetOutput(existingLogger)
	e.Logger.SetPrefix(key)

	return e.Logger, existingLogger.GetBuffer()
}

// ReleaseLoggerForEntity forgets the captured output of an entity.
func ReleaseLoggerForEntity(entityType string, entityId interface{}) {
	entityLoggerStore.Lock()
	defer entityLoggerStore.Unlock()

	delete(entityLoggerStore.loggers, entityKey(entityType, entityId))
}
