// Package sensor читает вес с весов, подключённых по последовательному порту.
package sensor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"food-scale/internal/domain/entity"
	"food-scale/internal/domain/port"
)

const (
	DefaultPortName        = "/dev/ttySIF1"
	DefaultBaudRate        = 115200
	DefaultReadWindow      = 2 * time.Second
	DefaultPollInterval    = 100 * time.Millisecond
	DefaultContinuousPause = 100 * time.Millisecond
)

// Port: операции последовательного порта, которые нужны весам.
// serial.Port из go.bug.st/serial реализует его целиком.
type Port interface {
	io.Reader
	ResetInputBuffer() error
	SetReadTimeout(t time.Duration) error
	Close() error
}

// Opener открывает порт с заданной скоростью.
type Opener func(name string, baudRate int) (Port, error)

// SerialOpener открывает настоящий последовательный порт.
func SerialOpener(name string, baudRate int) (Port, error) {
	p, err := serial.Open(name, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Config: параметры весов.
type Config struct {
	PortName        string
	BaudRate        int
	ReadWindow      time.Duration // сколько ждать корректную строку
	PollInterval    time.Duration // таймаут одного чтения порта
	ContinuousPause time.Duration // пауза между чтениями в фоновом режиме
	Opener          Opener
	Logger          *slog.Logger
}

func (c *Config) setDefaults() {
	if c.PortName == "" {
		c.PortName = DefaultPortName
	}
	if c.BaudRate <= 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.ReadWindow <= 0 {
		c.ReadWindow = DefaultReadWindow
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ContinuousPause <= 0 {
		c.ContinuousPause = DefaultContinuousPause
	}
	if c.Opener == nil {
		c.Opener = SerialOpener
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Scale владеет портом весов и последним показанием.
// portMu сериализует доступ к порту между обработчиками и фоновым чтением.
type Scale struct {
	cfg    Config
	logger *slog.Logger

	portMu sync.Mutex
	port   Port

	stateMu sync.RWMutex
	reading entity.SensorReading

	loopMu sync.Mutex
	stop   context.CancelFunc
	done   chan struct{}
}

// NewScale создаёт весы в состоянии Disconnected.
func NewScale(cfg Config) *Scale {
	cfg.setDefaults()
	return &Scale{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "scale", "port", cfg.PortName),
	}
}

// Connect открывает порт. Ошибка оставляет весы отключёнными и не фатальна для сервиса.
func (s *Scale) Connect() error {
	s.portMu.Lock()
	defer s.portMu.Unlock()

	if s.port != nil {
		return nil
	}

	p, err := s.cfg.Opener(s.cfg.PortName, s.cfg.BaudRate)
	if err != nil {
		s.setConnected(false)
		s.logger.Warn("serial connect failed", "error", err)
		return fmt.Errorf("sensor: open %s: %w", s.cfg.PortName, err)
	}

	s.port = p
	s.setConnected(true)
	s.logger.Info("serial connected", "baud", s.cfg.BaudRate)
	return nil
}

// Disconnect закрывает порт.
func (s *Scale) Disconnect() error {
	s.portMu.Lock()
	defer s.portMu.Unlock()

	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	s.setConnected(false)
	s.logger.Info("serial disconnected")
	return err
}

// Connected сообщает состояние порта.
func (s *Scale) Connected() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.reading.Connected
}

// ReadOnce сбрасывает устаревший ввод и в течение ReadWindow ждёт строку с числом.
// Нечисловые строки пропускаются, ожидание продолжается. По истечении окна
// разбирается неполная строка, если она есть, иначе возвращается ReadTimeout
// и показание не меняется. Ошибка порта переводит весы в Disconnected.
func (s *Scale) ReadOnce(ctx context.Context) entity.ReadResult {
	s.portMu.Lock()
	defer s.portMu.Unlock()

	if s.port == nil {
		return entity.ReadResult{Outcome: entity.ReadChannelError, Err: entity.ErrNotConnected}
	}

	if err := s.port.ResetInputBuffer(); err != nil {
		return s.fail(fmt.Errorf("reset input: %w", err))
	}
	if err := s.port.SetReadTimeout(s.cfg.PollInterval); err != nil {
		return s.fail(fmt.Errorf("set read timeout: %w", err))
	}

	deadline := time.Now().Add(s.cfg.ReadWindow)
	buf := make([]byte, 128)
	var pending []byte

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return entity.ReadResult{Outcome: entity.ReadTimeout, Err: err}
		}

		n, err := s.port.Read(buf)
		if err != nil {
			return s.fail(fmt.Errorf("read: %w", err))
		}
		if n == 0 {
			continue
		}

		pending = append(pending, buf[:n]...)
		for {
			i := bytes.IndexByte(pending, '\n')
			if i < 0 {
				break
			}
			line := string(pending[:i])
			pending = pending[i+1:]

			weight, ok := ParseWeight(line)
			if !ok {
				s.logger.Debug("skipping unparsable line", "line", line)
				continue
			}
			s.update(weight)
			return entity.ReadResult{Outcome: entity.ReadValue, Value: weight}
		}
	}

	// Строка без перевода строки к концу окна тоже считается показанием.
	if weight, ok := ParseWeight(string(pending)); ok {
		s.update(weight)
		return entity.ReadResult{Outcome: entity.ReadValue, Value: weight}
	}

	s.logger.Debug("no weight within read window", "window", s.cfg.ReadWindow)
	return entity.ReadResult{Outcome: entity.ReadTimeout}
}

// Current выполняет одно чтение и возвращает снимок, даже если значение не обновилось.
func (s *Scale) Current(ctx context.Context) entity.SensorReading {
	res := s.ReadOnce(ctx)
	if res.Outcome == entity.ReadChannelError {
		s.logger.Warn("weight read failed", "error", res.Err)
	}
	return s.Snapshot()
}

// Snapshot возвращает копию последнего показания.
func (s *Scale) Snapshot() entity.SensorReading {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	r := s.reading
	if r.LastUpdate != nil {
		t := *r.LastUpdate
		r.LastUpdate = &t
	}
	return r
}

// StartContinuous запускает фоновое чтение. Цикл завершается по StopContinuous,
// отмене ctx или потере соединения.
func (s *Scale) StartContinuous(ctx context.Context) {
	s.loopMu.Lock()
	defer s.loopMu.Unlock()

	if s.done != nil {
		select {
		case <-s.done:
		default:
			return
		}
	}

	// Предыдущий цикл мог завершиться сам после потери соединения.
	if s.stop != nil {
		s.stop()
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.stop = cancel
	s.done = done

	go func() {
		defer close(done)
		defer cancel()
		s.logger.Info("continuous reading started")
		for s.Connected() {
			if res := s.ReadOnce(loopCtx); res.Outcome == entity.ReadValue {
				s.logger.Debug("weight received", "grams", res.Value)
			}

			select {
			case <-loopCtx.Done():
				s.logger.Info("continuous reading stopped")
				return
			case <-time.After(s.cfg.ContinuousPause):
			}
		}
		s.logger.Info("continuous reading ended: sensor disconnected")
	}()
}

// StopContinuous останавливает фоновое чтение и ждёт завершения цикла.
func (s *Scale) StopContinuous() {
	s.loopMu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.loopMu.Unlock()

	if stop == nil {
		return
	}
	stop()
	<-done
}

// ParseWeight разбирает строку с весом в граммах.
func ParseWeight(line string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func (s *Scale) update(weight float64) {
	now := time.Now()
	s.stateMu.Lock()
	s.reading.Weight = weight
	s.reading.LastUpdate = &now
	s.stateMu.Unlock()
}

func (s *Scale) setConnected(v bool) {
	s.stateMu.Lock()
	s.reading.Connected = v
	s.stateMu.Unlock()
}

// fail закрывает порт после ошибки канала. Вызывается под portMu.
func (s *Scale) fail(err error) entity.ReadResult {
	s.logger.Error("serial read failed", "error", err)
	if s.port != nil {
		_ = s.port.Close()
		s.port = nil
	}
	s.setConnected(false)
	return entity.ReadResult{Outcome: entity.ReadChannelError, Err: err}
}

var _ port.WeightSensor = (*Scale)(nil)
